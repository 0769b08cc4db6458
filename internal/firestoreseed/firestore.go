// Package firestoreseed adds user and product documents to a Firestore emulator.
// Document ids are assigned by the server, so every run adds new documents.
package firestoreseed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/global-data-controller/emuseed/internal/emulator"
	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
	"github.com/global-data-controller/emuseed/internal/seed"
)

// Name is the seeder name
const Name = "firestore"

// Collection names
const (
	UsersCollection    = "users"
	ProductsCollection = "products"
)

// Config holds what the seeder needs to reach the emulator
type Config struct {
	ProjectID    string
	DatabaseID   string
	EmulatorHost string
}

// DocumentAdder adds a document with a server-assigned id and returns that id
type DocumentAdder interface {
	Add(ctx context.Context, collection string, data interface{}) (string, error)
	Close() error
}

type clientAdder struct {
	client *firestore.Client
}

func (c clientAdder) Add(ctx context.Context, collection string, data interface{}) (string, error) {
	ref, _, err := c.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (c clientAdder) Close() error {
	return c.client.Close()
}

// UserDocument is a document of the users collection. CreatedAt is left zero and
// filled in by the server.
type UserDocument struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Role      string    `firestore:"role,omitempty"`
	CreatedAt time.Time `firestore:"created_at,serverTimestamp"`
}

// ProductDocument is a document of the products collection
type ProductDocument struct {
	Name     string  `firestore:"name"`
	Price    float64 `firestore:"price"`
	Category string  `firestore:"category"`
	InStock  *bool   `firestore:"in_stock,omitempty"`
}

type collection struct {
	name string
	docs []interface{}
}

// Seeder adds the fixture documents
type Seeder struct {
	client   DocumentAdder
	config   Config
	fixtures fixtures.FirestoreFixtures
	logger   logging.Logger
}

// New creates a Firestore client for the configured project and database
func New(ctx context.Context, config Config, f fixtures.FirestoreFixtures, logger logging.Logger, opts ...option.ClientOption) (*Seeder, error) {
	opts = append(emulator.ClientOptions(config.EmulatorHost), opts...)

	databaseID := config.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, config.ProjectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return NewWithAdder(clientAdder{client: client}, config, f, logger), nil
}

// NewWithAdder builds a seeder around an existing document adder
func NewWithAdder(client DocumentAdder, config Config, f fixtures.FirestoreFixtures, logger logging.Logger) *Seeder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Seeder{
		client:   client,
		config:   config,
		fixtures: f,
		logger:   logger,
	}
}

// Name implements seed.Seeder
func (s *Seeder) Name() string {
	return Name
}

// Documents converts the fixtures into per-collection documents
func Documents(f fixtures.FirestoreFixtures) (users, products []interface{}) {
	for _, u := range f.Users {
		users = append(users, &UserDocument{Name: u.Name, Email: u.Email, Role: u.Role})
	}
	for _, p := range f.Products {
		products = append(products, &ProductDocument{
			Name:     p.Name,
			Price:    p.Price,
			Category: p.Category,
			InStock:  p.InStock,
		})
	}
	return users, products
}

// Seed adds every document. A collection stops at its first failed document; the
// other collection is still attempted.
func (s *Seeder) Seed(ctx context.Context) (*seed.Result, error) {
	users, products := Documents(s.fixtures)
	collections := []collection{
		{name: UsersCollection, docs: users},
		{name: ProductsCollection, docs: products},
	}

	res := seed.NewResult(Name, len(users)+len(products))
	var failed []string

	for _, c := range collections {
		if err := s.addAll(ctx, c, res); err != nil {
			failed = append(failed, c.name)
			s.logger.Error(ctx, "Error adding documents",
				zap.String("collection", c.name),
				zap.Error(err))
			continue
		}
		s.logger.Info(ctx, fmt.Sprintf("%s collection created with %d documents", c.name, len(c.docs)))
	}

	if len(failed) > 0 {
		s.logger.Warn(ctx, "Some collections failed to initialize", zap.Strings("collections", failed))
		return res, fmt.Errorf("some collections failed to initialize: %s", strings.Join(failed, ", "))
	}

	s.logger.Info(ctx, "All collections initialized successfully")
	return res, nil
}

func (s *Seeder) addAll(ctx context.Context, c collection, res *seed.Result) error {
	for _, doc := range c.docs {
		id, err := s.client.Add(ctx, c.name, doc)
		if err != nil {
			return err
		}
		res.Create(c.name + "/" + id)
	}
	return nil
}

// Close closes the client
func (s *Seeder) Close() error {
	return s.client.Close()
}
