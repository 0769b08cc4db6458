// Package datastoreseed writes User, Product and Order entities to a Datastore
// emulator in a single batch.
package datastoreseed

import (
	"context"
	"fmt"

	"cloud.google.com/go/datastore"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/global-data-controller/emuseed/internal/emulator"
	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
	"github.com/global-data-controller/emuseed/internal/seed"
)

// Name is the seeder name
const Name = "datastore"

// Entity kinds
const (
	KindUser    = "User"
	KindProduct = "Product"
	KindOrder   = "Order"
)

// Config holds what the seeder needs to reach the emulator
type Config struct {
	ProjectID    string
	DatabaseID   string
	EmulatorHost string
}

// EntityWriter is the subset of *datastore.Client used by the seeder
type EntityWriter interface {
	PutMulti(ctx context.Context, keys []*datastore.Key, src interface{}) ([]*datastore.Key, error)
	Close() error
}

// UserEntity is stored under kind User
type UserEntity struct {
	Name  string `datastore:"name"`
	Email string `datastore:"email"`
	Age   int64  `datastore:"age,omitempty"`
}

// ProductEntity is stored under kind Product
type ProductEntity struct {
	Name     string  `datastore:"name"`
	Price    float64 `datastore:"price"`
	Category string  `datastore:"category"`
}

// OrderEntity is stored under kind Order
type OrderEntity struct {
	UserID    string `datastore:"user_id"`
	ProductID string `datastore:"product_id"`
	Quantity  int64  `datastore:"quantity"`
	Status    string `datastore:"status"`
}

// Batch is the set of keys and entities written by one PutMulti call
type Batch struct {
	Keys     []*datastore.Key
	Entities []interface{}
	// Kinds counts entities per kind
	Kinds map[string]int
}

func (b *Batch) add(kind, id string, entity interface{}) {
	b.Keys = append(b.Keys, datastore.NameKey(kind, id, nil))
	b.Entities = append(b.Entities, entity)
	b.Kinds[kind]++
}

// BuildBatch turns the fixtures into named keys and typed entities
func BuildBatch(f fixtures.DatastoreFixtures) *Batch {
	b := &Batch{Kinds: make(map[string]int, 3)}
	for _, u := range f.Users {
		b.add(KindUser, u.ID, &UserEntity{Name: u.Name, Email: u.Email, Age: u.Age})
	}
	for _, p := range f.Products {
		b.add(KindProduct, p.ID, &ProductEntity{Name: p.Name, Price: p.Price, Category: p.Category})
	}
	for _, o := range f.Orders {
		b.add(KindOrder, o.ID, &OrderEntity{
			UserID:    o.UserID,
			ProductID: o.ProductID,
			Quantity:  o.Quantity,
			Status:    o.Status,
		})
	}
	return b
}

// Seeder writes the fixture entities
type Seeder struct {
	client   EntityWriter
	config   Config
	fixtures fixtures.DatastoreFixtures
	logger   logging.Logger
}

// New creates a Datastore client for the configured project and database
func New(ctx context.Context, config Config, f fixtures.DatastoreFixtures, logger logging.Logger, opts ...option.ClientOption) (*Seeder, error) {
	opts = append(emulator.ClientOptions(config.EmulatorHost), opts...)

	client, err := datastore.NewClientWithDatabase(ctx, config.ProjectID, config.DatabaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}

	return NewWithClient(client, config, f, logger), nil
}

// NewWithClient builds a seeder around an existing client
func NewWithClient(client EntityWriter, config Config, f fixtures.DatastoreFixtures, logger logging.Logger) *Seeder {
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

// Seed writes every entity in one batch. Puts are upserts, so a rerun overwrites the
// same keys instead of conflicting.
func (s *Seeder) Seed(ctx context.Context) (*seed.Result, error) {
	batch := BuildBatch(s.fixtures)
	res := seed.NewResult(Name, len(batch.Keys))
	if len(batch.Keys) == 0 {
		return res, nil
	}

	keys, err := s.client.PutMulti(ctx, batch.Keys, batch.Entities)
	if err != nil {
		s.logger.Error(ctx, "Failed to save entities", zap.Error(err))
		return res, fmt.Errorf("failed to save %d entities: %w", len(batch.Keys), err)
	}

	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, k.Kind+"/"+k.Name)
	}
	res.CreateN(len(keys), items...)

	s.logger.Info(ctx, "All entities created successfully",
		zap.String("project", s.config.ProjectID),
		zap.Int("users", batch.Kinds[KindUser]),
		zap.Int("products", batch.Kinds[KindProduct]),
		zap.Int("orders", batch.Kinds[KindOrder]))

	return res, nil
}

// Close closes the client
func (s *Seeder) Close() error {
	return s.client.Close()
}
