// Package spannerseed creates a Spanner instance and database in the emulator and
// inserts the relational fixture rows with commit timestamps.
package spannerseed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/spanner"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/global-data-controller/emuseed/internal/emulator"
	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
	"github.com/global-data-controller/emuseed/internal/seed"
)

// Name is the seeder name
const Name = "spanner"

// DefaultOperationTimeout bounds each wait on a long-running admin operation
const DefaultOperationTimeout = 120 * time.Second

// Config holds what the seeder needs to reach the emulator
type Config struct {
	ProjectID        string
	InstanceID       string
	InstanceConfig   string
	DatabaseID       string
	EmulatorHost     string
	OperationTimeout time.Duration
	OnConflict       emulator.ConflictPolicy
}

// ProjectPath is projects/<project>
func (c Config) ProjectPath() string {
	return "projects/" + c.ProjectID
}

// InstancePath is projects/<project>/instances/<instance>
func (c Config) InstancePath() string {
	return c.ProjectPath() + "/instances/" + c.InstanceID
}

// InstanceConfigPath is projects/<project>/instanceConfigs/<config>
func (c Config) InstanceConfigPath() string {
	return c.ProjectPath() + "/instanceConfigs/" + c.InstanceConfig
}

// DatabasePath is projects/<project>/instances/<instance>/databases/<database>
func (c Config) DatabasePath() string {
	return c.InstancePath() + "/databases/" + c.DatabaseID
}

// Admin creates instances and databases, returning once the operation has finished
type Admin interface {
	CreateInstance(ctx context.Context, config Config) error
	CreateDatabase(ctx context.Context, config Config, ddl []string) error
	Close() error
}

// Writer is the subset of *spanner.Client used to insert rows
type Writer interface {
	Apply(ctx context.Context, ms []*spanner.Mutation, opts ...spanner.ApplyOption) (time.Time, error)
	Close()
}

// Dialer opens a data client once the database exists
type Dialer func(ctx context.Context, databasePath string) (Writer, error)

// Seeder creates the instance and database and inserts the rows
type Seeder struct {
	admin    Admin
	dial     Dialer
	config   Config
	fixtures fixtures.RelationalFixtures
	logger   logging.Logger
}

// New creates the instance and database admin clients. The data client is dialed in
// Seed after the database has been created.
func New(ctx context.Context, config Config, f fixtures.RelationalFixtures, logger logging.Logger, opts ...option.ClientOption) (*Seeder, error) {
	opts = append(emulator.ClientOptions(config.EmulatorHost), opts...)

	admin, err := newAdminClients(ctx, opts...)
	if err != nil {
		return nil, err
	}

	dial := func(ctx context.Context, databasePath string) (Writer, error) {
		client, err := spanner.NewClient(ctx, databasePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create spanner client: %w", err)
		}
		return client, nil
	}

	return NewWithClients(admin, dial, config, f, logger), nil
}

// NewWithClients builds a seeder around existing clients
func NewWithClients(admin Admin, dial Dialer, config Config, f fixtures.RelationalFixtures, logger logging.Logger) *Seeder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.OnConflict == "" {
		config.OnConflict = emulator.ConflictSkip
	}
	if config.OperationTimeout <= 0 {
		config.OperationTimeout = DefaultOperationTimeout
	}
	return &Seeder{
		admin:    admin,
		dial:     dial,
		config:   config,
		fixtures: f,
		logger:   logger,
	}
}

// Name implements seed.Seeder
func (s *Seeder) Name() string {
	return Name
}

// Seed runs instance creation, database creation and the row inserts in that order.
// Any step failing ends the seeding with an error.
func (s *Seeder) Seed(ctx context.Context) (*seed.Result, error) {
	rows, err := Rows(s.fixtures)
	if err != nil {
		return nil, err
	}
	res := seed.NewResult(Name, 2+len(rows))

	s.logger.Info(ctx, "Waiting for operation to complete...", zap.String("instance", s.config.InstanceID))
	err = s.admin.CreateInstance(ctx, s.config)
	if err := s.record(ctx, res, "instances/"+s.config.InstanceID, err); err != nil {
		return res, fmt.Errorf("failed to create instance %s: %w", s.config.InstanceID, err)
	}

	s.logger.Info(ctx, "Waiting for database creation to complete...", zap.String("database", s.config.DatabaseID))
	err = s.admin.CreateDatabase(ctx, s.config, s.fixtures.SpannerDDL)
	if err := s.record(ctx, res, "databases/"+s.config.DatabaseID, err); err != nil {
		return res, fmt.Errorf("failed to create database %s: %w", s.config.DatabaseID, err)
	}

	if err := s.insert(ctx, res, rows); err != nil {
		return res, err
	}

	s.logger.Info(ctx, "Spanner setup completed successfully",
		zap.String("database", s.config.DatabasePath()))
	return res, nil
}

func (s *Seeder) record(ctx context.Context, res *seed.Result, item string, err error) error {
	switch {
	case err == nil:
		res.Create(item)
		s.logger.Info(ctx, "Created "+item)
		return nil
	case s.config.OnConflict.Tolerate(err):
		res.Skip(item)
		s.logger.Info(ctx, item+" already exists, skipping")
		return nil
	default:
		return err
	}
}

func (s *Seeder) insert(ctx context.Context, res *seed.Result, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	client, err := s.dial(ctx, s.config.DatabasePath())
	if err != nil {
		return err
	}
	defer client.Close()

	mutations := make([]*spanner.Mutation, 0, len(rows))
	for _, row := range rows {
		mutations = append(mutations, row.Mutation())
	}

	_, err = client.Apply(ctx, mutations)
	switch {
	case err == nil:
		for _, row := range rows {
			res.Create(row.Table + "/" + row.Key)
		}
		s.logger.Info(ctx, "Sample data inserted successfully", zap.Int("rows", len(rows)))
		return nil
	case s.config.OnConflict.Tolerate(err):
		// The batch is atomic, so one existing row rolls back the rest
		s.logger.Info(ctx, "Some sample rows already exist, inserting row by row")
		return s.insertEach(ctx, client, res, rows)
	default:
		return fmt.Errorf("failed to insert sample data: %w", err)
	}
}

func (s *Seeder) insertEach(ctx context.Context, client Writer, res *seed.Result, rows []Row) error {
	for _, row := range rows {
		item := row.Table + "/" + row.Key
		_, err := client.Apply(ctx, []*spanner.Mutation{row.Mutation()})
		switch {
		case err == nil:
			res.Create(item)
		case s.config.OnConflict.Tolerate(err):
			res.Skip(item)
			s.logger.Debug(ctx, "Row already exists, skipping", zap.String("row", item))
		default:
			return fmt.Errorf("failed to insert row %s: %w", item, err)
		}
	}

	s.logger.Info(ctx, "Sample data inserted",
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped))
	return nil
}

// Close closes the admin clients
func (s *Seeder) Close() error {
	return s.admin.Close()
}

// Table and column names of the relational fixture schema
const (
	UsersTable  = "Users"
	OrdersTable = "Orders"
)

var (
	userColumns  = []string{"UserId", "UserName", "Email", "CreatedAt"}
	orderColumns = []string{"OrderId", "UserId", "ProductName", "Quantity", "Price", "OrderDate"}
)

// Row is one insert. The timestamp column holds spanner.CommitTimestamp.
type Row struct {
	Table   string
	Key     string
	Columns []string
	Values  []interface{}
}

// Mutation returns the insert mutation for the row
func (r Row) Mutation() *spanner.Mutation {
	return spanner.Insert(r.Table, r.Columns, r.Values)
}

// Rows builds the Users rows followed by the Orders rows. Prices are NUMERIC, sent as
// exact decimals.
func Rows(f fixtures.RelationalFixtures) ([]Row, error) {
	rows := make([]Row, 0, len(f.Users)+len(f.Orders))
	for _, u := range f.Users {
		rows = append(rows, Row{
			Table:   UsersTable,
			Key:     strconv.FormatInt(u.UserID, 10),
			Columns: userColumns,
			Values:  []interface{}{u.UserID, u.UserName, u.Email, spanner.CommitTimestamp},
		})
	}
	for _, o := range f.Orders {
		price, err := o.PriceRat()
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			Table:   OrdersTable,
			Key:     strconv.FormatInt(o.OrderID, 10),
			Columns: orderColumns,
			Values:  []interface{}{o.OrderID, o.UserID, o.ProductName, o.Quantity, price, spanner.CommitTimestamp},
		})
	}
	return rows, nil
}
