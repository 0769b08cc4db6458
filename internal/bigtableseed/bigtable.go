// Package bigtableseed creates wide-column tables with max-versions column families
// in a Bigtable emulator. Instances are virtual in the emulator, so any instance id
// can hold tables without being created first.
package bigtableseed

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigtable"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/global-data-controller/emuseed/internal/emulator"
	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
	"github.com/global-data-controller/emuseed/internal/seed"
)

// Name is the seeder name
const Name = "bigtable"

// Config holds what the seeder needs to reach the emulator
type Config struct {
	ProjectID    string
	InstanceID   string
	EmulatorHost string
	OnConflict   emulator.ConflictPolicy
}

// TableAdmin is the subset of *bigtable.AdminClient used by the seeder
type TableAdmin interface {
	CreateTableFromConf(ctx context.Context, conf *bigtable.TableConf) error
	Close() error
}

// Seeder creates the fixture tables
type Seeder struct {
	admin    TableAdmin
	config   Config
	fixtures fixtures.BigtableFixtures
	logger   logging.Logger
}

// New dials the Bigtable admin API for the configured instance
func New(ctx context.Context, config Config, f fixtures.BigtableFixtures, logger logging.Logger, opts ...option.ClientOption) (*Seeder, error) {
	opts = append(emulator.ClientOptions(config.EmulatorHost), opts...)

	admin, err := bigtable.NewAdminClient(ctx, config.ProjectID, config.InstanceID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigtable admin client: %w", err)
	}

	return NewWithAdmin(admin, config, f, logger), nil
}

// NewWithAdmin builds a seeder around an existing admin client
func NewWithAdmin(admin TableAdmin, config Config, f fixtures.BigtableFixtures, logger logging.Logger) *Seeder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.OnConflict == "" {
		config.OnConflict = emulator.ConflictSkip
	}
	return &Seeder{
		admin:    admin,
		config:   config,
		fixtures: f,
		logger:   logger,
	}
}

// Name implements seed.Seeder
func (s *Seeder) Name() string {
	return Name
}

// Seed creates every fixture table. A failing table is logged and the next one is
// attempted; the seeder fails when any table was neither created nor already present.
func (s *Seeder) Seed(ctx context.Context) (*seed.Result, error) {
	res := seed.NewResult(Name, len(s.fixtures.Tables))

	for _, table := range s.fixtures.Tables {
		err := s.admin.CreateTableFromConf(ctx, TableConf(table))
		switch {
		case err == nil:
			res.Create(table.ID)
			s.logger.Info(ctx, "Table created",
				zap.String("table", table.ID),
				zap.String("instance", s.config.InstanceID))
		case s.config.OnConflict.Tolerate(err):
			res.Skip(table.ID)
			s.logger.Info(ctx, "Table already exists, skipping",
				zap.String("table", table.ID),
				zap.String("instance", s.config.InstanceID))
		default:
			s.logger.Error(ctx, "Error creating table",
				zap.String("table", table.ID),
				zap.Error(err))
		}
	}

	s.logger.Info(ctx, fmt.Sprintf("Bigtable initialization completed: %d/%d tables created successfully",
		res.Created, res.Total),
		zap.Int("skipped", res.Skipped))

	if failed := res.Failed(); failed > 0 {
		return res, fmt.Errorf("%d of %d tables could not be created", failed, res.Total)
	}
	return res, nil
}

// Close closes the admin client
func (s *Seeder) Close() error {
	return s.admin.Close()
}

// TableConf translates a fixture table into a create request
func TableConf(table fixtures.Table) *bigtable.TableConf {
	families := make(map[string]bigtable.GCPolicy, len(table.ColumnFamilies))
	for _, cf := range table.ColumnFamilies {
		families[cf.Name] = bigtable.MaxVersionsPolicy(cf.MaxVersions)
	}
	return &bigtable.TableConf{
		TableID:  table.ID,
		Families: families,
	}
}
