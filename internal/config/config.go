package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/global-data-controller/emuseed/internal/emulator"
)

// Seeder names, also the keys of their configuration sections
const (
	Bigtable  = "bigtable"
	Datastore = "datastore"
	Firestore = "firestore"
	PubSub    = "pubsub"
	Spanner   = "spanner"
	YDB       = "ydb"
)

// DefaultOrder is the order in which `all` runs the seeders
var DefaultOrder = []string{Bigtable, Datastore, Firestore, PubSub, Spanner, YDB}

// Config holds the application configuration
type Config struct {
	ProjectID string          `mapstructure:"project_id"`
	Seed      SeedConfig      `mapstructure:"seed"`
	Fixtures  FixturesConfig  `mapstructure:"fixtures"`
	Bigtable  BigtableConfig  `mapstructure:"bigtable"`
	Datastore DatastoreConfig `mapstructure:"datastore"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Spanner   SpannerConfig   `mapstructure:"spanner"`
	YDB       YDBConfig       `mapstructure:"ydb"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SeedConfig holds run-wide seeding behaviour
type SeedConfig struct {
	OnConflict string   `mapstructure:"on_conflict"`
	Order      []string `mapstructure:"order"`
}

// FixturesConfig points at a fixture file. Empty means the embedded defaults.
type FixturesConfig struct {
	Path string `mapstructure:"path"`
}

// TargetConfig is common to every seeder section
type TargetConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Required bool `mapstructure:"required"`
}

// BigtableConfig holds Bigtable emulator configuration
type BigtableConfig struct {
	TargetConfig `mapstructure:",squash"`
	EmulatorHost string `mapstructure:"emulator_host"`
	InstanceID   string `mapstructure:"instance_id"`
}

// DatastoreConfig holds Datastore emulator configuration
type DatastoreConfig struct {
	TargetConfig `mapstructure:",squash"`
	EmulatorHost string `mapstructure:"emulator_host"`
	DatabaseID   string `mapstructure:"database_id"`
}

// FirestoreConfig holds Firestore emulator configuration
type FirestoreConfig struct {
	TargetConfig `mapstructure:",squash"`
	EmulatorHost string `mapstructure:"emulator_host"`
	DatabaseID   string `mapstructure:"database_id"`
}

// PubSubConfig holds Pub/Sub emulator configuration
type PubSubConfig struct {
	TargetConfig `mapstructure:",squash"`
	EmulatorHost string `mapstructure:"emulator_host"`
}

// SpannerConfig holds Spanner emulator configuration
type SpannerConfig struct {
	TargetConfig     `mapstructure:",squash"`
	EmulatorHost     string        `mapstructure:"emulator_host"`
	InstanceID       string        `mapstructure:"instance_id"`
	InstanceConfig   string        `mapstructure:"instance_config"`
	DatabaseID       string        `mapstructure:"database_id"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// YDBConfig holds YDB configuration
type YDBConfig struct {
	TargetConfig `mapstructure:",squash"`
	DSN          string `mapstructure:"dsn"`
}

// NotifyConfig holds the NATS run notification configuration
type NotifyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	NATSURL string        `mapstructure:"nats_url"`
	Subject string        `mapstructure:"subject"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate"`
	PushgatewayURL string  `mapstructure:"pushgateway_url"`
	JobName        string  `mapstructure:"job_name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(configFile string) (*Config, error) {
	return LoadWith(New(), configFile)
}

// New returns a viper instance with defaults and environment bindings applied.
// Callers may bind command-line flags to it before passing it to LoadWith.
func New() *viper.Viper {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("emuseed")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/emuseed")

	v.SetEnvPrefix("EMUSEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The conventional emulator variables are honoured when the prefixed ones are unset
	_ = v.BindEnv("project_id", "EMUSEED_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
	_ = v.BindEnv("bigtable.emulator_host", "EMUSEED_BIGTABLE_EMULATOR_HOST", "BIGTABLE_EMULATOR_HOST")
	_ = v.BindEnv("datastore.emulator_host", "EMUSEED_DATASTORE_EMULATOR_HOST", "DATASTORE_EMULATOR_HOST")
	_ = v.BindEnv("firestore.emulator_host", "EMUSEED_FIRESTORE_EMULATOR_HOST", "FIRESTORE_EMULATOR_HOST")
	_ = v.BindEnv("pubsub.emulator_host", "EMUSEED_PUBSUB_EMULATOR_HOST", "PUBSUB_EMULATOR_HOST")
	_ = v.BindEnv("spanner.emulator_host", "EMUSEED_SPANNER_EMULATOR_HOST", "SPANNER_EMULATOR_HOST")
	_ = v.BindEnv("ydb.dsn", "EMUSEED_YDB_DSN", "YDB_CONNECTION_STRING")

	return v
}

// LoadWith reads configFile (or the first emuseed.yaml on the search path) into v
// and unmarshals the result. A .env file in the working directory is loaded into the
// process environment first; variables already set take precedence over it.
func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks values that would otherwise only fail once a seeder runs
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}

	if !emulator.ConflictPolicy(c.Seed.OnConflict).Valid() {
		return fmt.Errorf("seed.on_conflict must be 'skip' or 'fail', got %q", c.Seed.OnConflict)
	}

	seen := make(map[string]bool, len(c.Seed.Order))
	for _, name := range c.Seed.Order {
		if !isSeeder(name) {
			return fmt.Errorf("seed.order: unknown seeder %q", name)
		}
		if seen[name] {
			return fmt.Errorf("seed.order: %q listed twice", name)
		}
		seen[name] = true
	}

	if c.Bigtable.Enabled && c.Bigtable.InstanceID == "" {
		return fmt.Errorf("bigtable.instance_id is required")
	}

	if c.Spanner.Enabled {
		if c.Spanner.InstanceID == "" || c.Spanner.DatabaseID == "" {
			return fmt.Errorf("spanner.instance_id and spanner.database_id are required")
		}
		if c.Spanner.OperationTimeout <= 0 {
			return fmt.Errorf("spanner.operation_timeout must be positive")
		}
	}

	if c.YDB.Enabled && c.YDB.DSN == "" {
		return fmt.Errorf("ydb.dsn is required when ydb is enabled")
	}

	if c.Notify.Enabled && (c.Notify.NATSURL == "" || c.Notify.Subject == "") {
		return fmt.Errorf("notify.nats_url and notify.subject are required when notify is enabled")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}

// Target returns the enabled/required switches of the named seeder
func (c *Config) Target(name string) (TargetConfig, bool) {
	switch name {
	case Bigtable:
		return c.Bigtable.TargetConfig, true
	case Datastore:
		return c.Datastore.TargetConfig, true
	case Firestore:
		return c.Firestore.TargetConfig, true
	case PubSub:
		return c.PubSub.TargetConfig, true
	case Spanner:
		return c.Spanner.TargetConfig, true
	case YDB:
		return c.YDB.TargetConfig, true
	}
	return TargetConfig{}, false
}

func isSeeder(name string) bool {
	for _, s := range DefaultOrder {
		if s == name {
			return true
		}
	}
	return false
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("project_id", "test-project")

	v.SetDefault("seed.on_conflict", "skip")
	v.SetDefault("seed.order", DefaultOrder)

	v.SetDefault("fixtures.path", "")

	// Bigtable instances are virtual in the emulator and need no creation
	v.SetDefault("bigtable.enabled", true)
	v.SetDefault("bigtable.required", false)
	v.SetDefault("bigtable.emulator_host", "")
	v.SetDefault("bigtable.instance_id", "test-instance")

	v.SetDefault("datastore.enabled", true)
	v.SetDefault("datastore.required", false)
	v.SetDefault("datastore.emulator_host", "")
	v.SetDefault("datastore.database_id", "")

	v.SetDefault("firestore.enabled", true)
	v.SetDefault("firestore.required", false)
	v.SetDefault("firestore.emulator_host", "")
	v.SetDefault("firestore.database_id", "(default)")

	v.SetDefault("pubsub.enabled", true)
	v.SetDefault("pubsub.required", false)
	v.SetDefault("pubsub.emulator_host", "")

	v.SetDefault("spanner.enabled", true)
	v.SetDefault("spanner.required", true)
	v.SetDefault("spanner.emulator_host", "")
	v.SetDefault("spanner.instance_id", "test-instance")
	v.SetDefault("spanner.instance_config", "emulator-config")
	v.SetDefault("spanner.database_id", "test-database")
	v.SetDefault("spanner.operation_timeout", "120s")

	v.SetDefault("ydb.enabled", false)
	v.SetDefault("ydb.required", false)
	v.SetDefault("ydb.dsn", "")

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.nats_url", "nats://localhost:4222")
	v.SetDefault("notify.subject", "emuseed.events")
	v.SetDefault("notify.timeout", "5s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "emuseed")
	v.SetDefault("telemetry.service_version", "1.0.0")
	v.SetDefault("telemetry.jaeger_endpoint", "")
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.pushgateway_url", "")
	v.SetDefault("telemetry.job_name", "emuseed")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output_path", "stdout")
	v.SetDefault("logging.error_path", "stderr")
}
