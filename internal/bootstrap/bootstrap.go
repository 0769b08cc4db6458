package bootstrap

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/global-data-controller/emuseed/internal/config"
	"github.com/global-data-controller/emuseed/internal/eventbus"
	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
	"github.com/global-data-controller/emuseed/internal/seed"
	"github.com/global-data-controller/emuseed/internal/telemetry"
)

// Bootstrap initializes the core system components
type Bootstrap struct {
	Config    *config.Config
	Logger    logging.Logger
	Telemetry *telemetry.Telemetry
	Fixtures  *fixtures.Fixtures
	Notifier  seed.Notifier

	bus eventbus.Publisher
}

// New creates a new bootstrap instance
func New() *Bootstrap {
	return &Bootstrap{}
}

// Initialize initializes all core components
func (b *Bootstrap) Initialize(ctx context.Context, configFile string) error {
	return b.InitializeWith(ctx, config.New(), configFile)
}

// InitializeWith initializes all core components from v, which may carry bound
// command-line flags
func (b *Bootstrap) InitializeWith(ctx context.Context, v *viper.Viper, configFile string) error {
	// Load configuration
	cfg, err := config.LoadWith(v, configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	b.Config = cfg

	// Initialize logging
	logger, err := b.initLogging(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	b.Logger = logger

	logger.Debug(ctx, "Configuration loaded successfully",
		zap.String("config_file", v.ConfigFileUsed()),
		zap.String("project_id", cfg.ProjectID),
		zap.String("on_conflict", cfg.Seed.OnConflict))

	// Initialize telemetry
	tel, err := b.initTelemetry(cfg.Telemetry)
	if err != nil {
		logger.Error(ctx, "Failed to initialize telemetry", zap.Error(err))
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	b.Telemetry = tel

	if cfg.Telemetry.Enabled {
		logger.Info(ctx, "Telemetry initialized successfully",
			zap.String("service_name", cfg.Telemetry.ServiceName),
			zap.String("jaeger_endpoint", cfg.Telemetry.JaegerEndpoint),
			zap.String("pushgateway_url", cfg.Telemetry.PushgatewayURL))
	}

	// Load fixtures
	f, err := fixtures.Load(cfg.Fixtures.Path)
	if err != nil {
		return fmt.Errorf("failed to load fixtures: %w", err)
	}
	b.Fixtures = f

	// Connect the run notifier. A failed connection only disables notifications.
	if cfg.Notify.Enabled {
		bus, err := b.initEventBus(cfg.Notify)
		if err != nil {
			logger.Warn(ctx, "Run notifications disabled", zap.Error(err))
		} else {
			b.bus = bus
			b.Notifier = eventbus.NewNotifier(bus, cfg.Telemetry.ServiceName)
		}
	}

	return nil
}

// Run executes the named seeders, or every enabled seeder in the configured order
// when names is empty
func (b *Bootstrap) Run(ctx context.Context, names ...string) (*seed.Report, error) {
	if b.Config == nil {
		return nil, fmt.Errorf("bootstrap not initialized")
	}

	targets, err := b.Targets(names...)
	if err != nil {
		return nil, err
	}

	opts := []seed.RunnerOption{
		seed.WithTelemetry(b.Telemetry),
		seed.WithProjectID(b.Config.ProjectID),
	}
	if b.Notifier != nil {
		opts = append(opts, seed.WithNotifier(b.Notifier))
	}

	return seed.NewRunner(b.Logger, targets, opts...).Run(ctx)
}

// Stop releases the notifier connection, pushes metrics and flushes the logger
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.Logger == nil {
		return nil
	}

	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			b.Logger.Warn(ctx, "Failed to close event bus", zap.Error(err))
		}
	}

	var stopErr error
	if b.Telemetry != nil {
		if err := b.Telemetry.Stop(ctx); err != nil {
			b.Logger.Error(ctx, "Failed to stop telemetry", zap.Error(err))
			stopErr = fmt.Errorf("failed to stop telemetry: %w", err)
		}
	}

	// stdout/stderr sync fails on some terminals
	_ = b.Logger.Sync()

	return stopErr
}

// initLogging initializes the logging system
func (b *Bootstrap) initLogging(cfg config.LoggingConfig) (logging.Logger, error) {
	return logging.NewLogger(logging.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		OutputPath: cfg.OutputPath,
		ErrorPath:  cfg.ErrorPath,
	})
}

// initTelemetry initializes the telemetry system
func (b *Bootstrap) initTelemetry(cfg config.TelemetryConfig) (*telemetry.Telemetry, error) {
	return telemetry.NewTelemetry(telemetry.TelemetryConfig{
		Enabled:        cfg.Enabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		JaegerEndpoint: cfg.JaegerEndpoint,
		SampleRate:     cfg.SampleRate,
		PushgatewayURL: cfg.PushgatewayURL,
		JobName:        cfg.JobName,
	})
}

// initEventBus connects to NATS for run notifications
func (b *Bootstrap) initEventBus(cfg config.NotifyConfig) (*eventbus.NATSEventBus, error) {
	natsConfig := eventbus.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Subject = cfg.Subject
	if cfg.Timeout > 0 {
		natsConfig.ConnectTimeout = cfg.Timeout
		natsConfig.FlushTimeout = cfg.Timeout
	}
	return eventbus.NewNATSEventBus(natsConfig, b.Logger.Named("eventbus"))
}
