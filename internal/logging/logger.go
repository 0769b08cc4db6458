package logging

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger interface for structured logging with trace support
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...zap.Field)
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Warn(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger
	Named(name string) Logger

	Sync() error
}

// ZapLogger implements Logger using Zap with OpenTelemetry integration
type ZapLogger struct {
	logger *zap.Logger
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
	ErrorPath  string
}

// NewLogger creates a new structured logger. The console format prints one
// human-readable status line per event, which is what the seeders are read through.
func NewLogger(config LoggingConfig) (Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}

	var encoder zapcore.Encoder
	switch config.Format {
	case "json":
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "", "console":
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.CallerKey = ""
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unknown log format %q", config.Format)
	}

	outputPath := config.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	}

	errorPath := config.ErrorPath
	if errorPath == "" {
		errorPath = "stderr"
	}

	out, err := writeSyncer(outputPath)
	if err != nil {
		return nil, err
	}
	errOut, err := writeSyncer(errorPath)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, out, level)

	logger := zap.New(core,
		zap.ErrorOutput(errOut),
		zap.AddStacktrace(zapcore.DPanicLevel),
	)

	return &ZapLogger{logger: logger}, nil
}

// FromZap wraps an existing zap logger, e.g. one from zaptest
func FromZap(logger *zap.Logger) Logger {
	return &ZapLogger{logger: logger}
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return &ZapLogger{logger: zap.NewNop()}
}

// writeSyncer opens stdout, stderr or an append-only file
func writeSyncer(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	default:
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		return zapcore.AddSync(file), nil
	}
}

// Debug logs a debug message with trace context
func (l *ZapLogger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Debug(msg, withTrace(ctx, fields)...)
}

// Info logs an info message with trace context
func (l *ZapLogger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Info(msg, withTrace(ctx, fields)...)
}

// Warn logs a warning message with trace context
func (l *ZapLogger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Warn(msg, withTrace(ctx, fields)...)
}

// Error logs an error message with trace context
func (l *ZapLogger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Error(msg, withTrace(ctx, fields)...)
}

// With creates a child logger with additional fields
func (l *ZapLogger) With(fields ...zap.Field) Logger {
	return &ZapLogger{logger: l.logger.With(fields...)}
}

// Named creates a child logger for a component, e.g. one seeder
func (l *ZapLogger) Named(name string) Logger {
	return &ZapLogger{logger: l.logger.Named(name)}
}

// Sync flushes any buffered log entries
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// withTrace prepends trace and span ids when ctx carries a recording span
func withTrace(ctx context.Context, fields []zap.Field) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return fields
	}

	sc := span.SpanContext()
	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all,
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
	return append(all, fields...)
}
