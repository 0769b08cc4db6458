package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/global-data-controller/emuseed/internal/logging"
)

// NATSEventBus publishes events on core NATS subjects
type NATSEventBus struct {
	conn   *nats.Conn
	logger logging.Logger
	config *NATSConfig
}

// NewNATSEventBus connects to the NATS server
func NewNATSEventBus(config *NATSConfig, logger logging.Logger) (*NATSEventBus, error) {
	if config == nil {
		config = DefaultNATSConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid NATS configuration: %w", err)
	}

	if logger == nil {
		logger = logging.NewNop()
	}

	bus := &NATSEventBus{
		logger: logger,
		config: config,
	}

	if err := bus.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return bus, nil
}

// connect establishes connection to NATS server
func (n *NATSEventBus) connect() error {
	ctx := context.Background()
	opts := []nats.Option{
		nats.Name("emuseed"),
		nats.Timeout(n.config.ConnectTimeout),
		nats.ReconnectWait(n.config.ReconnectWait),
		nats.MaxReconnects(n.config.MaxReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			n.logger.Warn(ctx, "NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.logger.Info(ctx, "NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			n.logger.Debug(ctx, "NATS connection closed")
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS server: %w", err)
	}

	n.conn = conn

	n.logger.Debug(ctx, "Connected to NATS",
		zap.String("url", n.config.URL),
		zap.String("subject", n.config.Subject))

	return nil
}

// PublishEvent publishes event and waits until the server has received it
func (n *NATSEventBus) PublishEvent(ctx context.Context, event *Event) error {
	subject := n.config.SubjectFor(event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error(ctx, "Failed to publish event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.FlushTimeout)
	defer cancel()

	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}

	n.logger.Debug(ctx, "Published event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", subject))

	return nil
}

// Close drains and closes the connection
func (n *NATSEventBus) Close() error {
	if n.conn == nil {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
