package eventbus

import (
	"fmt"
	"strings"
	"time"
)

// NATSConfig holds NATS connection configuration
type NATSConfig struct {
	URL string `json:"url" yaml:"url"`
	// Subject prefix; events go to <Subject>.<event type>
	Subject              string        `json:"subject" yaml:"subject"`
	ConnectTimeout       time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	FlushTimeout         time.Duration `json:"flush_timeout" yaml:"flush_timeout"`
	ReconnectWait        time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
}

// DefaultNATSConfig returns default NATS configuration
func DefaultNATSConfig() *NATSConfig {
	return &NATSConfig{
		URL:                  "nats://localhost:4222",
		Subject:              "emuseed.events",
		ConnectTimeout:       5 * time.Second,
		FlushTimeout:         5 * time.Second,
		ReconnectWait:        2 * time.Second,
		MaxReconnectAttempts: 3,
	}
}

// Validate validates the NATS configuration and fills in missing timeouts
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}

	if c.Subject == "" {
		return fmt.Errorf("NATS subject is required")
	}

	if strings.ContainsAny(c.Subject, "*> \t") || strings.HasSuffix(c.Subject, ".") {
		return fmt.Errorf("invalid NATS subject %q", c.Subject)
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}

	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 5 * time.Second
	}

	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}

	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 3
	}

	return nil
}

// SubjectFor returns the subject an event type is published on
func (c *NATSConfig) SubjectFor(eventType EventType) string {
	return fmt.Sprintf("%s.%s", c.Subject, eventType)
}
