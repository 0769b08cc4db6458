package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultNATSConfig(t *testing.T) {
	config := DefaultNATSConfig()

	assert.Equal(t, "nats://localhost:4222", config.URL)
	assert.Equal(t, "emuseed.events", config.Subject)
	assert.Equal(t, 5*time.Second, config.ConnectTimeout)
	assert.Equal(t, 5*time.Second, config.FlushTimeout)
	assert.Equal(t, 2*time.Second, config.ReconnectWait)
	assert.Equal(t, 3, config.MaxReconnectAttempts)
	assert.NoError(t, config.Validate())
}

func TestNATSConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *NATSConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  DefaultNATSConfig(),
			wantErr: false,
		},
		{
			name:    "empty URL",
			config:  &NATSConfig{Subject: "emuseed.events"},
			wantErr: true,
		},
		{
			name:    "empty subject",
			config:  &NATSConfig{URL: "nats://localhost:4222"},
			wantErr: true,
		},
		{
			name:    "wildcard subject",
			config:  &NATSConfig{URL: "nats://localhost:4222", Subject: "emuseed.>"},
			wantErr: true,
		},
		{
			name:    "trailing dot",
			config:  &NATSConfig{URL: "nats://localhost:4222", Subject: "emuseed."},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNATSConfig_ValidateFillsTimeouts(t *testing.T) {
	config := &NATSConfig{
		URL:                  "nats://localhost:4222",
		Subject:              "seed",
		MaxReconnectAttempts: -5,
	}

	assert.NoError(t, config.Validate())
	assert.Equal(t, 5*time.Second, config.ConnectTimeout)
	assert.Equal(t, 5*time.Second, config.FlushTimeout)
	assert.Equal(t, 2*time.Second, config.ReconnectWait)
	assert.Equal(t, 3, config.MaxReconnectAttempts)
}

func TestNATSConfig_SubjectFor(t *testing.T) {
	config := DefaultNATSConfig()
	assert.Equal(t, "emuseed.events.seed.completed", config.SubjectFor(EventTypeSeedCompleted))
	assert.Equal(t, "emuseed.events.seed.failed", config.SubjectFor(EventTypeSeedFailed))
}
