// Package pubsubseed creates topics in a Pub/Sub emulator.
package pubsubseed

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/global-data-controller/emuseed/internal/emulator"
	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
	"github.com/global-data-controller/emuseed/internal/seed"
)

// Name is the seeder name
const Name = "pubsub"

// Config holds what the seeder needs to reach the emulator
type Config struct {
	ProjectID    string
	EmulatorHost string
	OnConflict   emulator.ConflictPolicy
}

// TopicCreator creates a topic and returns its full resource name
type TopicCreator interface {
	CreateTopic(ctx context.Context, topicID string) (string, error)
	Close() error
}

type clientCreator struct {
	client *pubsub.Client
}

func (c clientCreator) CreateTopic(ctx context.Context, topicID string) (string, error) {
	topic, err := c.client.CreateTopic(ctx, topicID)
	if err != nil {
		return "", err
	}
	return topic.String(), nil
}

func (c clientCreator) Close() error {
	return c.client.Close()
}

// TopicPath returns the resource name of a topic, projects/<project>/topics/<topic>
func TopicPath(projectID, topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
}

// Seeder creates the fixture topics
type Seeder struct {
	client   TopicCreator
	config   Config
	fixtures fixtures.PubSubFixtures
	logger   logging.Logger
}

// New creates a Pub/Sub client for the configured project
func New(ctx context.Context, config Config, f fixtures.PubSubFixtures, logger logging.Logger, opts ...option.ClientOption) (*Seeder, error) {
	opts = append(emulator.ClientOptions(config.EmulatorHost), opts...)

	client, err := pubsub.NewClient(ctx, config.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return NewWithCreator(clientCreator{client: client}, config, f, logger), nil
}

// NewWithCreator builds a seeder around an existing topic creator
func NewWithCreator(client TopicCreator, config Config, f fixtures.PubSubFixtures, logger logging.Logger) *Seeder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.OnConflict == "" {
		config.OnConflict = emulator.ConflictSkip
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

// Seed creates every topic, logging and moving on when one fails
func (s *Seeder) Seed(ctx context.Context) (*seed.Result, error) {
	res := seed.NewResult(Name, len(s.fixtures.Topics))

	for _, topicID := range s.fixtures.Topics {
		path := TopicPath(s.config.ProjectID, topicID)

		name, err := s.client.CreateTopic(ctx, topicID)
		switch {
		case err == nil:
			res.Create(name)
			s.logger.Info(ctx, "Topic created: "+name)
		case s.config.OnConflict.Tolerate(err):
			res.Skip(path)
			s.logger.Info(ctx, "Topic already exists, skipping", zap.String("topic", path))
		default:
			s.logger.Error(ctx, "Error creating topic", zap.String("topic", path), zap.Error(err))
		}
	}

	if failed := res.Failed(); failed > 0 {
		return res, fmt.Errorf("%d of %d topics could not be created", failed, res.Total)
	}
	return res, nil
}

// Close closes the client
func (s *Seeder) Close() error {
	return s.client.Close()
}
