package pubsubseed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/global-data-controller/emuseed/internal/emulator"
	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
)

const testProject = "test-project"

func dial(t *testing.T, addr string) option.ClientOption {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	return option.WithGRPCConn(conn)
}

func defaultTopics(t *testing.T) fixtures.PubSubFixtures {
	t.Helper()
	f, err := fixtures.Default()
	require.NoError(t, err)
	return f.PubSub
}

func TestSeed_CreatesTopics(t *testing.T) {
	srv := pstest.NewServer()
	defer srv.Close()
	ctx := context.Background()

	s, err := New(ctx, Config{ProjectID: testProject}, defaultTopics(t), logging.FromZap(zaptest.NewLogger(t)), dial(t, srv.Addr))
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, []string{
		"projects/test-project/topics/email-notifications",
		"projects/test-project/topics/push-notifications",
	}, res.Items)

	client, err := pubsub.NewClient(ctx, testProject, dial(t, srv.Addr))
	require.NoError(t, err)
	defer client.Close()

	for _, id := range []string{"email-notifications", "push-notifications"} {
		ok, err := client.Topic(id).Exists(ctx)
		require.NoError(t, err)
		assert.True(t, ok, "topic %s", id)
	}
}

func TestSeed_Rerun(t *testing.T) {
	srv := pstest.NewServer()
	defer srv.Close()
	ctx := context.Background()
	logger := logging.FromZap(zaptest.NewLogger(t))

	first, err := New(ctx, Config{ProjectID: testProject}, defaultTopics(t), logger, dial(t, srv.Addr))
	require.NoError(t, err)
	_, err = first.Seed(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(ctx, Config{ProjectID: testProject}, defaultTopics(t), logger, dial(t, srv.Addr))
	require.NoError(t, err)
	defer second.Close()

	res, err := second.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 2, res.Skipped)

	strict, err := New(ctx, Config{ProjectID: testProject, OnConflict: emulator.ConflictFail}, defaultTopics(t), logger, dial(t, srv.Addr))
	require.NoError(t, err)
	defer strict.Close()

	_, err = strict.Seed(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 topics")
}

type fakeCreator struct {
	errs    map[string]error
	created []string
}

func (f *fakeCreator) CreateTopic(ctx context.Context, topicID string) (string, error) {
	if err := f.errs[topicID]; err != nil {
		return "", err
	}
	f.created = append(f.created, topicID)
	return TopicPath(testProject, topicID), nil
}

func (f *fakeCreator) Close() error { return nil }

func TestSeed_TopicFailureContinues(t *testing.T) {
	creator := &fakeCreator{errs: map[string]error{
		"email-notifications": errors.New("connection refused"),
	}}
	s := NewWithCreator(creator, Config{ProjectID: testProject}, defaultTopics(t), logging.FromZap(zaptest.NewLogger(t)))

	res, err := s.Seed(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"push-notifications"}, creator.created)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed())
}

func TestSeed_WrappedAlreadyExists(t *testing.T) {
	exists := status.Error(codes.AlreadyExists, "Topic already exists")
	creator := &fakeCreator{errs: map[string]error{
		"push-notifications": fmt.Errorf("create topic: %w", exists),
	}}
	s := NewWithCreator(creator, Config{ProjectID: testProject}, defaultTopics(t), nil)

	res, err := s.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
}

func TestTopicPath(t *testing.T) {
	assert.Equal(t, "projects/p/topics/t", TopicPath("p", "t"))
}
