package firestoreseed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
)

type fakeAdder struct {
	docs   map[string][]interface{}
	failOn map[string]int
}

func newFakeAdder() *fakeAdder {
	return &fakeAdder{docs: make(map[string][]interface{}), failOn: make(map[string]int)}
}

func (f *fakeAdder) Add(ctx context.Context, collection string, data interface{}) (string, error) {
	if n, ok := f.failOn[collection]; ok && len(f.docs[collection]) == n {
		return "", errors.New("deadline exceeded")
	}
	f.docs[collection] = append(f.docs[collection], data)
	return fmt.Sprintf("doc%d", len(f.docs[collection])), nil
}

func (f *fakeAdder) Close() error { return nil }

func defaultDocuments(t *testing.T) fixtures.FirestoreFixtures {
	t.Helper()
	f, err := fixtures.Default()
	require.NoError(t, err)
	return f.Firestore
}

func TestDocuments(t *testing.T) {
	users, products := Documents(defaultDocuments(t))

	require.Len(t, users, 2)
	alice := users[0].(*UserDocument)
	assert.Equal(t, "Alice Johnson", alice.Name)
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Equal(t, "admin", alice.Role)
	assert.True(t, alice.CreatedAt.IsZero())

	require.Len(t, products, 2)
	mug := products[1].(*ProductDocument)
	assert.Equal(t, "Coffee Mug", mug.Name)
	assert.Equal(t, 15.99, mug.Price)
	assert.Equal(t, "home", mug.Category)
	require.NotNil(t, mug.InStock)
	assert.True(t, *mug.InStock)
}

func TestSeed_AddsAllDocuments(t *testing.T) {
	adder := newFakeAdder()
	s := NewWithAdder(adder, Config{ProjectID: "test-project"}, defaultDocuments(t), logging.FromZap(zaptest.NewLogger(t)))

	res, err := s.Seed(context.Background())
	require.NoError(t, err)

	assert.Len(t, adder.docs[UsersCollection], 2)
	assert.Len(t, adder.docs[ProductsCollection], 2)
	assert.Equal(t, 4, res.Created)
	assert.Equal(t, []string{"users/doc1", "users/doc2", "products/doc1", "products/doc2"}, res.Items)
}

func TestSeed_FailedCollectionDoesNotStopOthers(t *testing.T) {
	adder := newFakeAdder()
	adder.failOn[UsersCollection] = 1
	s := NewWithAdder(adder, Config{ProjectID: "test-project"}, defaultDocuments(t), logging.FromZap(zaptest.NewLogger(t)))

	res, err := s.Seed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "some collections failed to initialize: users")

	assert.Len(t, adder.docs[UsersCollection], 1)
	assert.Len(t, adder.docs[ProductsCollection], 2)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 1, res.Failed())
}

func TestSeed_Emulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set, skipping integration test")
	}

	ctx := context.Background()
	// documents get fresh ids on every run, so each test run uses its own project
	config := Config{ProjectID: fmt.Sprintf("emuseed-test-%d", time.Now().UnixNano())}

	s, err := New(ctx, config, defaultDocuments(t), logging.FromZap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)

	client, err := firestore.NewClient(ctx, config.ProjectID)
	require.NoError(t, err)
	defer client.Close()

	snaps, err := client.Collection(UsersCollection).Documents(ctx).GetAll()
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	var names []string
	for _, snap := range snaps {
		var u UserDocument
		require.NoError(t, snap.DataTo(&u))
		assert.False(t, u.CreatedAt.IsZero(), "created_at is set by the server")
		names = append(names, u.Name+"|"+u.Email+"|"+u.Role)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"Alice Johnson|alice@example.com|admin", "Bob Smith|bob@example.com|user"}, names)

	snaps, err = client.Collection(ProductsCollection).Documents(ctx).GetAll()
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	prices := map[string]float64{}
	for _, snap := range snaps {
		var p ProductDocument
		require.NoError(t, snap.DataTo(&p))
		prices[p.Name+"|"+p.Category] = p.Price
	}
	assert.Equal(t, map[string]float64{"Laptop|electronics": 999.99, "Coffee Mug|home": 15.99}, prices)
}
