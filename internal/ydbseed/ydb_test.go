package ydbseed

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ydb-platform/ydb-go-sdk/v3/table"
	"go.uber.org/zap/zaptest"

	"github.com/global-data-controller/emuseed/internal/emulator"
	"github.com/global-data-controller/emuseed/internal/fixtures"
	"github.com/global-data-controller/emuseed/internal/logging"
)

type fakeExecutor struct {
	existing  map[string]bool
	schemes   []string
	schemeErr error
	txQuery   string
	txParams  *table.QueryParameters
	txErr     error
	closed    bool
}

func (f *fakeExecutor) TableExists(ctx context.Context, name string) (bool, error) {
	return f.existing[name], nil
}

func (f *fakeExecutor) ExecuteScheme(ctx context.Context, query string) error {
	f.schemes = append(f.schemes, query)
	return f.schemeErr
}

func (f *fakeExecutor) ExecuteTx(ctx context.Context, query string, params *table.QueryParameters) error {
	f.txQuery = query
	f.txParams = params
	return f.txErr
}

func (f *fakeExecutor) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func relational(t *testing.T) fixtures.RelationalFixtures {
	t.Helper()
	f, err := fixtures.Default()
	require.NoError(t, err)
	return f.Relational
}

func TestSeed(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewWithExecutor(exec, Config{}, relational(t), logging.FromZap(zaptest.NewLogger(t)))

	res, err := s.Seed(context.Background())
	require.NoError(t, err)

	require.Len(t, exec.schemes, 2)
	assert.Contains(t, exec.schemes[0], "CREATE TABLE users")
	assert.Contains(t, exec.schemes[1], "CREATE TABLE orders")
	assert.Equal(t, UpsertQuery, exec.txQuery)
	require.NotNil(t, exec.txParams)
	assert.Equal(t, 2, exec.txParams.Count())

	assert.Equal(t, 8, res.Total)
	assert.Equal(t, 8, res.Created)
	assert.Equal(t, []string{
		"tables/users", "tables/orders",
		"users/1", "users/2", "users/3",
		"orders/1001", "orders/1002", "orders/1003",
	}, res.Items)

	require.NoError(t, s.Close())
	assert.True(t, exec.closed)
}

func TestSeed_ExistingTables(t *testing.T) {
	exec := &fakeExecutor{existing: map[string]bool{"users": true}}
	s := NewWithExecutor(exec, Config{}, relational(t), nil)

	res, err := s.Seed(context.Background())
	require.NoError(t, err)
	require.Len(t, exec.schemes, 1)
	assert.Contains(t, exec.schemes[0], "CREATE TABLE orders")
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 7, res.Created)

	strict := NewWithExecutor(&fakeExecutor{existing: map[string]bool{"users": true}},
		Config{OnConflict: emulator.ConflictFail}, relational(t), nil)
	_, err = strict.Seed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table users already exists")
}

func TestSeed_SchemeFailureStops(t *testing.T) {
	exec := &fakeExecutor{schemeErr: errors.New("SCHEME_ERROR: Unknown type")}
	s := NewWithExecutor(exec, Config{}, relational(t), nil)

	res, err := s.Seed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table users")
	assert.Len(t, exec.schemes, 1)
	assert.Empty(t, exec.txQuery)
	assert.Equal(t, 8, res.Failed())
}

func TestSeed_UpsertFailure(t *testing.T) {
	exec := &fakeExecutor{txErr: errors.New("transport error")}
	s := NewWithExecutor(exec, Config{}, relational(t), nil)

	res, err := s.Seed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert sample data")
	assert.Equal(t, 2, res.Created)
}

func TestParams_InvalidPrice(t *testing.T) {
	f := relational(t)
	f.Orders[1].Price = "25,50"

	_, err := Params(f)
	require.Error(t, err)
}

func TestParams_EmptyLists(t *testing.T) {
	params, err := Params(fixtures.RelationalFixtures{})
	require.NoError(t, err)
	assert.Equal(t, 2, params.Count())
}

func TestTableName(t *testing.T) {
	tests := map[string]string{
		"CREATE TABLE users (\n user_id Int64,\n PRIMARY KEY (user_id)\n)": "users",
		"create table `orders` (order_id Int64, PRIMARY KEY (order_id))":    "orders",
		"CREATE TABLE events(id Int64, PRIMARY KEY (id))":                   "events",
	}
	for stmt, want := range tests {
		name, ok := tableName(stmt)
		assert.True(t, ok, stmt)
		assert.Equal(t, want, name, stmt)
	}

	for _, stmt := range []string{
		"ALTER TABLE users ADD COLUMN age Uint32",
		"DROP TABLE users",
		"CREATE TABLE",
		"CREATE TABLE (id Int64)",
	} {
		_, ok := tableName(stmt)
		assert.False(t, ok, stmt)
	}
}

func TestSeed_RejectsNonCreateStatement(t *testing.T) {
	f := relational(t)
	f.YDBDDL = append(f.YDBDDL, "ALTER TABLE users ADD COLUMN age Uint32")

	exec := &fakeExecutor{}
	s := NewWithExecutor(exec, Config{}, f, nil)

	_, err := s.Seed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ydb statement 2 is not a CREATE TABLE statement")
	assert.Empty(t, exec.schemes)
	assert.Nil(t, exec.txParams)
}

func TestSeed_YDB(t *testing.T) {
	dsn := os.Getenv("YDB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("YDB_CONNECTION_STRING not set, skipping integration tests")
	}

	ctx := context.Background()
	s, err := New(ctx, Config{DSN: dsn}, relational(t), logging.FromZap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failed())

	// rerun: tables are skipped, rows are upserted again
	res, err = s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 6, res.Created)
}
