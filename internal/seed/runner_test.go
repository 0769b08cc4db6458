package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/global-data-controller/emuseed/internal/logging"
)

type fakeSeeder struct {
	name   string
	result *Result
	err    error
	log    *[]string
	closed bool
}

func (f *fakeSeeder) Name() string { return f.name }

func (f *fakeSeeder) Seed(ctx context.Context) (*Result, error) {
	*f.log = append(*f.log, f.name)
	return f.result, f.err
}

func (f *fakeSeeder) Close() error {
	f.closed = true
	return nil
}

type recordingNotifier struct {
	reports []*Report
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, report *Report) error {
	n.reports = append(n.reports, report)
	return n.err
}

func target(name string, required bool, s *fakeSeeder) Target {
	return Target{
		Name:     name,
		Required: required,
		Open: func(ctx context.Context) (Seeder, error) {
			return s, nil
		},
	}
}

func TestRunner_RunsTargetsInOrder(t *testing.T) {
	var calls []string
	bt := &fakeSeeder{name: "bigtable", log: &calls, result: &Result{Seeder: "bigtable", Created: 2, Total: 2}}
	ps := &fakeSeeder{name: "pubsub", log: &calls, result: &Result{Seeder: "pubsub", Created: 1, Skipped: 1, Total: 2}}
	notifier := &recordingNotifier{}

	runner := NewRunner(logging.FromZap(zaptest.NewLogger(t)),
		[]Target{target("bigtable", false, bt), target("pubsub", false, ps)},
		WithNotifier(notifier),
		WithProjectID("test-project"))

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"bigtable", "pubsub"}, calls)
	assert.True(t, bt.closed)
	assert.True(t, ps.closed)

	assert.True(t, report.Succeeded())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "test-project", report.ProjectID)
	assert.False(t, report.Finished.Before(report.Started))
	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.Result("pubsub").Skipped)
	assert.Nil(t, report.Result("spanner"))

	require.Len(t, notifier.reports, 1)
	assert.Same(t, report, notifier.reports[0])
}

func TestRunner_OptionalFailureContinues(t *testing.T) {
	var calls []string
	fs := &fakeSeeder{name: "firestore", log: &calls,
		result: &Result{Seeder: "firestore", Created: 2, Total: 4},
		err:    errors.New("products: deadline exceeded")}
	sp := &fakeSeeder{name: "spanner", log: &calls, result: &Result{Seeder: "spanner", Created: 6, Total: 6}}

	runner := NewRunner(logging.FromZap(zaptest.NewLogger(t)),
		[]Target{target("firestore", false, fs), target("spanner", true, sp)})

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"firestore", "spanner"}, calls)
	assert.False(t, report.Succeeded())
	assert.False(t, report.RequiredFailed())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "firestore", report.Failures[0].Seeder)
	assert.Contains(t, report.Failures[0].Error, "deadline exceeded")

	// partial results are kept
	assert.Equal(t, 2, report.Result("firestore").Failed())
}

func TestRunner_RequiredFailureStopsRun(t *testing.T) {
	var calls []string
	sp := &fakeSeeder{name: "spanner", log: &calls, err: errors.New("instance creation timed out")}
	ydb := &fakeSeeder{name: "ydb", log: &calls, result: &Result{Seeder: "ydb"}}
	notifier := &recordingNotifier{err: errors.New("nats unavailable")}

	runner := NewRunner(logging.FromZap(zaptest.NewLogger(t)),
		[]Target{target("spanner", true, sp), target("ydb", false, ydb)},
		WithNotifier(notifier))

	report, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required seeder spanner failed")

	assert.Equal(t, []string{"spanner"}, calls)
	assert.True(t, sp.closed)
	assert.True(t, report.RequiredFailed())

	// the report still goes out, and a notifier error does not change the outcome
	require.Len(t, notifier.reports, 1)
	assert.True(t, notifier.reports[0].RequiredFailed())
}

func TestRunner_OpenFailure(t *testing.T) {
	failing := Target{
		Name: "datastore",
		Open: func(ctx context.Context) (Seeder, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}

	report, err := NewRunner(nil, []Target{failing}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Error, "initialize datastore")
	assert.Empty(t, report.Results)
}

func TestRunner_CancelledContext(t *testing.T) {
	var calls []string
	bt := &fakeSeeder{name: "bigtable", log: &calls, result: &Result{Seeder: "bigtable"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(nil, []Target{target("bigtable", false, bt)}).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestRunner_NilResultBecomesEmpty(t *testing.T) {
	var calls []string
	s := &fakeSeeder{name: "pubsub", log: &calls}

	report, err := NewRunner(nil, []Target{target("pubsub", false, s)}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "pubsub", report.Results[0].Seeder)
}

func TestResultCounters(t *testing.T) {
	r := NewResult("datastore", 6)
	r.CreateN(4, "User/user1", "User/user2")
	r.Create("Order/order1")
	r.Skip("Order/order2")

	assert.Equal(t, 5, r.Created)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 0, r.Failed())
	assert.Equal(t, []string{"User/user1", "User/user2", "Order/order1"}, r.Items)
}
