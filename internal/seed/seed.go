// Package seed runs seeders against emulator backends and reports on the run.
package seed

import (
	"context"
	"time"
)

// Seeder writes one backend's schema objects and records
type Seeder interface {
	// Name identifies the backend, e.g. "bigtable"
	Name() string
	// Seed creates the schema objects and inserts the records. It may return a
	// partial result together with an error.
	Seed(ctx context.Context) (*Result, error)
	// Close releases the seeder's clients
	Close() error
}

// Opener constructs a seeder, typically dialing its client
type Opener func(ctx context.Context) (Seeder, error)

// Target is a seeder the runner may execute
type Target struct {
	Name string
	// Required targets stop the run and fail it when they fail
	Required bool
	Open     Opener
}

// Notifier receives the report once a run is over
type Notifier interface {
	Notify(ctx context.Context, report *Report) error
}

// Result counts what one seeder did
type Result struct {
	Seeder  string   `json:"seeder"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Total   int      `json:"total"`
	Items   []string `json:"items,omitempty"`
}

// NewResult returns an empty result for a seeder that will attempt total items
func NewResult(seeder string, total int) *Result {
	return &Result{Seeder: seeder, Total: total}
}

// Create records a created item
func (r *Result) Create(item string) {
	r.Created++
	r.Items = append(r.Items, item)
}

// CreateN records n items created in one call, e.g. a batch write
func (r *Result) CreateN(n int, items ...string) {
	r.Created += n
	r.Items = append(r.Items, items...)
}

// Skip records an item that already existed
func (r *Result) Skip(item string) {
	r.Skipped++
}

// Failed is the number of items neither created nor skipped
func (r *Result) Failed() int {
	return r.Total - r.Created - r.Skipped
}

// Failure describes a seeder that returned an error
type Failure struct {
	Seeder   string `json:"seeder"`
	Required bool   `json:"required"`
	Error    string `json:"error"`
}

// Report summarises a run
type Report struct {
	RunID     string    `json:"run_id"`
	ProjectID string    `json:"project_id"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Results   []*Result `json:"results"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Succeeded reports whether every executed seeder succeeded
func (r *Report) Succeeded() bool {
	return len(r.Failures) == 0
}

// RequiredFailed reports whether a required seeder failed
func (r *Report) RequiredFailed() bool {
	for _, f := range r.Failures {
		if f.Required {
			return true
		}
	}
	return false
}

// Result returns the result of the named seeder, or nil
func (r *Report) Result(seeder string) *Result {
	for _, res := range r.Results {
		if res.Seeder == seeder {
			return res
		}
	}
	return nil
}
