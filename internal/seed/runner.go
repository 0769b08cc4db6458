package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/global-data-controller/emuseed/internal/logging"
	"github.com/global-data-controller/emuseed/internal/telemetry"
)

// Runner executes targets one after another
type Runner struct {
	logger    logging.Logger
	telemetry *telemetry.Telemetry
	notifier  Notifier
	projectID string
	targets   []Target
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithNotifier sends the final report to n
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithTelemetry records spans and metrics for every target
func WithTelemetry(t *telemetry.Telemetry) RunnerOption {
	return func(r *Runner) {
		r.telemetry = t
	}
}

// WithProjectID stamps the report with the project the run targeted
func WithProjectID(projectID string) RunnerOption {
	return func(r *Runner) {
		r.projectID = projectID
	}
}

// NewRunner creates a runner for targets, executed in the given order
func NewRunner(logger logging.Logger, targets []Target, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		logger:  logger,
		targets: targets,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every target. A failing optional target is logged and the run moves
// on; a failing required target ends the run with an error. The report is returned
// in both cases.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		ProjectID: r.projectID,
		Started:   time.Now().UTC(),
	}

	ctx, span := r.telemetry.StartSpan(ctx, "emuseed.run",
		trace.WithAttributes(attribute.String("run_id", report.RunID)))
	defer span.End()

	logger := r.logger.With(zap.String("run_id", report.RunID))
	logger.Info(ctx, "Seeding run started", zap.Int("targets", len(r.targets)))

	var runErr error
	for _, target := range r.targets {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run interrupted before %s: %w", target.Name, err)
			break
		}

		res, err := r.runTarget(ctx, logger.Named(target.Name), target)
		if res != nil {
			report.Results = append(report.Results, res)
		}
		if err == nil {
			continue
		}

		report.Failures = append(report.Failures, Failure{
			Seeder:   target.Name,
			Required: target.Required,
			Error:    err.Error(),
		})
		if target.Required {
			runErr = fmt.Errorf("required seeder %s failed: %w", target.Name, err)
			break
		}
	}

	report.Finished = time.Now().UTC()

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		logger.Error(ctx, "Seeding run failed", zap.Error(runErr))
	} else {
		logger.Info(ctx, "Seeding run completed",
			zap.Int("seeders", len(report.Results)),
			zap.Int("failures", len(report.Failures)),
			zap.Duration("elapsed", report.Finished.Sub(report.Started)))
	}

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, report); err != nil {
			logger.Warn(ctx, "Failed to publish run notification", zap.Error(err))
		}
	}

	return report, runErr
}

func (r *Runner) runTarget(ctx context.Context, logger logging.Logger, target Target) (*Result, error) {
	ctx, span := r.telemetry.StartSpan(ctx, "emuseed.seed."+target.Name)
	defer span.End()

	start := time.Now()
	res, err := r.seed(ctx, logger, target)
	elapsed := time.Since(start)

	created, skipped := 0, 0
	if res != nil {
		created, skipped = res.Created, res.Skipped
	}
	r.telemetry.RecordSeeder(ctx, target.Name, created, skipped, elapsed, err != nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error(ctx, "Seeding failed",
			zap.Bool("required", target.Required),
			zap.Int("created", created),
			zap.Int("skipped", skipped),
			zap.Error(err))
		return res, err
	}

	logger.Info(ctx, "Seeding completed",
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
		zap.Int("total", res.Total),
		zap.Duration("elapsed", elapsed))
	return res, nil
}

func (r *Runner) seed(ctx context.Context, logger logging.Logger, target Target) (*Result, error) {
	s, err := target.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize %s: %w", target.Name, err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn(ctx, "Failed to close client", zap.Error(err))
		}
	}()

	res, err := s.Seed(ctx)
	if err != nil {
		return res, err
	}
	if res == nil {
		res = NewResult(s.Name(), 0)
	}
	return res, nil
}
