package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/global-data-controller/emuseed/internal/seed"
)

// NewSeedEvent creates a seed.completed or seed.failed event carrying the run report.
// The event subject is the run id.
func NewSeedEvent(source string, report *seed.Report, traceID string) (*Event, error) {
	eventData := make(map[string]interface{})
	jsonData, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := json.Unmarshal(jsonData, &eventData); err != nil {
		return nil, fmt.Errorf("failed to convert report: %w", err)
	}

	eventType := EventTypeSeedCompleted
	if !report.Succeeded() {
		eventType = EventTypeSeedFailed
	}

	event := NewEvent(eventType, source, report.RunID, eventData)
	if traceID != "" {
		event.WithTraceID(traceID)
	}
	return event, nil
}

// Notifier publishes the report of a seeding run as an event
type Notifier struct {
	publisher Publisher
	source    string
}

// NewNotifier creates a notifier publishing through p. source identifies the
// emitting process in every event.
func NewNotifier(p Publisher, source string) *Notifier {
	return &Notifier{publisher: p, source: source}
}

// Notify implements seed.Notifier
func (n *Notifier) Notify(ctx context.Context, report *seed.Report) error {
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	event, err := NewSeedEvent(n.source, report, traceID)
	if err != nil {
		return err
	}
	return n.publisher.PublishEvent(ctx, event)
}
