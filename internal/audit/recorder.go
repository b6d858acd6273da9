package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/dangerclosesec/lockity/internal/fanout"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/google/uuid"
)

// Recorder defines the interface for recording audit events
type Recorder interface {
	// Record stores an audit event. Implementations may persist it
	// asynchronously; a nil error only means the event was accepted.
	Record(ctx context.Context, event *model.AuditEvent) error
}

// Enqueuer accepts batches for asynchronous persistence.
type Enqueuer interface {
	Enqueue(b fanout.Batch) error
}

// FanoutRecorder hands audit events to the fan-out processor.
type FanoutRecorder struct {
	queue Enqueuer
	now   func() time.Time
}

func NewFanoutRecorder(queue Enqueuer) *FanoutRecorder {
	return &FanoutRecorder{queue: queue, now: time.Now}
}

func (r *FanoutRecorder) Record(_ context.Context, event *model.AuditEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now().UTC()
	}
	if err := r.queue.Enqueue(fanout.Batch{
		Collection: model.CollectionAuditLogs,
		Documents:  []any{event},
	}); err != nil {
		return fmt.Errorf("failed to enqueue audit event %s: %w", event.Action, err)
	}
	return nil
}

// NoOpRecorder is a recorder that does nothing
type NoOpRecorder struct{}

func (NoOpRecorder) Record(context.Context, *model.AuditEvent) error {
	return nil
}
