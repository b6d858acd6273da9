package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dangerclosesec/lockity/internal/fanout"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureQueue struct {
	batches []fanout.Batch
	err     error
}

func (q *captureQueue) Enqueue(b fanout.Batch) error {
	if q.err != nil {
		return q.err
	}
	q.batches = append(q.batches, b)
	return nil
}

func TestFanoutRecorderFillsEnvelope(t *testing.T) {
	q := &captureQueue{}
	r := NewFanoutRecorder(q)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	ev := &model.AuditEvent{Action: model.ActionScheduleCreated}
	require.NoError(t, r.Record(context.Background(), ev))

	require.Len(t, q.batches, 1)
	b := q.batches[0]
	assert.Equal(t, model.CollectionAuditLogs, b.Collection)
	assert.False(t, b.Notify)
	assert.False(t, b.InsertMany)
	require.Len(t, b.Documents, 1)
	assert.Same(t, ev, b.Documents[0])
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, fixed, ev.Timestamp)
}

func TestFanoutRecorderKeepsExistingID(t *testing.T) {
	q := &captureQueue{}
	ev := &model.AuditEvent{EventID: "evt-1", Action: model.ActionLockerMoved}
	require.NoError(t, NewFanoutRecorder(q).Record(context.Background(), ev))
	assert.Equal(t, "evt-1", ev.EventID)
}

func TestFanoutRecorderReportsQueueErrors(t *testing.T) {
	q := &captureQueue{err: fanout.ErrQueueFull}
	err := NewFanoutRecorder(q).Record(context.Background(), &model.AuditEvent{Action: model.ActionAccessRevoked})
	assert.True(t, errors.Is(err, fanout.ErrQueueFull))
}
