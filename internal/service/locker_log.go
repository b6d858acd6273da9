// internal/service/locker_log.go
package service

import (
	"context"
	"errors"
	"time"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/fanout"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/google/uuid"
)

// LockerLogService turns device reports into locker log documents and
// queues them for persistence and notification.
type LockerLogService struct {
	*Engine
	queue EventQueue
	now   func() time.Time
}

func NewLockerLogService(engine *Engine, queue EventQueue) *LockerLogService {
	return &LockerLogService{Engine: engine, queue: queue, now: time.Now}
}

type LockerLogInput struct {
	SerialNumber      string             `json:"serial_number" validate:"required,max=100"`
	UserID            *uint              `json:"user_id"`
	CompartmentNumber int                `json:"compartment_number" validate:"omitempty,min=1"`
	Action            model.LockerAction `json:"action" validate:"required"`
	Source            string             `json:"source" validate:"required,max=50"`
	PhotoPath         string             `json:"photo_path"`
}

// Ingest queues one locker log. Owners are notified after persistence when
// the action is one they are alerted about.
func (s *LockerLogService) Ingest(ctx context.Context, in LockerLogInput) (*model.LockerLog, error) {
	logs, err := s.IngestBatch(ctx, []LockerLogInput{in})
	if err != nil {
		return nil, err
	}
	return logs[0], nil
}

// IngestBatch queues several logs from the same locker as one batch.
func (s *LockerLogService) IngestBatch(ctx context.Context, in []LockerLogInput) ([]*model.LockerLog, error) {
	if len(in) == 0 {
		return nil, domain.InvalidInput("no locker logs supplied")
	}
	serial := in[0].SerialNumber
	for _, entry := range in {
		if err := s.validate.Struct(entry); err != nil {
			return nil, validationError("invalid locker log", err)
		}
		if !entry.Action.Valid() {
			return nil, domain.InvalidFields("invalid locker log", map[string]string{"action": "unknown locker action"})
		}
		if entry.SerialNumber != serial {
			return nil, domain.InvalidInput("a batch must come from a single locker")
		}
	}

	lc, err := s.store.Lockers.ContextBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}

	logs := make([]*model.LockerLog, 0, len(in))
	docs := make([]any, 0, len(in))
	notify := false
	for _, entry := range in {
		log, err := s.build(ctx, lc, entry)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
		docs = append(docs, log)
		notify = notify || entry.Action.Notifiable()
	}

	batch := fanout.Batch{
		Collection:   model.CollectionLockerLogs,
		Documents:    docs,
		InsertMany:   len(docs) > 1,
		Notify:       notify,
		SerialNumber: serial,
	}
	if err := s.queue.Enqueue(batch); err != nil {
		if errors.Is(err, fanout.ErrInvalidBatch) {
			return nil, domain.InvalidInput("invalid locker log batch: %v", err)
		}
		return nil, domain.Transient("event queue unavailable", err)
	}

	s.logger.Debug("locker logs queued",
		"serial_number", serial,
		"count", len(logs),
		"notify", notify)
	return logs, nil
}

func (s *LockerLogService) build(ctx context.Context, lc *model.LockerContext, in LockerLogInput) (*model.LockerLog, error) {
	snapshot := model.NewLockerSnapshot(lc)
	if in.CompartmentNumber > 0 {
		compartment, err := s.store.Compartments.FindByNumber(ctx, lc.Locker.ID, in.CompartmentNumber)
		if err != nil {
			return nil, err
		}
		snapshot = snapshot.WithCompartment(compartment)
	}

	log := &model.LockerLog{
		EventID:   uuid.NewString(),
		Action:    in.Action,
		Source:    in.Source,
		Locker:    snapshot,
		PhotoPath: in.PhotoPath,
		Timestamp: s.now().UTC(),
	}
	if in.UserID != nil {
		user, err := s.store.Users.FindByID(ctx, *in.UserID)
		if err != nil {
			return nil, err
		}
		performer, err := s.userSnapshot(ctx, user, lc.Locker.ID)
		if err != nil {
			return nil, err
		}
		log.PerformedBy = &performer
	}
	return log, nil
}
