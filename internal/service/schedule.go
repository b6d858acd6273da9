// internal/service/schedule.go
package service

import (
	"context"
	"fmt"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/repository"
)

const (
	timeRule = "len=8,datetime=" + model.ScheduleTimeLayout
	dateRule = "datetime=" + model.ScheduleDateLayout
	dayRule  = "oneof=mon tue wed thu fri sat sun"
)

// ScheduleService keeps at most one weekly schedule per (locker, weekday)
// and one dated schedule per (locker, date).
type ScheduleService struct {
	*Engine
}

func NewScheduleService(engine *Engine) *ScheduleService {
	return &ScheduleService{Engine: engine}
}

type CreateScheduleInput struct {
	ActorID        uint           `json:"-"`
	LockerID       uint           `json:"-"`
	DayOfWeek      *model.Weekday `json:"day_of_week" validate:"omitempty,oneof=mon tue wed thu fri sat sun"`
	StartTime      string         `json:"start_time" validate:"required,len=8,datetime=15:04:05"`
	EndTime        string         `json:"end_time" validate:"required,len=8,datetime=15:04:05"`
	RepeatSchedule *bool          `json:"repeat_schedule" validate:"required"`
	ScheduleDate   *string        `json:"schedule_date" validate:"omitempty,datetime=2006-01-02"`
}

// ValidateAndCreateSchedule creates a schedule after checking its mode and
// that its day or date slot on the locker is free.
func (s *ScheduleService) ValidateAndCreateSchedule(ctx context.Context, in CreateScheduleInput) (*model.Schedule, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError("invalid schedule", err)
	}
	if err := checkMode(*in.RepeatSchedule, in.DayOfWeek, in.ScheduleDate); err != nil {
		return nil, err
	}

	lc, err := s.store.Lockers.Context(ctx, in.LockerID)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Authorize(ctx, in.LockerID, in.ActorID, access.ManageSchedules); err != nil {
		return nil, err
	}

	schedule := &model.Schedule{
		LockerID:       in.LockerID,
		DayOfWeek:      in.DayOfWeek,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		RepeatSchedule: *in.RepeatSchedule,
		ScheduleDate:   in.ScheduleDate,
		CreatedByID:    in.ActorID,
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Lockers.LockForUpdate(ctx, in.LockerID); err != nil {
			return err
		}
		if err := checkSlot(ctx, tx, schedule); err != nil {
			return err
		}
		return tx.Schedules.Create(ctx, schedule)
	})
	if err != nil {
		return nil, fmt.Errorf("creating schedule: %w", err)
	}

	s.logger.Info("schedule created",
		"locker_id", in.LockerID,
		"schedule_id", schedule.ID,
		"weekly", schedule.Weekly())
	s.recordSchedule(ctx, model.ActionScheduleCreated, in.ActorID, lc, schedule)
	return schedule, nil
}

// UpdateScheduleInput carries a partial update. Fields left unset keep
// their stored value; DayOfWeek and ScheduleDate may be cleared with null.
type UpdateScheduleInput struct {
	ActorID        uint                    `json:"-"`
	LockerID       uint                    `json:"-"`
	ScheduleID     uint                    `json:"-"`
	DayOfWeek      Optional[model.Weekday] `json:"day_of_week"`
	StartTime      Optional[string]        `json:"start_time"`
	EndTime        Optional[string]        `json:"end_time"`
	RepeatSchedule Optional[bool]          `json:"repeat_schedule"`
	ScheduleDate   Optional[string]        `json:"schedule_date"`
}

func (s *ScheduleService) validateUpdate(in UpdateScheduleInput) error {
	fields := map[string]string{}
	checkTime := func(name string, o Optional[string]) {
		if !o.Set {
			return
		}
		if o.Value == nil {
			fields[name] = "cannot be null"
			return
		}
		if err := s.validate.Var(*o.Value, timeRule); err != nil {
			fields[name] = "must match the format " + model.ScheduleTimeLayout
		}
	}
	checkTime("start_time", in.StartTime)
	checkTime("end_time", in.EndTime)

	if in.RepeatSchedule.Set && in.RepeatSchedule.Value == nil {
		fields["repeat_schedule"] = "cannot be null"
	}
	if v := in.DayOfWeek.Value; v != nil {
		if err := s.validate.Var(string(*v), dayRule); err != nil {
			fields["day_of_week"] = "must be one of: mon tue wed thu fri sat sun"
		}
	}
	if v := in.ScheduleDate.Value; v != nil {
		if err := s.validate.Var(*v, dateRule); err != nil {
			fields["schedule_date"] = "must match the format " + model.ScheduleDateLayout
		}
	}

	if len(fields) > 0 {
		return domain.InvalidFields("invalid schedule", fields)
	}
	return nil
}

// ValidateAndUpdateSchedule applies a partial update. The effective mode is
// computed from the supplied fields with stored values as fallback, and the
// slot check ignores the schedule being updated.
func (s *ScheduleService) ValidateAndUpdateSchedule(ctx context.Context, in UpdateScheduleInput) (*model.Schedule, error) {
	if err := s.validateUpdate(in); err != nil {
		return nil, err
	}

	lc, err := s.store.Lockers.Context(ctx, in.LockerID)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Authorize(ctx, in.LockerID, in.ActorID, access.ManageSchedules); err != nil {
		return nil, err
	}

	var schedule *model.Schedule
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Lockers.LockForUpdate(ctx, in.LockerID); err != nil {
			return err
		}
		stored, err := tx.Schedules.FindByID(ctx, in.LockerID, in.ScheduleID)
		if err != nil {
			return err
		}

		merged := *stored
		merged.RepeatSchedule = *in.RepeatSchedule.Or(&stored.RepeatSchedule)
		merged.DayOfWeek = in.DayOfWeek.Or(stored.DayOfWeek)
		merged.ScheduleDate = in.ScheduleDate.Or(stored.ScheduleDate)
		merged.StartTime = *in.StartTime.Or(&stored.StartTime)
		merged.EndTime = *in.EndTime.Or(&stored.EndTime)

		if err := checkMode(merged.RepeatSchedule, merged.DayOfWeek, merged.ScheduleDate); err != nil {
			return err
		}
		if err := checkSlot(ctx, tx, &merged); err != nil {
			return err
		}
		if err := tx.Schedules.Save(ctx, &merged); err != nil {
			return err
		}
		schedule = &merged
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating schedule: %w", err)
	}

	s.logger.Info("schedule updated",
		"locker_id", in.LockerID,
		"schedule_id", schedule.ID,
		"weekly", schedule.Weekly())
	s.recordSchedule(ctx, model.ActionScheduleUpdated, in.ActorID, lc, schedule)
	return schedule, nil
}

// ListSchedules returns the locker's schedules to any user holding a role
// on it.
func (s *ScheduleService) ListSchedules(ctx context.Context, actorID, lockerID uint) ([]model.Schedule, error) {
	if _, err := s.store.Lockers.FindByID(ctx, lockerID); err != nil {
		return nil, err
	}
	if _, ok, err := s.resolver.RoleOf(ctx, lockerID, actorID); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrAccessNotFound
	}
	return s.store.Schedules.ListByLocker(ctx, lockerID)
}

// checkMode enforces that a weekly schedule names a day and no date, and a
// dated schedule names a date and no day.
func checkMode(repeat bool, day *model.Weekday, date *string) error {
	fields := map[string]string{}
	if repeat {
		if day == nil {
			fields["day_of_week"] = "is required for a repeating schedule"
		}
		if date != nil {
			fields["schedule_date"] = "must be null for a repeating schedule"
		}
	} else {
		if date == nil {
			fields["schedule_date"] = "is required for a one-off schedule"
		}
		if day != nil {
			fields["day_of_week"] = "must be null for a one-off schedule"
		}
	}
	if len(fields) > 0 {
		return domain.InvalidFields("invalid schedule mode", fields)
	}
	return nil
}

// checkSlot rejects a schedule whose weekday or date is already taken on
// its locker by another schedule of the same mode.
func checkSlot(ctx context.Context, tx *repository.Store, s *model.Schedule) error {
	if s.Weekly() {
		taken, err := tx.Schedules.WeeklyExists(ctx, s.LockerID, *s.DayOfWeek, s.ID)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrWeeklyScheduleExists
		}
		return nil
	}
	taken, err := tx.Schedules.DatedExists(ctx, s.LockerID, *s.ScheduleDate, s.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrDatedScheduleExists
	}
	return nil
}

func (s *ScheduleService) recordSchedule(ctx context.Context, action string, actorID uint, lc *model.LockerContext, schedule *model.Schedule) {
	actor, err := s.store.Users.FindByID(ctx, actorID)
	if err != nil {
		s.logger.Warn("failed to load schedule actor for audit", "user_id", actorID, "error", err)
		return
	}
	actorSnap, err := s.userSnapshot(ctx, actor, lc.Locker.ID)
	if err != nil {
		actorSnap = model.NewUserSnapshot(actor, "")
	}

	var when string
	if schedule.Weekly() {
		when = "every " + string(*schedule.DayOfWeek)
	} else {
		when = "on " + *schedule.ScheduleDate
	}
	details := map[string]any{
		"schedule_id":     schedule.ID,
		"start_time":      schedule.StartTime,
		"end_time":        schedule.EndTime,
		"repeat_schedule": schedule.RepeatSchedule,
	}
	if schedule.DayOfWeek != nil {
		details["day_of_week"] = string(*schedule.DayOfWeek)
	}
	if schedule.ScheduleDate != nil {
		details["schedule_date"] = *schedule.ScheduleDate
	}

	snapshot := model.NewLockerSnapshot(lc)
	s.record(ctx, &model.AuditEvent{
		Action:      action,
		Description: fmt.Sprintf("Schedule for locker %s %s from %s to %s", lc.Locker.SerialNumber, when, schedule.StartTime, schedule.EndTime),
		Actor:       actorSnap,
		Locker:      &snapshot,
		Details:     details,
	})
}
