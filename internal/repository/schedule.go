// internal/repository/schedule.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
	"gorm.io/gorm"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *model.Schedule) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// Save writes every column of an existing schedule, including nulls.
func (r *ScheduleRepository) Save(ctx context.Context, s *model.Schedule) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) FindByID(ctx context.Context, lockerID, id uint) (*model.Schedule, error) {
	var s model.Schedule
	result := r.db.WithContext(ctx).
		Where("id = ? AND locker_id = ?", id, lockerID).
		First(&s)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to find schedule: %w", result.Error)
	}
	return &s, nil
}

// WeeklyExists reports whether another weekly schedule occupies
// (locker, day). excludeID of zero excludes nothing.
func (r *ScheduleRepository) WeeklyExists(ctx context.Context, lockerID uint, day model.Weekday, excludeID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Schedule{}).
		Where("locker_id = ? AND repeat_schedule = ? AND day_of_week = ? AND id <> ?", lockerID, true, day, excludeID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check weekly schedules: %w", err)
	}
	return count > 0, nil
}

// DatedExists reports whether another dated schedule occupies
// (locker, date). excludeID of zero excludes nothing.
func (r *ScheduleRepository) DatedExists(ctx context.Context, lockerID uint, date string, excludeID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Schedule{}).
		Where("locker_id = ? AND repeat_schedule = ? AND schedule_date = ? AND id <> ?", lockerID, false, date, excludeID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check dated schedules: %w", err)
	}
	return count > 0, nil
}

func (r *ScheduleRepository) ListByLocker(ctx context.Context, lockerID uint) ([]model.Schedule, error) {
	var ss []model.Schedule
	if err := r.db.WithContext(ctx).
		Where("locker_id = ?", lockerID).
		Order("id ASC").
		Find(&ss).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return ss, nil
}
