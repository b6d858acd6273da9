// internal/model/schedule.go
package model

import "time"

type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

const (
	ScheduleTimeLayout = "15:04:05"
	ScheduleDateLayout = "2006-01-02"
)

// Schedule is either weekly (RepeatSchedule, DayOfWeek set) or dated
// (ScheduleDate set), never both.
type Schedule struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	LockerID       uint      `gorm:"not null;index;uniqueIndex:idx_schedules_weekly,where:repeat_schedule = true;uniqueIndex:idx_schedules_dated,where:repeat_schedule = false" json:"locker_id"`
	DayOfWeek      *Weekday  `gorm:"size:3;uniqueIndex:idx_schedules_weekly,where:repeat_schedule = true" json:"day_of_week"`
	StartTime      string    `gorm:"size:8;not null" json:"start_time"`
	EndTime        string    `gorm:"size:8;not null" json:"end_time"`
	RepeatSchedule bool      `gorm:"not null" json:"repeat_schedule"`
	ScheduleDate   *string   `gorm:"size:10;uniqueIndex:idx_schedules_dated,where:repeat_schedule = false" json:"schedule_date"`
	CreatedByID    uint      `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Weekly reports whether the schedule is a recurring weekly rule.
func (s *Schedule) Weekly() bool {
	return s.RepeatSchedule
}
