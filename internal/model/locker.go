// internal/model/locker.go
package model

import "time"

// Locker is provisioned out-of-band with its serial number and compartments,
// and is claimed when linked to an area.
type Locker struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SerialNumber string    `gorm:"size:100;not null;uniqueIndex" json:"serial_number"`
	AreaID       *uint     `gorm:"uniqueIndex:idx_lockers_area_number,priority:1" json:"area_id"`
	LockerNumber *int      `gorm:"uniqueIndex:idx_lockers_area_number,priority:2" json:"locker_number"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Compartments []Compartment `gorm:"foreignKey:LockerID" json:"compartments,omitempty"`
}

// Linked reports whether the locker has been claimed by an area.
func (l *Locker) Linked() bool {
	return l.AreaID != nil
}

type CompartmentStatus string

const (
	CompartmentOpen        CompartmentStatus = "open"
	CompartmentClosed      CompartmentStatus = "closed"
	CompartmentError       CompartmentStatus = "error"
	CompartmentMaintenance CompartmentStatus = "maintenance"
)

func (s CompartmentStatus) Valid() bool {
	switch s {
	case CompartmentOpen, CompartmentClosed, CompartmentError, CompartmentMaintenance:
		return true
	}
	return false
}

// Compartment belongs to exactly one locker for its whole life.
type Compartment struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	LockerID          uint              `gorm:"not null;uniqueIndex:idx_compartments_locker_number,priority:1" json:"locker_id"`
	CompartmentNumber int               `gorm:"not null;uniqueIndex:idx_compartments_locker_number,priority:2" json:"compartment_number"`
	Status            CompartmentStatus `gorm:"size:20;not null;default:closed" json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// LockerContext is a locker resolved together with its area and
// organization, when linked.
type LockerContext struct {
	Locker       *Locker
	Area         *Area
	Organization *Organization
}

// LockerSummary is a linked locker as seen by one user, with the user's role
// on it.
type LockerSummary struct {
	ID               uint   `json:"id"`
	SerialNumber     string `json:"serial_number"`
	LockerNumber     *int   `json:"locker_number"`
	AreaID           uint   `json:"area_id"`
	AreaName         string `json:"area_name"`
	OrganizationID   uint   `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	Role             Role   `json:"role"`
}
