// internal/model/event.go
package model

import "time"

// Event store collections.
const (
	CollectionAuditLogs  = "audit_logs"
	CollectionLockerLogs = "lockers_logs"
)

// Audit actions.
const (
	ActionCompartmentAccessGranted = "compartment_access_granted"
	ActionAccessRevoked            = "access_revoked"
	ActionCompartmentStatusChanged = "compartment_status_changed"
	ActionScheduleCreated          = "schedule_created"
	ActionScheduleUpdated          = "schedule_updated"
	ActionOrganizationCreated      = "organization_created"
	ActionOrganizationUpdated      = "organization_updated"
	ActionAreaCreated              = "area_created"
	ActionLockerMoved              = "locker_moved"
)

// LockerAction is the physical action reported by a locker device.
type LockerAction string

const (
	LockerOpening       LockerAction = "opening"
	LockerClosing       LockerAction = "closing"
	LockerFailedAttempt LockerAction = "failed_attempt"
	LockerAlarm         LockerAction = "alarm"
	LockerPhoto         LockerAction = "photo"
)

// Notifiable reports whether owners are pushed a notification for the action.
func (a LockerAction) Notifiable() bool {
	switch a {
	case LockerOpening, LockerClosing, LockerFailedAttempt:
		return true
	}
	return false
}

func (a LockerAction) Valid() bool {
	switch a {
	case LockerOpening, LockerClosing, LockerFailedAttempt, LockerAlarm, LockerPhoto:
		return true
	}
	return false
}

// UserSnapshot is a user's identity as it was when an event happened.
type UserSnapshot struct {
	ID             uint   `bson:"id" json:"id"`
	FullName       string `bson:"full_name" json:"full_name"`
	Email          string `bson:"email" json:"email"`
	Role           Role   `bson:"role,omitempty" json:"role,omitempty"`
	LastName       string `bson:"last_name,omitempty" json:"last_name,omitempty"`
	SecondLastName string `bson:"second_last_name,omitempty" json:"second_last_name,omitempty"`
}

// LockerSnapshot captures a locker with its organization and area names.
type LockerSnapshot struct {
	LockerID          uint   `bson:"locker_id" json:"locker_id"`
	SerialNumber      string `bson:"serial_number" json:"serial_number"`
	LockerNumber      *int   `bson:"locker_number,omitempty" json:"locker_number,omitempty"`
	OrganizationName  string `bson:"organization_name,omitempty" json:"organization_name,omitempty"`
	AreaName          string `bson:"area_name,omitempty" json:"area_name,omitempty"`
	CompartmentID     uint   `bson:"compartment_id,omitempty" json:"compartment_id,omitempty"`
	CompartmentNumber int    `bson:"compartment_number,omitempty" json:"compartment_number,omitempty"`
}

// NewUserSnapshot denormalizes u, tagging it with role when non-empty.
func NewUserSnapshot(u *User, role Role) UserSnapshot {
	return UserSnapshot{
		ID:             u.ID,
		FullName:       u.FullName(),
		Email:          u.Email,
		Role:           role,
		LastName:       u.LastName,
		SecondLastName: u.SecondLastName,
	}
}

// NewLockerSnapshot denormalizes a locker context. Area and organization
// names are left empty for unlinked lockers.
func NewLockerSnapshot(lc *LockerContext) LockerSnapshot {
	s := LockerSnapshot{
		LockerID:     lc.Locker.ID,
		SerialNumber: lc.Locker.SerialNumber,
		LockerNumber: lc.Locker.LockerNumber,
	}
	if lc.Area != nil {
		s.AreaName = lc.Area.Name
	}
	if lc.Organization != nil {
		s.OrganizationName = lc.Organization.Name
	}
	return s
}

// WithCompartment returns a copy of s scoped to one compartment.
func (s LockerSnapshot) WithCompartment(c *Compartment) LockerSnapshot {
	s.CompartmentID = c.ID
	s.CompartmentNumber = c.CompartmentNumber
	return s
}

// AuditEvent records who did what to whom.
type AuditEvent struct {
	EventID     string          `bson:"event_id" json:"event_id"`
	Action      string          `bson:"action" json:"action"`
	Description string          `bson:"description" json:"description"`
	Actor       UserSnapshot    `bson:"performed_by" json:"performed_by"`
	Target      *UserSnapshot   `bson:"target_user,omitempty" json:"target_user,omitempty"`
	Locker      *LockerSnapshot `bson:"locker,omitempty" json:"locker,omitempty"`
	Details     map[string]any  `bson:"details,omitempty" json:"details,omitempty"`
	Timestamp   time.Time       `bson:"timestamp" json:"timestamp"`
}

// LockerLog records a physical event reported by a locker.
type LockerLog struct {
	EventID     string         `bson:"event_id" json:"event_id"`
	Action      LockerAction   `bson:"action" json:"action"`
	Source      string         `bson:"source" json:"source"`
	PerformedBy *UserSnapshot  `bson:"performed_by,omitempty" json:"performed_by,omitempty"`
	Locker      LockerSnapshot `bson:"locker" json:"locker"`
	PhotoPath   string         `bson:"photo_path,omitempty" json:"photo_path,omitempty"`
	Timestamp   time.Time      `bson:"timestamp" json:"timestamp"`
}
