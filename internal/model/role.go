// internal/model/role.go
package model

import "time"

// Role is scoped to a (locker, user) pair.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// Privileged reports whether the role is admin-level or above.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) String() string {
	return string(r)
}

type LockerUserRole struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LockerID  uint      `gorm:"not null;uniqueIndex:idx_locker_user_roles_pair,priority:1" json:"locker_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_locker_user_roles_pair,priority:2" json:"user_id"`
	Role      Role      `gorm:"size:20;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleAssignment is a user's role on a linked locker, with where the locker
// sits.
type RoleAssignment struct {
	UserID           uint   `json:"-"`
	LockerID         uint   `json:"locker_id"`
	SerialNumber     string `json:"serial_number"`
	LockerNumber     *int   `json:"locker_number"`
	AreaName         string `json:"area"`
	OrganizationName string `json:"organization"`
	Role             Role   `json:"role"`
}

// AccessPermission marks that a user holds some compartment access on a
// locker. Deleting it cascades to its compartment grants.
type AccessPermission struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	LockerID       uint      `gorm:"not null;uniqueIndex:idx_access_permissions_pair,priority:1" json:"locker_id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_access_permissions_pair,priority:2" json:"user_id"`
	HasFingerprint bool      `gorm:"not null;default:false" json:"has_fingerprint"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Compartments []AccessPermissionCompartment `gorm:"foreignKey:AccessPermissionID;constraint:OnDelete:CASCADE" json:"compartments,omitempty"`
}

// AccessPermissionCompartment is a grant: one user may open one compartment.
type AccessPermissionCompartment struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	AccessPermissionID uint      `gorm:"not null;uniqueIndex:idx_access_permission_compartments_pair,priority:1" json:"access_permission_id"`
	CompartmentID      uint      `gorm:"not null;uniqueIndex:idx_access_permission_compartments_pair,priority:2" json:"compartment_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// CompartmentGrant is one user's grant on one compartment of a locker.
type CompartmentGrant struct {
	UserID            uint
	CompartmentID     uint
	CompartmentNumber int
}
