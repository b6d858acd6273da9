// Package access resolves per-locker roles and enforces the allow-set
// policies of mutating operations.
package access

import (
	"strings"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
)

// RoleSet is an explicit allow-set of roles. Roles are not ranked.
type RoleSet []model.Role

func Allow(roles ...model.Role) RoleSet {
	return RoleSet(roles)
}

func (s RoleSet) Contains(role model.Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

func (s RoleSet) String() string {
	names := make([]string, len(s))
	for i, r := range s {
		names[i] = string(r)
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Policy pairs an allow-set with the error returned when it is not met.
type Policy struct {
	Name    string
	Allowed RoleSet
	Denied  error
}

var (
	ManageUserGrants = Policy{
		Name:    "manage_user_grants",
		Allowed: Allow(model.RoleAdmin, model.RoleSuperAdmin),
		Denied:  domain.ErrNotLockerAdmin,
	}
	ManageAdminGrants = Policy{
		Name:    "manage_admin_grants",
		Allowed: Allow(model.RoleSuperAdmin),
		Denied:  domain.ErrNotLockerSuperAdmin,
	}
	RevokeAccess = Policy{
		Name:    "revoke_access",
		Allowed: Allow(model.RoleSuperAdmin),
		Denied:  domain.ErrNotLockerSuperAdmin,
	}
	ManageSchedules = Policy{
		Name:    "manage_schedules",
		Allowed: Allow(model.RoleAdmin, model.RoleSuperAdmin),
		Denied:  domain.ErrNotLockerAdmin,
	}
	ChangeCompartmentStatus = Policy{
		Name:    "change_compartment_status",
		Allowed: Allow(model.RoleAdmin, model.RoleSuperAdmin),
		Denied:  domain.ErrNotLockerAdmin,
	}
	MoveLocker = Policy{
		Name:    "move_locker",
		Allowed: Allow(model.RoleSuperAdmin),
		Denied:  domain.ErrNotLockerSuperAdmin,
	}
	ViewCompartments = Policy{
		Name:    "view_compartments",
		Allowed: Allow(model.RoleAdmin, model.RoleSuperAdmin),
		Denied:  domain.ErrNoLockerAccess,
	}
	// ViewOrganization is met by holding one of its roles on any locker of
	// the organization. Owners always pass.
	ViewOrganization = Policy{
		Name:    "view_organization",
		Allowed: Allow(model.RoleAdmin, model.RoleSuperAdmin),
		Denied:  domain.ErrNotOrganizationAdmin,
	}
)

// RequiredToGrant returns the policy an actor must satisfy to give a target
// the requested role. Touching an admin-level role, either the one being
// granted or the one the target already holds, needs super_admin.
func RequiredToGrant(requested, current model.Role) Policy {
	if requested.Privileged() || current.Privileged() {
		return ManageAdminGrants
	}
	return ManageUserGrants
}
