// internal/service/grant.go
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/email"
	"github.com/dangerclosesec/lockity/internal/email/mailer"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/repository"
)

// GrantManager creates and revokes per-compartment access.
type GrantManager struct {
	*Engine
	mailer    email.Sender
	signupURL string
}

func NewGrantManager(engine *Engine, sender email.Sender, signupURL string) *GrantManager {
	return &GrantManager{Engine: engine, mailer: sender, signupURL: signupURL}
}

type AssignInput struct {
	ActorID           uint       `json:"-"`
	LockerID          uint       `json:"-"`
	CompartmentNumber int        `json:"-"`
	UserEmail         string     `json:"user_email" validate:"required,email"`
	Role              model.Role `json:"role" validate:"required"`
}

type AssignResult struct {
	UserID             uint       `json:"user_id"`
	Role               model.Role `json:"role"`
	AccessPermissionID uint       `json:"access_permission_id"`
	CompartmentID      uint       `json:"compartment_id"`
	// Created is false when the user already held this grant.
	Created bool `json:"created"`
}

// AssignUserToCompartment grants the user with UserEmail access to one
// compartment and sets their role on the locker. Granting an existing grant
// again succeeds without notifying anyone.
func (m *GrantManager) AssignUserToCompartment(ctx context.Context, in AssignInput) (*AssignResult, error) {
	if err := m.validate.Struct(in); err != nil {
		return nil, validationError("invalid assignment", err)
	}
	if !in.Role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if in.CompartmentNumber <= 0 {
		return nil, domain.ErrInvalidNumber
	}

	lc, err := m.store.Lockers.Context(ctx, in.LockerID)
	if err != nil {
		return nil, err
	}
	compartment, err := m.store.Compartments.FindByNumber(ctx, in.LockerID, in.CompartmentNumber)
	if err != nil {
		return nil, err
	}

	actor, err := m.store.Users.FindByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	target, err := m.store.Users.FindByEmail(ctx, in.UserEmail)
	if errors.Is(err, domain.ErrUserNotFound) {
		m.invite(ctx, actor, in.UserEmail)
		return nil, domain.ErrUserInvited
	}
	if err != nil {
		return nil, err
	}

	current, _, err := m.resolver.RoleOf(ctx, in.LockerID, target.ID)
	if err != nil {
		return nil, err
	}
	if err := m.resolver.Authorize(ctx, in.LockerID, actor.ID, access.RequiredToGrant(in.Role, current)); err != nil {
		return nil, err
	}
	if target.ID == actor.ID && current != in.Role {
		return nil, domain.ErrSelfRoleChange
	}

	result := &AssignResult{UserID: target.ID, Role: in.Role, CompartmentID: compartment.ID}
	err = m.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Roles.Upsert(ctx, in.LockerID, target.ID, in.Role); err != nil {
			return err
		}
		perm, err := tx.Permissions.FindOrCreate(ctx, in.LockerID, target.ID)
		if err != nil {
			return err
		}
		result.AccessPermissionID = perm.ID
		result.Created, err = tx.Permissions.GrantCompartment(ctx, perm.ID, compartment.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("assigning compartment: %w", err)
	}
	m.resolver.Invalidate(ctx, in.LockerID, target.ID)

	if !result.Created {
		m.logger.Debug("compartment already granted",
			"locker_id", in.LockerID,
			"compartment", in.CompartmentNumber,
			"user_id", target.ID)
		return result, nil
	}

	m.logger.Info("compartment access granted",
		"locker_id", in.LockerID,
		"compartment", in.CompartmentNumber,
		"user_id", target.ID,
		"role", in.Role,
		"granted_by", actor.ID)

	snapshot := model.NewLockerSnapshot(lc).WithCompartment(compartment)
	actorSnap, err := m.userSnapshot(ctx, actor, in.LockerID)
	if err != nil {
		m.logger.Warn("failed to resolve actor role for audit", "error", err)
		actorSnap = model.NewUserSnapshot(actor, "")
	}
	targetSnap := model.NewUserSnapshot(target, in.Role)
	m.record(ctx, &model.AuditEvent{
		Action:      model.ActionCompartmentAccessGranted,
		Description: fmt.Sprintf("%s granted %s access to compartment %d of locker %s", actor.Email, target.Email, compartment.CompartmentNumber, lc.Locker.SerialNumber),
		Actor:       actorSnap,
		Target:      &targetSnap,
		Locker:      &snapshot,
		Details: map[string]any{
			"role":               string(in.Role),
			"previous_role":      string(current),
			"compartment_number": compartment.CompartmentNumber,
		},
	})

	if err := mailer.SendAccessGranted(m.mailer, target.Email, mailer.AccessGrantedTemplateData{
		Name:              target.FullName(),
		GrantedBy:         actor.FullName(),
		Role:              string(in.Role),
		CompartmentNumber: compartment.CompartmentNumber,
		SerialNumber:      lc.Locker.SerialNumber,
		OrganizationName:  snapshot.OrganizationName,
		AreaName:          snapshot.AreaName,
	}); err != nil {
		m.sideEffectFailed(ctx, "access granted email", err, map[string]any{"user_id": target.ID})
	}

	return result, nil
}

func (m *GrantManager) invite(ctx context.Context, actor *model.User, guestEmail string) {
	if err := mailer.SendInvitation(m.mailer, actor.Email, guestEmail, m.signupURL); err != nil {
		m.sideEffectFailed(ctx, "invitation email", err, map[string]any{"invited_by": actor.ID})
		return
	}
	m.logger.Info("invitation sent", "invited_by", actor.ID)
}

type RemoveInput struct {
	ActorID  uint
	LockerID uint
	UserID   uint
	// CompartmentNumber selects a single grant. Nil revokes all access to
	// the locker.
	CompartmentNumber *int
}

type RemoveResult struct {
	UserID            uint   `json:"user_id"`
	FullLocker        bool   `json:"full_locker"`
	CompartmentNumber *int   `json:"compartment_number,omitempty"`
	Description       string `json:"description"`
}

// RemoveUserAccess revokes one compartment grant, or with no compartment
// the user's permission, every grant under it and their role.
func (m *GrantManager) RemoveUserAccess(ctx context.Context, in RemoveInput) (*RemoveResult, error) {
	if in.CompartmentNumber != nil && *in.CompartmentNumber <= 0 {
		return nil, domain.ErrInvalidNumber
	}

	lc, err := m.store.Lockers.Context(ctx, in.LockerID)
	if err != nil {
		return nil, err
	}
	actor, err := m.store.Users.FindByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	target, err := m.store.Users.FindByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := m.resolver.Authorize(ctx, in.LockerID, actor.ID, access.RevokeAccess); err != nil {
		return nil, err
	}
	if actor.ID == target.ID {
		return nil, domain.ErrSelfRevocation
	}

	targetSnap, err := m.userSnapshot(ctx, target, in.LockerID)
	if err != nil {
		return nil, err
	}
	snapshot := model.NewLockerSnapshot(lc)
	result := &RemoveResult{UserID: target.ID, CompartmentNumber: in.CompartmentNumber}

	if in.CompartmentNumber != nil {
		compartment, err := m.store.Compartments.FindByNumber(ctx, in.LockerID, *in.CompartmentNumber)
		if err != nil {
			return nil, err
		}
		if err := m.revokeCompartment(ctx, in.LockerID, target.ID, compartment.ID); err != nil {
			return nil, err
		}
		snapshot = snapshot.WithCompartment(compartment)
		result.Description = fmt.Sprintf("Removed %s's access to compartment %d of locker %s",
			target.Email, compartment.CompartmentNumber, lc.Locker.SerialNumber)
	} else {
		if err := m.revokeLocker(ctx, in.LockerID, target.ID); err != nil {
			return nil, err
		}
		result.FullLocker = true
		result.Description = fmt.Sprintf("Removed %s's full access to locker %s",
			target.Email, lc.Locker.SerialNumber)
	}
	m.resolver.Invalidate(ctx, in.LockerID, target.ID)

	m.logger.Info("access revoked",
		"locker_id", in.LockerID,
		"user_id", target.ID,
		"full_locker", result.FullLocker,
		"revoked_by", actor.ID)

	actorSnap, err := m.userSnapshot(ctx, actor, in.LockerID)
	if err != nil {
		m.logger.Warn("failed to resolve actor role for audit", "error", err)
		actorSnap = model.NewUserSnapshot(actor, "")
	}
	m.record(ctx, &model.AuditEvent{
		Action:      model.ActionAccessRevoked,
		Description: result.Description,
		Actor:       actorSnap,
		Target:      &targetSnap,
		Locker:      &snapshot,
		Details:     map[string]any{"full_locker": result.FullLocker},
	})

	return result, nil
}

func (m *GrantManager) revokeCompartment(ctx context.Context, lockerID, userID, compartmentID uint) error {
	perm, err := m.store.Permissions.Find(ctx, lockerID, userID)
	if errors.Is(err, domain.ErrAccessNotFound) {
		return domain.ErrGrantNotFound
	}
	if err != nil {
		return err
	}
	removed, err := m.store.Permissions.RevokeCompartment(ctx, perm.ID, compartmentID)
	if err != nil {
		return fmt.Errorf("revoking compartment: %w", err)
	}
	if !removed {
		return domain.ErrGrantNotFound
	}
	return nil
}

func (m *GrantManager) revokeLocker(ctx context.Context, lockerID, userID uint) error {
	return m.store.Transaction(ctx, func(tx *repository.Store) error {
		found := false
		perm, err := tx.Permissions.Find(ctx, lockerID, userID)
		switch {
		case errors.Is(err, domain.ErrAccessNotFound):
		case err != nil:
			return err
		default:
			found = true
			if err := tx.Permissions.Delete(ctx, perm.ID); err != nil {
				return err
			}
		}

		hadRole, err := tx.Roles.Delete(ctx, lockerID, userID)
		if err != nil {
			return err
		}
		if !found && !hadRole {
			return domain.ErrAccessNotFound
		}
		return nil
	})
}

// UpdateCompartmentStatus records a compartment's reported state.
func (m *GrantManager) UpdateCompartmentStatus(ctx context.Context, actorID, lockerID uint, number int, status model.CompartmentStatus) (*model.Compartment, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if number <= 0 {
		return nil, domain.ErrInvalidNumber
	}

	lc, err := m.store.Lockers.Context(ctx, lockerID)
	if err != nil {
		return nil, err
	}
	compartment, err := m.store.Compartments.FindByNumber(ctx, lockerID, number)
	if err != nil {
		return nil, err
	}
	actor, err := m.store.Users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := m.resolver.Authorize(ctx, lockerID, actorID, access.ChangeCompartmentStatus); err != nil {
		return nil, err
	}

	previous := compartment.Status
	if err := m.store.Compartments.UpdateStatus(ctx, compartment.ID, status); err != nil {
		return nil, err
	}
	compartment.Status = status

	actorSnap, err := m.userSnapshot(ctx, actor, lockerID)
	if err != nil {
		actorSnap = model.NewUserSnapshot(actor, "")
	}
	snapshot := model.NewLockerSnapshot(lc).WithCompartment(compartment)
	m.record(ctx, &model.AuditEvent{
		Action:      model.ActionCompartmentStatusChanged,
		Description: fmt.Sprintf("Compartment %d of locker %s changed from %s to %s", number, lc.Locker.SerialNumber, previous, status),
		Actor:       actorSnap,
		Locker:      &snapshot,
		Details: map[string]any{
			"previous_status": string(previous),
			"status":          string(status),
		},
	})
	return compartment, nil
}
