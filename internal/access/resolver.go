// internal/access/resolver.go
package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
)

// RoleReader loads the role row for a (locker, user) pair.
type RoleReader interface {
	Find(ctx context.Context, lockerID, userID uint) (*model.LockerUserRole, error)
}

// OrganizationReader loads an organization by id.
type OrganizationReader interface {
	FindByID(ctx context.Context, id uint) (*model.Organization, error)
}

// Resolver answers role queries. It never writes to the relational store.
type Resolver struct {
	roles  RoleReader
	orgs   OrganizationReader
	cache  RoleCache
	logger *slog.Logger
}

func WithCache(cache RoleCache) func(*Resolver) {
	return func(r *Resolver) {
		r.cache = cache
	}
}

func WithLogger(logger *slog.Logger) func(*Resolver) {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func NewResolver(roles RoleReader, orgs OrganizationReader, opts ...func(*Resolver)) *Resolver {
	r := &Resolver{
		roles:  roles,
		orgs:   orgs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RoleOf returns the user's role on the locker. ok is false when the user
// holds no role there.
func (r *Resolver) RoleOf(ctx context.Context, lockerID, userID uint) (role model.Role, ok bool, err error) {
	fill := false
	var generation int64
	if r.cache != nil {
		cached, gen, hit, err := r.cache.Get(ctx, lockerID, userID)
		switch {
		case err != nil:
			r.logger.Warn("role cache read failed", "locker_id", lockerID, "user_id", userID, "error", err)
		case hit:
			return cached, cached != "", nil
		default:
			fill, generation = true, gen
		}
	}

	lur, err := r.roles.Find(ctx, lockerID, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		role = ""
	case err != nil:
		return "", false, err
	default:
		role = lur.Role
	}

	if fill {
		if err := r.cache.Set(ctx, lockerID, userID, generation, role); err != nil {
			r.logger.Warn("role cache write failed", "locker_id", lockerID, "user_id", userID, "error", err)
		}
	}
	return role, role != "", nil
}

// HasAtLeast reports whether the user's role on the locker is in allowed.
func (r *Resolver) HasAtLeast(ctx context.Context, lockerID, userID uint, allowed RoleSet) (bool, error) {
	role, ok, err := r.RoleOf(ctx, lockerID, userID)
	if err != nil {
		return false, err
	}
	return ok && allowed.Contains(role), nil
}

// Authorize returns the policy's denial error unless the user satisfies it.
func (r *Resolver) Authorize(ctx context.Context, lockerID, userID uint, p Policy) error {
	allowed, err := r.HasAtLeast(ctx, lockerID, userID, p.Allowed)
	if err != nil {
		return err
	}
	if !allowed {
		r.logger.Debug("authorization denied", "policy", p.Name, "locker_id", lockerID, "user_id", userID)
		return p.Denied
	}
	return nil
}

// OwnsOrganization reports whether userID created the organization.
func (r *Resolver) OwnsOrganization(ctx context.Context, organizationID, userID uint) (bool, error) {
	org, err := r.orgs.FindByID(ctx, organizationID)
	if err != nil {
		return false, err
	}
	return org.CreatedByID == userID, nil
}

// Invalidate retires any cached role for the pair, including one a
// concurrent RoleOf is about to write. Call after a committed role change.
func (r *Resolver) Invalidate(ctx context.Context, lockerID, userID uint) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, lockerID, userID); err != nil {
		r.logger.Warn("role cache eviction failed", "locker_id", lockerID, "user_id", userID, "error", err)
	}
}
