// internal/service/locker.go
package service

import (
	"context"
	"fmt"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/repository"
)

// LockerService answers read queries about lockers, their compartments and
// who may open them.
type LockerService struct {
	*Engine
}

func NewLockerService(engine *Engine) *LockerService {
	return &LockerService{Engine: engine}
}

type ListLockersInput struct {
	ActorID        uint
	OrganizationID uint
	Role           string
	ShowSchedules  bool
	PageRequest
}

type LockerListItem struct {
	model.LockerSummary
	Schedules []model.Schedule `json:"schedules,omitempty"`
}

// ListLockers pages through the linked lockers on which the actor holds a
// role, optionally narrowed to one organization or one role.
func (s *LockerService) ListLockers(ctx context.Context, in ListLockersInput) (*PageResult[LockerListItem], error) {
	page, err := in.resolve()
	if err != nil {
		return nil, err
	}
	role, err := roleFilter(in.Role)
	if err != nil {
		return nil, err
	}

	summaries, total, err := s.store.Lockers.ListForUser(ctx, in.ActorID, repository.LockerFilter{
		Role:           role,
		OrganizationID: in.OrganizationID,
	}, page)
	if err != nil {
		return nil, err
	}

	items := make([]LockerListItem, len(summaries))
	for i, summary := range summaries {
		items[i].LockerSummary = summary
		if !in.ShowSchedules {
			continue
		}
		if items[i].Schedules, err = s.store.Schedules.ListByLocker(ctx, summary.ID); err != nil {
			return nil, err
		}
	}
	return newPageResult(items, total, page), nil
}

type ListCompartmentsInput struct {
	ActorID  uint
	LockerID uint
	Role     string
	PageRequest
}

type CompartmentUser struct {
	ID             uint       `json:"id"`
	Name           string     `json:"name"`
	LastName       string     `json:"last_name"`
	SecondLastName string     `json:"second_last_name"`
	Email          string     `json:"email"`
	Role           model.Role `json:"role"`
}

type CompartmentView struct {
	ID                uint                    `json:"id"`
	CompartmentNumber int                     `json:"compartment_number"`
	Status            model.CompartmentStatus `json:"status"`
	Users             []CompartmentUser       `json:"users"`
}

// ListCompartments pages through a locker's compartments with the users
// granted on each. Role narrows the listed users, not the compartments.
// A user holding grants but no role row is reported as a plain user.
func (s *LockerService) ListCompartments(ctx context.Context, in ListCompartmentsInput) (*PageResult[CompartmentView], error) {
	page, err := in.resolve()
	if err != nil {
		return nil, err
	}
	role, err := roleFilter(in.Role)
	if err != nil {
		return nil, err
	}
	locker, err := s.store.Lockers.FindByID(ctx, in.LockerID)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Authorize(ctx, locker.ID, in.ActorID, access.ViewCompartments); err != nil {
		return nil, err
	}

	compartments, total, err := s.store.Compartments.ListPage(ctx, locker.ID, page)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.Permissions.ListGrants(ctx, locker.ID)
	if err != nil {
		return nil, err
	}
	roles, err := s.store.Roles.ListByLocker(ctx, locker.ID)
	if err != nil {
		return nil, err
	}
	users, err := s.usersOf(ctx, grants)
	if err != nil {
		return nil, err
	}

	roleOf := make(map[uint]model.Role, len(roles))
	for _, r := range roles {
		roleOf[r.UserID] = r.Role
	}
	holders := make(map[uint][]CompartmentUser)
	for _, g := range grants {
		u, ok := users[g.UserID]
		if !ok {
			continue
		}
		r, ok := roleOf[g.UserID]
		if !ok {
			r = model.RoleUser
		}
		if role != "" && r != role {
			continue
		}
		holders[g.CompartmentID] = append(holders[g.CompartmentID], CompartmentUser{
			ID:             u.ID,
			Name:           u.Name,
			LastName:       u.LastName,
			SecondLastName: u.SecondLastName,
			Email:          u.Email,
			Role:           r,
		})
	}

	items := make([]CompartmentView, len(compartments))
	for i, c := range compartments {
		items[i] = CompartmentView{
			ID:                c.ID,
			CompartmentNumber: c.CompartmentNumber,
			Status:            c.Status,
			Users:             holders[c.ID],
		}
		if items[i].Users == nil {
			items[i].Users = []CompartmentUser{}
		}
	}
	return newPageResult(items, total, page), nil
}

type DeviceUser struct {
	UserID       uint   `json:"user_id"`
	Name         string `json:"name"`
	Compartments []int  `json:"compartments"`
}

// DeviceConfig is what a locker needs to decide locally who may open which
// compartment.
type DeviceConfig struct {
	LockerID     uint         `json:"locker_id"`
	SerialNumber string       `json:"serial_number"`
	Users        []DeviceUser `json:"users"`
}

// DeviceConfig lists, for the locker with the given serial number, every
// user holding grants and the compartment numbers each may open.
func (s *LockerService) DeviceConfig(ctx context.Context, serialNumber string) (*DeviceConfig, error) {
	locker, err := s.store.Lockers.FindBySerial(ctx, serialNumber)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.Permissions.ListGrants(ctx, locker.ID)
	if err != nil {
		return nil, fmt.Errorf("building device config for %s: %w", serialNumber, err)
	}
	users, err := s.usersOf(ctx, grants)
	if err != nil {
		return nil, err
	}

	cfg := &DeviceConfig{LockerID: locker.ID, SerialNumber: locker.SerialNumber, Users: []DeviceUser{}}
	for _, g := range grants {
		u, ok := users[g.UserID]
		if !ok {
			continue
		}
		// Grants arrive grouped by user.
		if n := len(cfg.Users); n == 0 || cfg.Users[n-1].UserID != g.UserID {
			cfg.Users = append(cfg.Users, DeviceUser{UserID: u.ID, Name: u.FullName()})
		}
		last := &cfg.Users[len(cfg.Users)-1]
		last.Compartments = append(last.Compartments, g.CompartmentNumber)
	}

	s.logger.Debug("device config served", "serial_number", serialNumber, "users", len(cfg.Users))
	return cfg, nil
}

func (s *LockerService) usersOf(ctx context.Context, grants []model.CompartmentGrant) (map[uint]model.User, error) {
	seen := make(map[uint]bool)
	var ids []uint
	for _, g := range grants {
		if !seen[g.UserID] {
			seen[g.UserID] = true
			ids = append(ids, g.UserID)
		}
	}
	users, err := s.store.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]model.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
