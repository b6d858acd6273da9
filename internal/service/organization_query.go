// internal/service/organization_query.go
package service

import (
	"context"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/model"
)

// ListOrganizations pages through the organizations the actor created,
// with their areas.
func (s *OrganizationService) ListOrganizations(ctx context.Context, actorID uint, req PageRequest) (*PageResult[model.Organization], error) {
	page, err := req.resolve()
	if err != nil {
		return nil, err
	}
	orgs, total, err := s.store.Organizations.ListByCreator(ctx, actorID, page)
	if err != nil {
		return nil, err
	}
	for i := range orgs {
		if orgs[i].Areas == nil {
			orgs[i].Areas = []model.Area{}
		}
	}
	return newPageResult(orgs, total, page), nil
}

type AreaLocker struct {
	ID           uint   `json:"id"`
	SerialNumber string `json:"serial_number"`
	LockerNumber *int   `json:"locker_number"`
}

type AreaView struct {
	model.Area
	Lockers []AreaLocker `json:"lockers"`
}

// ListAreas returns the organization's areas with the lockers linked to
// each.
func (s *OrganizationService) ListAreas(ctx context.Context, actorID, organizationID uint) ([]AreaView, error) {
	org, err := s.store.Organizations.FindByID(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, org, actorID); err != nil {
		return nil, err
	}

	areas, err := s.store.Areas.ListByOrganization(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	lockers, err := s.store.Lockers.ListByOrganization(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	byArea := make(map[uint][]AreaLocker)
	for _, l := range lockers {
		byArea[*l.AreaID] = append(byArea[*l.AreaID], AreaLocker{ID: l.ID, SerialNumber: l.SerialNumber, LockerNumber: l.LockerNumber})
	}

	views := make([]AreaView, len(areas))
	for i, a := range areas {
		views[i] = AreaView{Area: a, Lockers: byArea[a.ID]}
		if views[i].Lockers == nil {
			views[i].Lockers = []AreaLocker{}
		}
	}
	return views, nil
}

type ListMembersInput struct {
	ActorID        uint
	OrganizationID uint
	Role           string
	PageRequest
}

type Member struct {
	ID              uint                   `json:"id"`
	Name            string                 `json:"name"`
	LastName        string                 `json:"last_name"`
	SecondLastName  string                 `json:"second_last_name"`
	Email           string                 `json:"email"`
	AssignedLockers []model.RoleAssignment `json:"assigned_lockers"`
}

// ListMembers pages through the users holding a role on any locker of the
// organization. Role narrows which users are listed; each listed user shows
// every role they hold in the organization.
func (s *OrganizationService) ListMembers(ctx context.Context, in ListMembersInput) (*PageResult[Member], error) {
	page, err := in.resolve()
	if err != nil {
		return nil, err
	}
	role, err := roleFilter(in.Role)
	if err != nil {
		return nil, err
	}
	org, err := s.store.Organizations.FindByID(ctx, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, org, in.ActorID); err != nil {
		return nil, err
	}

	users, total, err := s.store.Users.ListByOrganization(ctx, org.ID, role, page)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	assignments, err := s.store.Roles.AssignmentsInOrganization(ctx, org.ID, ids)
	if err != nil {
		return nil, err
	}
	byUser := make(map[uint][]model.RoleAssignment)
	for _, a := range assignments {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}

	members := make([]Member, len(users))
	for i, u := range users {
		members[i] = Member{
			ID:              u.ID,
			Name:            u.Name,
			LastName:        u.LastName,
			SecondLastName:  u.SecondLastName,
			Email:           u.Email,
			AssignedLockers: byUser[u.ID],
		}
	}
	return newPageResult(members, total, page), nil
}

// authorizeView lets the owner through, and anyone holding a
// ViewOrganization role on one of the organization's lockers.
func (s *OrganizationService) authorizeView(ctx context.Context, org *model.Organization, actorID uint) error {
	if org.CreatedByID == actorID {
		return nil
	}
	held, err := s.store.Roles.HeldInOrganization(ctx, org.ID, actorID, access.ViewOrganization.Allowed...)
	if err != nil {
		return err
	}
	if !held {
		s.logger.Debug("authorization denied", "policy", access.ViewOrganization.Name, "organization_id", org.ID, "user_id", actorID)
		return access.ViewOrganization.Denied
	}
	return nil
}
