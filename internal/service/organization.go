// internal/service/organization.go
package service

import (
	"context"
	"fmt"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/repository"
)

// OrganizationService claims lockers into organizations and areas.
type OrganizationService struct {
	*Engine
	allocator *Allocator
}

func NewOrganizationService(engine *Engine, allocator *Allocator) *OrganizationService {
	return &OrganizationService{Engine: engine, allocator: allocator}
}

type CreateOrganizationInput struct {
	ActorID         uint   `json:"-"`
	Name            string `json:"name" validate:"required,max=255"`
	Description     string `json:"description"`
	AreaName        string `json:"area_name" validate:"required,max=255"`
	AreaDescription string `json:"area_description"`
	SerialNumber    string `json:"serial_number" validate:"required,max=100"`
}

type CreateOrganizationResult struct {
	Organization *model.Organization `json:"organization"`
	Area         *model.Area         `json:"area"`
	Locker       *model.Locker       `json:"locker"`
}

// CreateOrganization creates an organization with its first area and
// claims the locker with SerialNumber into it. The creator becomes the
// locker's super_admin with access to every compartment.
func (s *OrganizationService) CreateOrganization(ctx context.Context, in CreateOrganizationInput) (*CreateOrganizationResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError("invalid organization", err)
	}
	actor, err := s.store.Users.FindByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	result := &CreateOrganizationResult{}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		exists, err := tx.Organizations.ExistsByName(ctx, in.Name)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrOrganizationExists
		}

		org := &model.Organization{Name: in.Name, Description: in.Description, CreatedByID: actor.ID}
		if err := tx.Organizations.Create(ctx, org); err != nil {
			return err
		}
		area := &model.Area{Name: in.AreaName, Description: in.AreaDescription, OrganizationID: org.ID}
		if err := tx.Areas.Create(ctx, area); err != nil {
			return err
		}

		locker, err := tx.Lockers.FindBySerialForUpdate(ctx, in.SerialNumber)
		if err != nil {
			return err
		}
		if locker.Linked() {
			return domain.ErrLockerAlreadyLinked
		}
		number, err := s.allocator.AssignNextNumberTx(ctx, tx, locker.ID, area.ID)
		if err != nil {
			return err
		}
		locker.AreaID = &area.ID
		locker.LockerNumber = &number

		if err := tx.Roles.Upsert(ctx, locker.ID, actor.ID, model.RoleSuperAdmin); err != nil {
			return err
		}
		perm, err := tx.Permissions.FindOrCreate(ctx, locker.ID, actor.ID)
		if err != nil {
			return err
		}
		compartments, err := tx.Compartments.ListByLocker(ctx, locker.ID)
		if err != nil {
			return err
		}
		for _, c := range compartments {
			if _, err := tx.Permissions.GrantCompartment(ctx, perm.ID, c.ID); err != nil {
				return err
			}
		}
		locker.Compartments = compartments

		result.Organization = org
		result.Area = area
		result.Locker = locker
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}
	s.resolver.Invalidate(ctx, result.Locker.ID, actor.ID)

	s.logger.Info("organization created",
		"organization_id", result.Organization.ID,
		"area_id", result.Area.ID,
		"locker_id", result.Locker.ID,
		"locker_number", *result.Locker.LockerNumber,
		"created_by", actor.ID)

	snapshot := model.NewLockerSnapshot(&model.LockerContext{
		Locker:       result.Locker,
		Area:         result.Area,
		Organization: result.Organization,
	})
	s.record(ctx, &model.AuditEvent{
		Action:      model.ActionOrganizationCreated,
		Description: fmt.Sprintf("%s created organization %s with locker %s", actor.Email, result.Organization.Name, result.Locker.SerialNumber),
		Actor:       model.NewUserSnapshot(actor, model.RoleSuperAdmin),
		Locker:      &snapshot,
		Details: map[string]any{
			"organization_id": result.Organization.ID,
			"area_id":         result.Area.ID,
		},
	})
	return result, nil
}

type CreateAreaInput struct {
	ActorID        uint   `json:"-"`
	OrganizationID uint   `json:"-"`
	Name           string `json:"name" validate:"required,max=255"`
	Description    string `json:"description"`
}

// CreateArea adds an area to an organization the actor owns.
func (s *OrganizationService) CreateArea(ctx context.Context, in CreateAreaInput) (*model.Area, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError("invalid area", err)
	}
	actor, err := s.store.Users.FindByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	org, err := s.store.Organizations.FindByID(ctx, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org.CreatedByID != actor.ID {
		return nil, domain.ErrNotOrganizationOwner
	}

	exists, err := s.store.Areas.ExistsByName(ctx, org.ID, in.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrAreaExists
	}
	area := &model.Area{Name: in.Name, Description: in.Description, OrganizationID: org.ID}
	if err := s.store.Areas.Create(ctx, area); err != nil {
		return nil, err
	}

	s.logger.Info("area created", "organization_id", org.ID, "area_id", area.ID)
	s.record(ctx, &model.AuditEvent{
		Action:      model.ActionAreaCreated,
		Description: fmt.Sprintf("%s created area %s in organization %s", actor.Email, area.Name, org.Name),
		Actor:       model.NewUserSnapshot(actor, ""),
		Details: map[string]any{
			"organization_id": org.ID,
			"area_id":         area.ID,
			"area_name":       area.Name,
		},
	})
	return area, nil
}

type MoveLockerInput struct {
	ActorID  uint `json:"-"`
	LockerID uint `json:"-"`
	AreaID   uint `json:"area_id" validate:"required"`
}

// MoveLocker relinks a locker to another area under the lowest free number
// there. The actor must own the destination organization and be the
// locker's super_admin.
func (s *OrganizationService) MoveLocker(ctx context.Context, in MoveLockerInput) (*model.Locker, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError("invalid move", err)
	}
	actor, err := s.store.Users.FindByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	before, err := s.store.Lockers.Context(ctx, in.LockerID)
	if err != nil {
		return nil, err
	}
	area, err := s.store.Areas.FindByID(ctx, in.AreaID)
	if err != nil {
		return nil, err
	}
	owns, err := s.resolver.OwnsOrganization(ctx, area.OrganizationID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, domain.ErrNotOrganizationOwner
	}
	if err := s.resolver.Authorize(ctx, in.LockerID, actor.ID, access.MoveLocker); err != nil {
		return nil, err
	}
	if before.Locker.AreaID != nil && *before.Locker.AreaID == area.ID {
		return nil, domain.ErrLockerAlreadyInArea
	}

	number, err := s.allocator.AssignNextNumber(ctx, in.LockerID, area.ID)
	if err != nil {
		return nil, fmt.Errorf("moving locker: %w", err)
	}

	after, err := s.store.Lockers.Context(ctx, in.LockerID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("locker moved",
		"locker_id", in.LockerID,
		"area_id", area.ID,
		"locker_number", number,
		"moved_by", actor.ID)

	details := map[string]any{
		"to_area_id":       area.ID,
		"to_locker_number": number,
	}
	if before.Area != nil {
		details["from_area_id"] = before.Area.ID
		details["from_area_name"] = before.Area.Name
	}
	if before.Locker.LockerNumber != nil {
		details["from_locker_number"] = *before.Locker.LockerNumber
	}
	snapshot := model.NewLockerSnapshot(after)
	s.record(ctx, &model.AuditEvent{
		Action:      model.ActionLockerMoved,
		Description: fmt.Sprintf("%s moved locker %s to area %s as number %d", actor.Email, after.Locker.SerialNumber, area.Name, number),
		Actor:       model.NewUserSnapshot(actor, model.RoleSuperAdmin),
		Locker:      &snapshot,
		Details:     details,
	})
	return after.Locker, nil
}

type UpdateOrganizationInput struct {
	ActorID        uint    `json:"-"`
	OrganizationID uint    `json:"-"`
	Name           *string `json:"name" validate:"omitnil,min=1,max=255"`
	Description    *string `json:"description"`
}

// UpdateOrganization renames or redescribes an organization the actor
// owns. Fields left out keep their value.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, in UpdateOrganizationInput) (*model.Organization, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError("invalid organization", err)
	}
	if in.Name == nil && in.Description == nil {
		return nil, domain.ErrEmptyUpdate
	}
	actor, err := s.store.Users.FindByID(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	org, err := s.store.Organizations.FindByID(ctx, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org.CreatedByID != actor.ID {
		return nil, domain.ErrNotOrganizationOwner
	}

	details := map[string]any{"organization_id": org.ID}
	if in.Name != nil && *in.Name != org.Name {
		taken, err := s.store.Organizations.NameTaken(ctx, *in.Name, org.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.ErrOrganizationExists
		}
		details["from_name"] = org.Name
		org.Name = *in.Name
	}
	if in.Description != nil {
		org.Description = *in.Description
	}
	if err := s.store.Organizations.UpdateDetails(ctx, org); err != nil {
		return nil, err
	}

	s.logger.Info("organization updated", "organization_id", org.ID, "updated_by", actor.ID)
	s.record(ctx, &model.AuditEvent{
		Action:      model.ActionOrganizationUpdated,
		Description: fmt.Sprintf("%s updated organization %s", actor.Email, org.Name),
		Actor:       model.NewUserSnapshot(actor, ""),
		Details:     details,
	})
	return org, nil
}
