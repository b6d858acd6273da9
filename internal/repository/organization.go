// internal/repository/organization.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *model.Organization) error {
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (r *OrganizationRepository) FindByID(ctx context.Context, id uint) (*model.Organization, error) {
	var org model.Organization
	result := r.db.WithContext(ctx).First(&org, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", result.Error)
	}
	return &org, nil
}

// ExistsByName reports whether an organization already uses name.
func (r *OrganizationRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Organization{}).
		Where("name = ?", name).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check organization name: %w", err)
	}
	return count > 0, nil
}

// NameTaken reports whether an organization other than excludeID uses name.
func (r *OrganizationRepository) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Organization{}).
		Where("name = ? AND id <> ?", name, excludeID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check organization name: %w", err)
	}
	return count > 0, nil
}

// ListByCreator pages through the organizations userID created, with their
// areas.
func (r *OrganizationRepository) ListByCreator(ctx context.Context, userID uint, page Page) ([]model.Organization, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Organization{}).
		Where("created_by_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count organizations: %w", err)
	}
	var orgs []model.Organization
	if err := r.db.WithContext(ctx).
		Preload("Areas", func(db *gorm.DB) *gorm.DB { return db.Order("areas.id ASC") }).
		Where("created_by_id = ?", userID).
		Order("id ASC").
		Scopes(page.scope).
		Find(&orgs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, total, nil
}

// UpdateDetails writes the organization's name and description.
func (r *OrganizationRepository) UpdateDetails(ctx context.Context, org *model.Organization) error {
	result := r.db.WithContext(ctx).Model(&model.Organization{}).
		Where("id = ?", org.ID).
		Updates(map[string]any{"name": org.Name, "description": org.Description})
	if result.Error != nil {
		return fmt.Errorf("failed to update organization: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

type AreaRepository struct {
	db *gorm.DB
}

func NewAreaRepository(db *gorm.DB) *AreaRepository {
	return &AreaRepository{db: db}
}

func (r *AreaRepository) Create(ctx context.Context, area *model.Area) error {
	if err := r.db.WithContext(ctx).Create(area).Error; err != nil {
		return fmt.Errorf("failed to create area: %w", err)
	}
	return nil
}

func (r *AreaRepository) FindByID(ctx context.Context, id uint) (*model.Area, error) {
	var area model.Area
	result := r.db.WithContext(ctx).First(&area, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAreaNotFound
		}
		return nil, fmt.Errorf("failed to find area: %w", result.Error)
	}
	return &area, nil
}

// LockForUpdate takes a row lock on the area for the rest of the
// transaction.
func (r *AreaRepository) LockForUpdate(ctx context.Context, id uint) (*model.Area, error) {
	var area model.Area
	result := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&area, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAreaNotFound
		}
		return nil, fmt.Errorf("failed to lock area: %w", result.Error)
	}
	return &area, nil
}

func (r *AreaRepository) ExistsByName(ctx context.Context, organizationID uint, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Area{}).
		Where("organization_id = ? AND name = ?", organizationID, name).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check area name: %w", err)
	}
	return count > 0, nil
}

func (r *AreaRepository) ListByOrganization(ctx context.Context, organizationID uint) ([]model.Area, error) {
	var areas []model.Area
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("id ASC").
		Find(&areas).Error; err != nil {
		return nil, fmt.Errorf("failed to list areas: %w", err)
	}
	return areas, nil
}
