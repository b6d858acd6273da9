// internal/repository/role.go
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

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Find returns the role row for (locker, user) or domain.ErrAccessNotFound.
func (r *RoleRepository) Find(ctx context.Context, lockerID, userID uint) (*model.LockerUserRole, error) {
	var lur model.LockerUserRole
	result := r.db.WithContext(ctx).
		Where("locker_id = ? AND user_id = ?", lockerID, userID).
		First(&lur)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccessNotFound
		}
		return nil, fmt.Errorf("failed to find locker role: %w", result.Error)
	}
	return &lur, nil
}

// Upsert sets the role for (locker, user), updating the existing row in
// place.
func (r *RoleRepository) Upsert(ctx context.Context, lockerID, userID uint, role model.Role) error {
	lur := model.LockerUserRole{LockerID: lockerID, UserID: userID, Role: role}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "locker_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
		}).
		Create(&lur).Error; err != nil {
		return fmt.Errorf("failed to upsert locker role: %w", err)
	}
	return nil
}

// Delete removes the role for (locker, user) and reports whether one existed.
func (r *RoleRepository) Delete(ctx context.Context, lockerID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("locker_id = ? AND user_id = ?", lockerID, userID).
		Delete(&model.LockerUserRole{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete locker role: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByLocker returns every role held on a locker ordered by user.
func (r *RoleRepository) ListByLocker(ctx context.Context, lockerID uint) ([]model.LockerUserRole, error) {
	var roles []model.LockerUserRole
	if err := r.db.WithContext(ctx).
		Where("locker_id = ?", lockerID).
		Order("user_id ASC").
		Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list locker roles: %w", err)
	}
	return roles, nil
}

// HeldInOrganization reports whether the user holds one of roles on any
// locker linked to the organization.
func (r *RoleRepository) HeldInOrganization(ctx context.Context, organizationID, userID uint, roles ...model.Role) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.LockerUserRole{}).
		Joins("JOIN lockers ON lockers.id = locker_user_roles.locker_id").
		Joins("JOIN areas ON areas.id = lockers.area_id").
		Where("areas.organization_id = ? AND locker_user_roles.user_id = ? AND locker_user_roles.role IN ?", organizationID, userID, roles).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check organization role: %w", err)
	}
	return count > 0, nil
}

// AssignmentsInOrganization returns the roles the given users hold on the
// organization's lockers, ordered by user and locker.
func (r *RoleRepository) AssignmentsInOrganization(ctx context.Context, organizationID uint, userIDs []uint) ([]model.RoleAssignment, error) {
	var out []model.RoleAssignment
	if len(userIDs) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Table("locker_user_roles").
		Select("locker_user_roles.user_id, lockers.id AS locker_id, lockers.serial_number, lockers.locker_number, " +
			"areas.name AS area_name, organizations.name AS organization_name, locker_user_roles.role").
		Joins("JOIN lockers ON lockers.id = locker_user_roles.locker_id").
		Joins("JOIN areas ON areas.id = lockers.area_id").
		Joins("JOIN organizations ON organizations.id = areas.organization_id").
		Where("organizations.id = ? AND locker_user_roles.user_id IN ?", organizationID, userIDs).
		Order("locker_user_roles.user_id ASC, lockers.id ASC").
		Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list role assignments: %w", err)
	}
	return out, nil
}
