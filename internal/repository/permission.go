// internal/repository/permission.go
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

type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) Find(ctx context.Context, lockerID, userID uint) (*model.AccessPermission, error) {
	var perm model.AccessPermission
	result := r.db.WithContext(ctx).
		Where("locker_id = ? AND user_id = ?", lockerID, userID).
		First(&perm)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccessNotFound
		}
		return nil, fmt.Errorf("failed to find access permission: %w", result.Error)
	}
	return &perm, nil
}

// FindOrCreate returns the permission marker for (locker, user), creating it
// on first use.
func (r *PermissionRepository) FindOrCreate(ctx context.Context, lockerID, userID uint) (*model.AccessPermission, error) {
	perm := model.AccessPermission{LockerID: lockerID, UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&perm).Error; err != nil {
		return nil, fmt.Errorf("failed to create access permission: %w", err)
	}
	return r.Find(ctx, lockerID, userID)
}

// GrantCompartment creates the join row and reports whether it is new.
func (r *PermissionRepository) GrantCompartment(ctx context.Context, permissionID, compartmentID uint) (bool, error) {
	join := model.AccessPermissionCompartment{AccessPermissionID: permissionID, CompartmentID: compartmentID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&join)
	if result.Error != nil {
		return false, fmt.Errorf("failed to grant compartment: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RevokeCompartment deletes one grant and reports whether it existed.
func (r *PermissionRepository) RevokeCompartment(ctx context.Context, permissionID, compartmentID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("access_permission_id = ? AND compartment_id = ?", permissionID, compartmentID).
		Delete(&model.AccessPermissionCompartment{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to revoke compartment: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Delete removes a permission marker and every grant under it.
func (r *PermissionRepository) Delete(ctx context.Context, permissionID uint) error {
	if err := r.db.WithContext(ctx).
		Where("access_permission_id = ?", permissionID).
		Delete(&model.AccessPermissionCompartment{}).Error; err != nil {
		return fmt.Errorf("failed to delete compartment grants: %w", err)
	}
	if err := r.db.WithContext(ctx).Delete(&model.AccessPermission{}, permissionID).Error; err != nil {
		return fmt.Errorf("failed to delete access permission: %w", err)
	}
	return nil
}

// ListGrants returns every compartment grant on a locker ordered by user
// and compartment number.
func (r *PermissionRepository) ListGrants(ctx context.Context, lockerID uint) ([]model.CompartmentGrant, error) {
	var grants []model.CompartmentGrant
	if err := r.db.WithContext(ctx).Table("access_permission_compartments").
		Select("access_permissions.user_id, compartments.id AS compartment_id, compartments.compartment_number").
		Joins("JOIN access_permissions ON access_permissions.id = access_permission_compartments.access_permission_id").
		Joins("JOIN compartments ON compartments.id = access_permission_compartments.compartment_id").
		Where("access_permissions.locker_id = ?", lockerID).
		Order("access_permissions.user_id ASC, compartments.compartment_number ASC").
		Scan(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to list compartment grants: %w", err)
	}
	return grants, nil
}

// CountGrants returns the number of compartment grants under a permission.
func (r *PermissionRepository) CountGrants(ctx context.Context, permissionID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.AccessPermissionCompartment{}).
		Where("access_permission_id = ?", permissionID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count compartment grants: %w", err)
	}
	return count, nil
}
