// internal/repository/user.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		return fmt.Errorf("failed to create user: %w", result.Error)
	}
	return nil
}

// FindByEmail matches case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	result := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", result.Error)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	result := r.db.WithContext(ctx).First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", result.Error)
	}
	return &user, nil
}

// FindByIDs loads the listed users ordered by id. Unknown ids are skipped.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	return users, nil
}

// ListByOrganization pages through the users holding a role on any locker
// of the organization, optionally only a given role, ordered by id.
func (r *UserRepository) ListByOrganization(ctx context.Context, organizationID uint, role model.Role, page Page) ([]model.User, int64, error) {
	query := func() *gorm.DB {
		members := r.db.Model(&model.LockerUserRole{}).
			Select("locker_user_roles.user_id").
			Joins("JOIN lockers ON lockers.id = locker_user_roles.locker_id").
			Joins("JOIN areas ON areas.id = lockers.area_id").
			Where("areas.organization_id = ?", organizationID)
		if role != "" {
			members = members.Where("locker_user_roles.role = ?", role)
		}
		return r.db.WithContext(ctx).Model(&model.User{}).Where("id IN (?)", members)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count organization users: %w", err)
	}
	var users []model.User
	if err := query().Order("id ASC").Scopes(page.scope).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list organization users: %w", err)
	}
	return users, total, nil
}
