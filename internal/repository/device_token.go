// internal/repository/device_token.go
package repository

import (
	"context"
	"fmt"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
	"gorm.io/gorm"
)

type DeviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

func (r *DeviceTokenRepository) Create(ctx context.Context, t *model.DeviceToken) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create device token: %w", err)
	}
	return nil
}

func (r *DeviceTokenRepository) Exists(ctx context.Context, userID uint, token string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.DeviceToken{}).
		Where("user_id = ? AND token = ?", userID, token).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check device token: %w", err)
	}
	return count > 0, nil
}

func (r *DeviceTokenRepository) Delete(ctx context.Context, userID uint, token string) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&model.DeviceToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete device token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrDeviceTokenNotFound
	}
	return nil
}

// TokensForLocker returns the distinct device tokens of every user holding
// an access permission on the locker.
func (r *DeviceTokenRepository) TokensForLocker(ctx context.Context, lockerID uint) ([]string, error) {
	var tokens []string
	if err := r.db.WithContext(ctx).Model(&model.DeviceToken{}).
		Joins("JOIN access_permissions ON access_permissions.user_id = device_tokens.user_id").
		Where("access_permissions.locker_id = ?", lockerID).
		Distinct().
		Order("device_tokens.token ASC").
		Pluck("device_tokens.token", &tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	return tokens, nil
}
