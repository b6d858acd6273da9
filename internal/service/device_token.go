// internal/service/device_token.go
package service

import (
	"context"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
)

type DeviceTokenService struct {
	*Engine
}

func NewDeviceTokenService(engine *Engine) *DeviceTokenService {
	return &DeviceTokenService{Engine: engine}
}

type RegisterDeviceInput struct {
	UserID     uint             `json:"-"`
	Token      string           `json:"device_token" validate:"required,max=512"`
	DeviceType model.DeviceType `json:"device_type" validate:"required,oneof=mobile web desktop"`
	Platform   string           `json:"platform" validate:"max=20"`
}

// Register adds a push target for the user.
func (s *DeviceTokenService) Register(ctx context.Context, in RegisterDeviceInput) (*model.DeviceToken, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError("invalid device token", err)
	}
	if _, err := s.store.Users.FindByID(ctx, in.UserID); err != nil {
		return nil, err
	}
	exists, err := s.store.DeviceTokens.Exists(ctx, in.UserID, in.Token)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDeviceTokenExists
	}

	token := &model.DeviceToken{
		UserID:     in.UserID,
		Token:      in.Token,
		DeviceType: in.DeviceType,
		Platform:   in.Platform,
	}
	if err := s.store.DeviceTokens.Create(ctx, token); err != nil {
		return nil, err
	}
	s.logger.Info("device token registered", "user_id", in.UserID, "device_type", in.DeviceType)
	return token, nil
}

// Remove deletes one of the user's push targets.
func (s *DeviceTokenService) Remove(ctx context.Context, userID uint, token string) error {
	if token == "" {
		return domain.InvalidFields("invalid device token", map[string]string{"device_token": "is required"})
	}
	if err := s.store.DeviceTokens.Delete(ctx, userID, token); err != nil {
		return err
	}
	s.logger.Info("device token removed", "user_id", userID)
	return nil
}
