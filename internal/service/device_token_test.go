package service_test

import (
	"context"
	"testing"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/repository/repotest"
	"github.com/dangerclosesec/lockity/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repotest.User(t, f.store, 9, "member@example.com")
	svc := service.NewDeviceTokenService(f.engine)

	in := service.RegisterDeviceInput{UserID: 9, Token: "fcm-token-1", DeviceType: model.DeviceMobile, Platform: "android"}
	token, err := svc.Register(ctx, in)
	require.NoError(t, err)
	assert.NotZero(t, token.ID)

	_, err = svc.Register(ctx, in)
	assert.ErrorIs(t, err, domain.ErrDeviceTokenExists)

	_, err = svc.Register(ctx, service.RegisterDeviceInput{UserID: 9, Token: "fcm-token-2"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, domain.FieldsOf(err), "device_type")

	_, err = svc.Register(ctx, service.RegisterDeviceInput{UserID: 404, Token: "fcm-token-3", DeviceType: model.DeviceWeb})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, svc.Remove(ctx, 9, "fcm-token-1"))
	assert.ErrorIs(t, svc.Remove(ctx, 9, "fcm-token-1"), domain.ErrDeviceTokenNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, 9, ""), domain.ErrInvalidInput)
}
