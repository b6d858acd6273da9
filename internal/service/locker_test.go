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

func TestListLockers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	locker := f.acme(t)
	svc := service.NewLockerService(f.engine)

	// A second organization where the owner is only a user.
	other := repotest.Locker(t, f.store, "SN-002", 2)
	_, area := repotest.Organization(t, f.store, "Globex", 8, "Lobby")
	repotest.Link(t, f.store, other.ID, area.ID, 1)
	repotest.Role(t, f.store, other.ID, 7, model.RoleUser)
	// Unlinked lockers never show up.
	loose := repotest.Locker(t, f.store, "SN-003", 1)
	repotest.Role(t, f.store, loose.ID, 7, model.RoleSuperAdmin)

	t.Run("every locker with a role", func(t *testing.T) {
		res, err := svc.ListLockers(ctx, service.ListLockersInput{ActorID: 7})
		require.NoError(t, err)
		require.Len(t, res.Items, 2)
		assert.Equal(t, int64(2), res.Total)

		first := res.Items[0]
		assert.Equal(t, locker.ID, first.ID)
		assert.Equal(t, "SN-001", first.SerialNumber)
		assert.Equal(t, "HQ", first.AreaName)
		assert.Equal(t, "Acme", first.OrganizationName)
		assert.Equal(t, model.RoleSuperAdmin, first.Role)
		require.NotNil(t, first.LockerNumber)
		assert.Equal(t, 1, *first.LockerNumber)
		assert.Nil(t, first.Schedules)

		assert.Equal(t, "Globex", res.Items[1].OrganizationName)
		assert.Equal(t, model.RoleUser, res.Items[1].Role)
	})

	t.Run("role filter", func(t *testing.T) {
		res, err := svc.ListLockers(ctx, service.ListLockersInput{ActorID: 7, Role: "user"})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "SN-002", res.Items[0].SerialNumber)
	})

	t.Run("organization filter", func(t *testing.T) {
		res, err := svc.ListLockers(ctx, service.ListLockersInput{ActorID: 7, OrganizationID: area.OrganizationID})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "SN-002", res.Items[0].SerialNumber)
	})

	t.Run("pagination", func(t *testing.T) {
		res, err := svc.ListLockers(ctx, service.ListLockersInput{ActorID: 7, PageRequest: service.PageRequest{Page: 2, Limit: 1}})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "SN-002", res.Items[0].SerialNumber)
		assert.False(t, res.HasNextPage)
		assert.True(t, res.HasPreviousPage)
		assert.Equal(t, 2, res.Page)
		assert.Equal(t, 1, res.Limit)
	})

	t.Run("schedules on request", func(t *testing.T) {
		schedules := service.NewScheduleService(f.engine)
		_, err := schedules.ValidateAndCreateSchedule(ctx, weekly(7, locker.ID, model.Monday))
		require.NoError(t, err)

		res, err := svc.ListLockers(ctx, service.ListLockersInput{ActorID: 7, ShowSchedules: true})
		require.NoError(t, err)
		require.Len(t, res.Items[0].Schedules, 1)
		assert.Empty(t, res.Items[1].Schedules)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := svc.ListLockers(ctx, service.ListLockersInput{ActorID: 7, Role: "owner"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, domain.FieldsOf(err), "role")

		_, err = svc.ListLockers(ctx, service.ListLockersInput{ActorID: 7, PageRequest: service.PageRequest{Limit: 500}})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, domain.FieldsOf(err), "limit")
	})

	t.Run("nothing to show", func(t *testing.T) {
		res, err := svc.ListLockers(ctx, service.ListLockersInput{ActorID: 9})
		require.NoError(t, err)
		assert.NotNil(t, res.Items)
		assert.Empty(t, res.Items)
		assert.Zero(t, res.Total)
	})
}

func TestListCompartments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	locker := f.acme(t)
	svc := service.NewLockerService(f.engine)

	repotest.Role(t, f.store, locker.ID, 9, model.RoleUser)
	repotest.Grant(t, f.store, locker.ID, 9, 2)
	// Grants without a role row read as user.
	repotest.User(t, f.store, 10, "ten@example.com")
	repotest.Grant(t, f.store, locker.ID, 10, 3)

	t.Run("users and roles per compartment", func(t *testing.T) {
		res, err := svc.ListCompartments(ctx, service.ListCompartmentsInput{ActorID: 8, LockerID: locker.ID})
		require.NoError(t, err)
		require.Len(t, res.Items, 3)
		assert.Equal(t, int64(3), res.Total)

		one, two, three := res.Items[0], res.Items[1], res.Items[2]
		assert.Equal(t, 1, one.CompartmentNumber)
		assert.Equal(t, model.CompartmentClosed, one.Status)
		require.Len(t, one.Users, 1)
		assert.Equal(t, uint(7), one.Users[0].ID)
		assert.Equal(t, model.RoleSuperAdmin, one.Users[0].Role)

		require.Len(t, two.Users, 2)
		assert.Equal(t, uint(9), two.Users[1].ID)
		assert.Equal(t, "member@example.com", two.Users[1].Email)
		assert.Equal(t, model.RoleUser, two.Users[1].Role)

		require.Len(t, three.Users, 2)
		assert.Equal(t, uint(10), three.Users[1].ID)
		assert.Equal(t, model.RoleUser, three.Users[1].Role)
	})

	t.Run("role filter narrows users", func(t *testing.T) {
		res, err := svc.ListCompartments(ctx, service.ListCompartmentsInput{ActorID: 7, LockerID: locker.ID, Role: "user"})
		require.NoError(t, err)
		require.Len(t, res.Items, 3)
		assert.Empty(t, res.Items[0].Users)
		assert.NotNil(t, res.Items[0].Users)
		require.Len(t, res.Items[1].Users, 1)
		assert.Equal(t, uint(9), res.Items[1].Users[0].ID)
	})

	t.Run("paginated", func(t *testing.T) {
		res, err := svc.ListCompartments(ctx, service.ListCompartmentsInput{
			ActorID: 7, LockerID: locker.ID, PageRequest: service.PageRequest{Page: 1, Limit: 2},
		})
		require.NoError(t, err)
		require.Len(t, res.Items, 2)
		assert.True(t, res.HasNextPage)
		assert.False(t, res.HasPreviousPage)
	})

	t.Run("plain users are refused", func(t *testing.T) {
		_, err := svc.ListCompartments(ctx, service.ListCompartmentsInput{ActorID: 9, LockerID: locker.ID})
		assert.ErrorIs(t, err, domain.ErrNoLockerAccess)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("unknown locker", func(t *testing.T) {
		_, err := svc.ListCompartments(ctx, service.ListCompartmentsInput{ActorID: 7, LockerID: locker.ID + 100})
		assert.ErrorIs(t, err, domain.ErrLockerNotFound)
	})
}

func TestDeviceConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	locker := f.acme(t)
	svc := service.NewLockerService(f.engine)

	repotest.Role(t, f.store, locker.ID, 9, model.RoleUser)
	repotest.Grant(t, f.store, locker.ID, 9, 3, 1)

	cfg, err := svc.DeviceConfig(ctx, "SN-001")
	require.NoError(t, err)
	assert.Equal(t, locker.ID, cfg.LockerID)
	assert.Equal(t, "SN-001", cfg.SerialNumber)
	require.Len(t, cfg.Users, 2)

	assert.Equal(t, uint(7), cfg.Users[0].UserID)
	assert.Equal(t, "User7 Test", cfg.Users[0].Name)
	assert.Equal(t, []int{1, 2, 3}, cfg.Users[0].Compartments)
	assert.Equal(t, uint(9), cfg.Users[1].UserID)
	assert.Equal(t, []int{1, 3}, cfg.Users[1].Compartments)

	// Revoking a user drops them from the table.
	grants := service.NewGrantManager(f.engine, nil, "")
	_, err = grants.RemoveUserAccess(ctx, service.RemoveInput{ActorID: 7, LockerID: locker.ID, UserID: 9})
	require.NoError(t, err)
	cfg, err = svc.DeviceConfig(ctx, "SN-001")
	require.NoError(t, err)
	require.Len(t, cfg.Users, 1)

	empty := repotest.Locker(t, f.store, "SN-009", 2)
	cfg, err = svc.DeviceConfig(ctx, empty.SerialNumber)
	require.NoError(t, err)
	assert.NotNil(t, cfg.Users)
	assert.Empty(t, cfg.Users)

	_, err = svc.DeviceConfig(ctx, "SN-404")
	assert.ErrorIs(t, err, domain.ErrLockerNotFound)
}
