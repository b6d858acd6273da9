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

func TestCreateOrganization(t *testing.T) {
	ctx := context.Background()

	t.Run("claims the locker for its creator", func(t *testing.T) {
		f := newFixture(t)
		locker := f.acme(t)

		require.NotNil(t, locker.LockerNumber)
		assert.Equal(t, 1, *locker.LockerNumber)
		assert.Len(t, locker.Compartments, 3)

		role, ok, err := f.engine.Resolver().RoleOf(ctx, locker.ID, 7)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, model.RoleSuperAdmin, role)

		perm, err := f.store.Permissions.Find(ctx, locker.ID, 7)
		require.NoError(t, err)
		n, err := f.store.Permissions.CountGrants(ctx, perm.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		events := f.audit.withAction(model.ActionOrganizationCreated)
		require.Len(t, events, 1)
		assert.Equal(t, "Acme", events[0].Locker.OrganizationName)
		assert.Equal(t, "HQ", events[0].Locker.AreaName)
	})

	t.Run("rejects a taken name", func(t *testing.T) {
		f := newFixture(t)
		f.acme(t)
		repotest.Locker(t, f.store, "SN-002", 1)
		orgs := service.NewOrganizationService(f.engine, service.NewAllocator(f.store))

		_, err := orgs.CreateOrganization(ctx, service.CreateOrganizationInput{
			ActorID: 9, Name: "Acme", AreaName: "Lobby", SerialNumber: "SN-002",
		})
		assert.ErrorIs(t, err, domain.ErrOrganizationExists)
	})

	t.Run("rolls back when the locker is already linked", func(t *testing.T) {
		f := newFixture(t)
		f.acme(t)
		orgs := service.NewOrganizationService(f.engine, service.NewAllocator(f.store))

		_, err := orgs.CreateOrganization(ctx, service.CreateOrganizationInput{
			ActorID: 9, Name: "Globex", AreaName: "Lobby", SerialNumber: "SN-001",
		})
		assert.ErrorIs(t, err, domain.ErrLockerAlreadyLinked)
		assert.EqualValues(t, 0, repotest.Count(t, f.store, &model.Organization{}, "name = ?", "Globex"))
		assert.EqualValues(t, 0, repotest.Count(t, f.store, &model.Area{}, "name = ?", "Lobby"))
	})

	t.Run("unknown serial", func(t *testing.T) {
		f := newFixture(t)
		repotest.User(t, f.store, 7, "owner@example.com")
		orgs := service.NewOrganizationService(f.engine, service.NewAllocator(f.store))

		_, err := orgs.CreateOrganization(ctx, service.CreateOrganizationInput{
			ActorID: 7, Name: "Acme", AreaName: "HQ", SerialNumber: "SN-404",
		})
		assert.ErrorIs(t, err, domain.ErrLockerNotFound)
		assert.EqualValues(t, 0, repotest.Count(t, f.store, &model.Organization{}, ""))
	})

	t.Run("requires names", func(t *testing.T) {
		f := newFixture(t)
		orgs := service.NewOrganizationService(f.engine, service.NewAllocator(f.store))

		_, err := orgs.CreateOrganization(ctx, service.CreateOrganizationInput{ActorID: 7})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		fields := domain.FieldsOf(err)
		assert.Contains(t, fields, "name")
		assert.Contains(t, fields, "area_name")
		assert.Contains(t, fields, "serial_number")
	})
}

func TestCreateArea(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	locker := f.acme(t)
	orgs := service.NewOrganizationService(f.engine, service.NewAllocator(f.store))
	lc, err := f.store.Lockers.Context(ctx, locker.ID)
	require.NoError(t, err)

	area, err := orgs.CreateArea(ctx, service.CreateAreaInput{ActorID: 7, OrganizationID: lc.Organization.ID, Name: "Lab"})
	require.NoError(t, err)
	assert.Equal(t, lc.Organization.ID, area.OrganizationID)
	assert.Len(t, f.audit.withAction(model.ActionAreaCreated), 1)

	_, err = orgs.CreateArea(ctx, service.CreateAreaInput{ActorID: 7, OrganizationID: lc.Organization.ID, Name: "Lab"})
	assert.ErrorIs(t, err, domain.ErrAreaExists)

	_, err = orgs.CreateArea(ctx, service.CreateAreaInput{ActorID: 8, OrganizationID: lc.Organization.ID, Name: "Annex"})
	assert.ErrorIs(t, err, domain.ErrNotOrganizationOwner)

	_, err = orgs.CreateArea(ctx, service.CreateAreaInput{ActorID: 7, OrganizationID: 999, Name: "Annex"})
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}

func TestMoveLocker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	locker := f.acme(t)
	orgs := service.NewOrganizationService(f.engine, service.NewAllocator(f.store))
	lc, err := f.store.Lockers.Context(ctx, locker.ID)
	require.NoError(t, err)
	hq := lc.Area

	lab := repotest.Area(t, f.store, lc.Organization.ID, "Lab")
	resident := repotest.Locker(t, f.store, "SN-LAB", 1)
	repotest.Link(t, f.store, resident.ID, lab.ID, 1)

	moved, err := orgs.MoveLocker(ctx, service.MoveLockerInput{ActorID: 7, LockerID: locker.ID, AreaID: lab.ID})
	require.NoError(t, err)
	require.NotNil(t, moved.AreaID)
	assert.Equal(t, lab.ID, *moved.AreaID)
	assert.Equal(t, 2, *moved.LockerNumber)

	events := f.audit.withAction(model.ActionLockerMoved)
	require.Len(t, events, 1)
	assert.Equal(t, hq.ID, events[0].Details["from_area_id"])
	assert.Equal(t, "Lab", events[0].Locker.AreaName)

	_, err = orgs.MoveLocker(ctx, service.MoveLockerInput{ActorID: 7, LockerID: locker.ID, AreaID: lab.ID})
	assert.ErrorIs(t, err, domain.ErrLockerAlreadyInArea)

	back, err := orgs.MoveLocker(ctx, service.MoveLockerInput{ActorID: 7, LockerID: locker.ID, AreaID: hq.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, *back.LockerNumber)

	t.Run("requires ownership of the destination", func(t *testing.T) {
		_, err := orgs.MoveLocker(ctx, service.MoveLockerInput{ActorID: 8, LockerID: locker.ID, AreaID: lab.ID})
		assert.ErrorIs(t, err, domain.ErrNotOrganizationOwner)
	})

	t.Run("requires super_admin on the locker", func(t *testing.T) {
		_, err := orgs.MoveLocker(ctx, service.MoveLockerInput{ActorID: 7, LockerID: resident.ID, AreaID: hq.ID})
		assert.ErrorIs(t, err, domain.ErrNotLockerSuperAdmin)
	})

	t.Run("unknown area", func(t *testing.T) {
		_, err := orgs.MoveLocker(ctx, service.MoveLockerInput{ActorID: 7, LockerID: locker.ID, AreaID: 999})
		assert.ErrorIs(t, err, domain.ErrAreaNotFound)
	})
}
