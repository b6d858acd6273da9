// Package repotest provides a throwaway SQLite-backed Store and seed helpers
// for tests.
package repotest

import (
	"context"
	"fmt"
	"testing"

	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewStore opens a private in-memory database with the full schema.
func NewStore(t testing.TB) *repository.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.AutoMigrate(db))
	return repository.NewStore(db)
}

// User creates a user with a fixed id.
func User(t testing.TB, s *repository.Store, id uint, email string) *model.User {
	t.Helper()
	u := &model.User{ID: id, Name: fmt.Sprintf("User%d", id), LastName: "Test", Email: email}
	require.NoError(t, s.Users.Create(context.Background(), u))
	return u
}

// Locker provisions an unlinked locker with n compartments numbered from 1.
func Locker(t testing.TB, s *repository.Store, serial string, n int) *model.Locker {
	t.Helper()
	l := &model.Locker{SerialNumber: serial}
	for i := 1; i <= n; i++ {
		l.Compartments = append(l.Compartments, model.Compartment{
			CompartmentNumber: i,
			Status:            model.CompartmentClosed,
		})
	}
	require.NoError(t, s.Lockers.Create(context.Background(), l))
	return l
}

// Organization creates an organization owned by ownerID with one area.
func Organization(t testing.TB, s *repository.Store, name string, ownerID uint, areaName string) (*model.Organization, *model.Area) {
	t.Helper()
	ctx := context.Background()
	org := &model.Organization{Name: name, CreatedByID: ownerID}
	require.NoError(t, s.Organizations.Create(ctx, org))
	area := &model.Area{Name: areaName, OrganizationID: org.ID}
	require.NoError(t, s.Areas.Create(ctx, area))
	return org, area
}

// Area adds an area to an existing organization.
func Area(t testing.TB, s *repository.Store, organizationID uint, name string) *model.Area {
	t.Helper()
	area := &model.Area{Name: name, OrganizationID: organizationID}
	require.NoError(t, s.Areas.Create(context.Background(), area))
	return area
}

// Link places a locker in an area under number.
func Link(t testing.TB, s *repository.Store, lockerID, areaID uint, number int) {
	t.Helper()
	require.NoError(t, s.Lockers.AssignArea(context.Background(), lockerID, areaID, number))
}

// Role sets a user's role on a locker.
func Role(t testing.TB, s *repository.Store, lockerID, userID uint, role model.Role) {
	t.Helper()
	require.NoError(t, s.Roles.Upsert(context.Background(), lockerID, userID, role))
}

// Grant gives a user access to the listed compartment numbers.
func Grant(t testing.TB, s *repository.Store, lockerID, userID uint, numbers ...int) *model.AccessPermission {
	t.Helper()
	ctx := context.Background()
	perm, err := s.Permissions.FindOrCreate(ctx, lockerID, userID)
	require.NoError(t, err)
	for _, n := range numbers {
		c, err := s.Compartments.FindByNumber(ctx, lockerID, n)
		require.NoError(t, err)
		_, err = s.Permissions.GrantCompartment(ctx, perm.ID, c.ID)
		require.NoError(t, err)
	}
	return perm
}

// Count returns the row count of a model table.
func Count(t testing.TB, s *repository.Store, m any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := s.DB().Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
