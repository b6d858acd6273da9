// internal/repository/store.go
package repository

import (
	"context"
	"fmt"

	"github.com/dangerclosesec/lockity/internal/model"
	"gorm.io/gorm"
)

// Store groups the relational repositories over one connection or one
// open transaction.
type Store struct {
	db *gorm.DB

	Organizations *OrganizationRepository
	Areas         *AreaRepository
	Lockers       *LockerRepository
	Compartments  *CompartmentRepository
	Users         *UserRepository
	Roles         *RoleRepository
	Permissions   *PermissionRepository
	Schedules     *ScheduleRepository
	DeviceTokens  *DeviceTokenRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Organizations: NewOrganizationRepository(db),
		Areas:         NewAreaRepository(db),
		Lockers:       NewLockerRepository(db),
		Compartments:  NewCompartmentRepository(db),
		Users:         NewUserRepository(db),
		Roles:         NewRoleRepository(db),
		Permissions:   NewPermissionRepository(db),
		Schedules:     NewScheduleRepository(db),
		DeviceTokens:  NewDeviceTokenRepository(db),
	}
}

// DB returns the underlying database handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Models lists every relational entity in dependency order.
func Models() []any {
	return []any{
		&model.User{},
		&model.Organization{},
		&model.Area{},
		&model.Locker{},
		&model.Compartment{},
		&model.LockerUserRole{},
		&model.AccessPermission{},
		&model.AccessPermissionCompartment{},
		&model.Schedule{},
		&model.DeviceToken{},
	}
}

// AutoMigrate creates or updates the relational schema.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
