// internal/repository/locker.go
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

type LockerRepository struct {
	db *gorm.DB
}

func NewLockerRepository(db *gorm.DB) *LockerRepository {
	return &LockerRepository{db: db}
}

// Create provisions a locker together with its compartments.
func (r *LockerRepository) Create(ctx context.Context, locker *model.Locker) error {
	if err := r.db.WithContext(ctx).Create(locker).Error; err != nil {
		return fmt.Errorf("failed to create locker: %w", err)
	}
	return nil
}

func (r *LockerRepository) FindByID(ctx context.Context, id uint) (*model.Locker, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *LockerRepository) FindBySerial(ctx context.Context, serial string) (*model.Locker, error) {
	return r.first(r.db.WithContext(ctx), "serial_number = ?", serial)
}

// FindBySerialForUpdate loads and row-locks a locker by serial number.
func (r *LockerRepository) FindBySerialForUpdate(ctx context.Context, serial string) (*model.Locker, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "serial_number = ?", serial)
}

// LockForUpdate loads and row-locks a locker by id.
func (r *LockerRepository) LockForUpdate(ctx context.Context, id uint) (*model.Locker, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *LockerRepository) first(q *gorm.DB, query string, args ...any) (*model.Locker, error) {
	var locker model.Locker
	result := q.Where(query, args...).First(&locker)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLockerNotFound
		}
		return nil, fmt.Errorf("failed to find locker: %w", result.Error)
	}
	return &locker, nil
}

// Context resolves a locker together with its area and organization.
func (r *LockerRepository) Context(ctx context.Context, id uint) (*model.LockerContext, error) {
	locker, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.contextOf(ctx, locker)
}

// ContextBySerial is Context keyed by serial number.
func (r *LockerRepository) ContextBySerial(ctx context.Context, serial string) (*model.LockerContext, error) {
	locker, err := r.FindBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	return r.contextOf(ctx, locker)
}

func (r *LockerRepository) contextOf(ctx context.Context, locker *model.Locker) (*model.LockerContext, error) {
	lc := &model.LockerContext{Locker: locker}
	if !locker.Linked() {
		return lc, nil
	}

	var area model.Area
	if err := r.db.WithContext(ctx).First(&area, *locker.AreaID).Error; err != nil {
		return nil, fmt.Errorf("failed to load locker area: %w", err)
	}
	var org model.Organization
	if err := r.db.WithContext(ctx).First(&org, area.OrganizationID).Error; err != nil {
		return nil, fmt.Errorf("failed to load locker organization: %w", err)
	}
	lc.Area = &area
	lc.Organization = &org
	return lc, nil
}

// NumbersInArea returns the locker numbers assigned in an area, ascending,
// excluding the given locker. The matching rows stay locked for the rest of
// the transaction.
func (r *LockerRepository) NumbersInArea(ctx context.Context, areaID, excludeLockerID uint) ([]int, error) {
	var numbers []int
	if err := r.db.WithContext(ctx).Model(&model.Locker{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("area_id = ? AND id <> ? AND locker_number IS NOT NULL", areaID, excludeLockerID).
		Order("locker_number ASC").
		Pluck("locker_number", &numbers).Error; err != nil {
		return nil, fmt.Errorf("failed to list locker numbers: %w", err)
	}
	return numbers, nil
}

// AssignArea links a locker to an area under the given number.
func (r *LockerRepository) AssignArea(ctx context.Context, lockerID, areaID uint, number int) error {
	result := r.db.WithContext(ctx).Model(&model.Locker{}).
		Where("id = ?", lockerID).
		Updates(map[string]any{"area_id": areaID, "locker_number": number})
	if result.Error != nil {
		return fmt.Errorf("failed to assign locker area: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrLockerNotFound
	}
	return nil
}

// LockerFilter narrows ListForUser. Zero fields match everything.
type LockerFilter struct {
	Role           model.Role
	OrganizationID uint
}

// ListForUser pages through the linked lockers on which userID holds a
// role, ordered by locker id.
func (r *LockerRepository) ListForUser(ctx context.Context, userID uint, filter LockerFilter, page Page) ([]model.LockerSummary, int64, error) {
	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Table("lockers").
			Joins("JOIN locker_user_roles ON locker_user_roles.locker_id = lockers.id AND locker_user_roles.user_id = ?", userID).
			Joins("JOIN areas ON areas.id = lockers.area_id").
			Joins("JOIN organizations ON organizations.id = areas.organization_id")
		if filter.Role != "" {
			q = q.Where("locker_user_roles.role = ?", filter.Role)
		}
		if filter.OrganizationID != 0 {
			q = q.Where("organizations.id = ?", filter.OrganizationID)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count user lockers: %w", err)
	}
	var lockers []model.LockerSummary
	if err := query().
		Select("lockers.id, lockers.serial_number, lockers.locker_number, lockers.area_id, " +
			"areas.name AS area_name, organizations.id AS organization_id, " +
			"organizations.name AS organization_name, locker_user_roles.role").
		Order("lockers.id ASC").
		Scopes(page.scope).
		Scan(&lockers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list user lockers: %w", err)
	}
	return lockers, total, nil
}

// ListByOrganization returns every locker linked to one of the
// organization's areas, ordered by area and number.
func (r *LockerRepository) ListByOrganization(ctx context.Context, organizationID uint) ([]model.Locker, error) {
	var lockers []model.Locker
	if err := r.db.WithContext(ctx).
		Joins("JOIN areas ON areas.id = lockers.area_id").
		Where("areas.organization_id = ?", organizationID).
		Order("lockers.area_id ASC, lockers.locker_number ASC").
		Find(&lockers).Error; err != nil {
		return nil, fmt.Errorf("failed to list organization lockers: %w", err)
	}
	return lockers, nil
}

type CompartmentRepository struct {
	db *gorm.DB
}

func NewCompartmentRepository(db *gorm.DB) *CompartmentRepository {
	return &CompartmentRepository{db: db}
}

func (r *CompartmentRepository) FindByNumber(ctx context.Context, lockerID uint, number int) (*model.Compartment, error) {
	var c model.Compartment
	result := r.db.WithContext(ctx).
		Where("locker_id = ? AND compartment_number = ?", lockerID, number).
		First(&c)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCompartmentNotFound
		}
		return nil, fmt.Errorf("failed to find compartment: %w", result.Error)
	}
	return &c, nil
}

func (r *CompartmentRepository) ListByLocker(ctx context.Context, lockerID uint) ([]model.Compartment, error) {
	var cs []model.Compartment
	if err := r.db.WithContext(ctx).
		Where("locker_id = ?", lockerID).
		Order("compartment_number ASC").
		Find(&cs).Error; err != nil {
		return nil, fmt.Errorf("failed to list compartments: %w", err)
	}
	return cs, nil
}

func (r *CompartmentRepository) UpdateStatus(ctx context.Context, id uint, status model.CompartmentStatus) error {
	if err := r.db.WithContext(ctx).Model(&model.Compartment{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update compartment status: %w", err)
	}
	return nil
}

// ListPage pages through a locker's compartments by number.
func (r *CompartmentRepository) ListPage(ctx context.Context, lockerID uint, page Page) ([]model.Compartment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Compartment{}).
		Where("locker_id = ?", lockerID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count compartments: %w", err)
	}
	var cs []model.Compartment
	if err := r.db.WithContext(ctx).
		Where("locker_id = ?", lockerID).
		Order("compartment_number ASC").
		Scopes(page.scope).
		Find(&cs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list compartments: %w", err)
	}
	return cs, total, nil
}
