// internal/service/numbering.go
package service

import (
	"context"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/repository"
)

// Allocator assigns locker numbers so that the numbers in an area always
// form the densest prefix of positive integers that removals allow.
type Allocator struct {
	store *repository.Store
}

func NewAllocator(store *repository.Store) *Allocator {
	return &Allocator{store: store}
}

// NextFreeNumber returns the lowest positive integer missing from the
// ascending sequence numbers.
func NextFreeNumber(numbers []int) int {
	next := 1
	for _, n := range numbers {
		if n < next {
			continue
		}
		if n > next {
			break
		}
		next++
	}
	return next
}

// AssignNextNumber links the locker to the area under the lowest free
// number, in its own transaction.
func (a *Allocator) AssignNextNumber(ctx context.Context, lockerID, areaID uint) (int, error) {
	var number int
	err := a.store.Transaction(ctx, func(tx *repository.Store) error {
		n, err := a.AssignNextNumberTx(ctx, tx, lockerID, areaID)
		number = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return number, nil
}

// AssignNextNumberTx is AssignNextNumber inside the caller's transaction.
// The area row and its lockers stay locked until that transaction ends, so
// concurrent moves into the same area serialize on the read-then-assign.
func (a *Allocator) AssignNextNumberTx(ctx context.Context, tx *repository.Store, lockerID, areaID uint) (int, error) {
	if lockerID == 0 || areaID == 0 {
		return 0, domain.ErrInvalidNumber
	}
	if _, err := tx.Areas.LockForUpdate(ctx, areaID); err != nil {
		return 0, err
	}
	if _, err := tx.Lockers.LockForUpdate(ctx, lockerID); err != nil {
		return 0, err
	}

	numbers, err := tx.Lockers.NumbersInArea(ctx, areaID, lockerID)
	if err != nil {
		return 0, err
	}
	number := NextFreeNumber(numbers)

	if err := tx.Lockers.AssignArea(ctx, lockerID, areaID, number); err != nil {
		return 0, err
	}
	return number, nil
}
