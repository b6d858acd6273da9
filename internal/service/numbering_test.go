package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/repository/repotest"
	"github.com/dangerclosesec/lockity/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFreeNumber(t *testing.T) {
	tests := []struct {
		name    string
		numbers []int
		want    int
	}{
		{"empty area", nil, 1},
		{"dense prefix", []int{1, 2, 3}, 4},
		{"gap in the middle", []int{1, 2, 4}, 3},
		{"gap at the start", []int{2, 3}, 1},
		{"first of several gaps", []int{1, 3, 5}, 2},
		{"duplicates tolerated", []int{1, 1, 2}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.NextFreeNumber(tt.numbers))
		})
	}
}

func TestAssignNextNumber(t *testing.T) {
	ctx := context.Background()
	s := repotest.NewStore(t)
	a := service.NewAllocator(s)
	_, area := repotest.Organization(t, s, "Acme", 7, "HQ")

	l1 := repotest.Locker(t, s, "SN-001", 1)
	l2 := repotest.Locker(t, s, "SN-002", 1)
	l4 := repotest.Locker(t, s, "SN-004", 1)
	repotest.Link(t, s, l1.ID, area.ID, 1)
	repotest.Link(t, s, l2.ID, area.ID, 2)
	repotest.Link(t, s, l4.ID, area.ID, 4)

	fresh := repotest.Locker(t, s, "SN-NEW", 1)
	n, err := a.AssignNextNumber(ctx, fresh.ID, area.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	next := repotest.Locker(t, s, "SN-NEXT", 1)
	n, err = a.AssignNextNumber(ctx, next.ID, area.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	stored, err := s.Lockers.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AreaID)
	assert.Equal(t, area.ID, *stored.AreaID)
	require.NotNil(t, stored.LockerNumber)
	assert.Equal(t, 3, *stored.LockerNumber)
}

func TestAssignNextNumberReusesVacatedNumber(t *testing.T) {
	ctx := context.Background()
	s := repotest.NewStore(t)
	a := service.NewAllocator(s)
	org, hq := repotest.Organization(t, s, "Acme", 7, "HQ")

	l1 := repotest.Locker(t, s, "SN-001", 1)
	l2 := repotest.Locker(t, s, "SN-002", 1)
	l3 := repotest.Locker(t, s, "SN-003", 1)
	for i, l := range []uint{l1.ID, l2.ID, l3.ID} {
		repotest.Link(t, s, l, hq.ID, i+1)
	}

	lab := repotest.Area(t, s, org.ID, "Lab")
	n, err := a.AssignNextNumber(ctx, l2.ID, lab.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fresh := repotest.Locker(t, s, "SN-004", 1)
	n, err = a.AssignNextNumber(ctx, fresh.ID, hq.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAssignNextNumberConcurrent(t *testing.T) {
	ctx := context.Background()
	s := repotest.NewStore(t)
	a := service.NewAllocator(s)
	_, area := repotest.Organization(t, s, "Acme", 7, "HQ")

	const lockers = 8
	ids := make([]uint, lockers)
	for i := range ids {
		ids[i] = repotest.Locker(t, s, fmt.Sprintf("SN-%03d", i), 1).ID
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			n, err := a.AssignNextNumber(ctx, id, area.ID)
			assert.NoError(t, err)
			mu.Lock()
			numbers = append(numbers, n)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	sort.Ints(numbers)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, numbers)
}

func TestAssignNextNumberErrors(t *testing.T) {
	ctx := context.Background()
	s := repotest.NewStore(t)
	a := service.NewAllocator(s)
	_, area := repotest.Organization(t, s, "Acme", 7, "HQ")
	l := repotest.Locker(t, s, "SN-001", 1)

	_, err := a.AssignNextNumber(ctx, 0, area.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidNumber)

	_, err = a.AssignNextNumber(ctx, l.ID, 999)
	assert.ErrorIs(t, err, domain.ErrAreaNotFound)

	_, err = a.AssignNextNumber(ctx, 999, area.ID)
	assert.ErrorIs(t, err, domain.ErrLockerNotFound)
}
