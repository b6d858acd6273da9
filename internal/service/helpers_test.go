package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/repository"
	"github.com/dangerclosesec/lockity/internal/repository/repotest"
	"github.com/dangerclosesec/lockity/internal/service"
	"github.com/stretchr/testify/require"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []*model.AuditEvent
}

func (r *recordedEvents) Record(_ context.Context, e *model.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) withAction(action string) []*model.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AuditEvent
	for _, e := range r.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store  *repository.Store
	engine *service.Engine
	audit  *recordedEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := repotest.NewStore(t)
	rec := &recordedEvents{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := access.NewResolver(s.Roles, s.Organizations, access.WithLogger(logger))
	return &fixture{
		store:  s,
		engine: service.NewEngine(s, resolver, rec, nil, logger),
		audit:  rec,
	}
}

// acme seeds the owner (7), a member (9) and an admin (8), then has the
// owner create organization Acme with area HQ around locker SN-001.
func (f *fixture) acme(t *testing.T) *model.Locker {
	t.Helper()
	repotest.User(t, f.store, 7, "owner@example.com")
	repotest.User(t, f.store, 8, "admin@example.com")
	repotest.User(t, f.store, 9, "member@example.com")
	repotest.Locker(t, f.store, "SN-001", 3)

	orgs := service.NewOrganizationService(f.engine, service.NewAllocator(f.store))
	res, err := orgs.CreateOrganization(context.Background(), service.CreateOrganizationInput{
		ActorID:      7,
		Name:         "Acme",
		AreaName:     "HQ",
		SerialNumber: "SN-001",
	})
	require.NoError(t, err)
	repotest.Role(t, f.store, res.Locker.ID, 8, model.RoleAdmin)
	return res.Locker
}
