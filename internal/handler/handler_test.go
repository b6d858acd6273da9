package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/audit"
	"github.com/dangerclosesec/lockity/internal/auth"
	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/fanout"
	"github.com/dangerclosesec/lockity/internal/middleware"
	"github.com/dangerclosesec/lockity/internal/mocks"
	"github.com/dangerclosesec/lockity/internal/repository"
	"github.com/dangerclosesec/lockity/internal/repository/repotest"
	"github.com/dangerclosesec/lockity/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrLockerNotFound, http.StatusNotFound},
		{domain.ErrUserInvited, http.StatusNotFound},
		{domain.ErrNotLockerAdmin, http.StatusForbidden},
		{fmt.Errorf("creating schedule: %w", domain.ErrWeeklyScheduleExists), http.StatusConflict},
		{domain.ErrInvalidRole, http.StatusBadRequest},
		{domain.Transient("event queue unavailable", fanout.ErrQueueFull), http.StatusServiceUnavailable},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}

func TestHandleError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	t.Run("field details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleError(rec, req, domain.InvalidFields("invalid schedule", map[string]string{"start_time": "is required"}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"ok":false,"error":"invalid schedule","details":{"start_time":"is required"}}`, rec.Body.String())
	})

	t.Run("internal errors are hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleError(rec, req, errors.New("pq: password authentication failed"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"ok":false,"error":"Internal server error"}`, rec.Body.String())
	})

	t.Run("transient", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleError(rec, req, domain.Transient("event queue unavailable", fanout.ErrQueueFull))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"ok":false,"error":"event queue unavailable"}`, rec.Body.String())
	})
}

type stubQueue struct {
	batches []fanout.Batch
}

func (q *stubQueue) Enqueue(b fanout.Batch) error {
	q.batches = append(q.batches, b)
	return nil
}

type apiFixture struct {
	store  *repository.Store
	tokens *auth.TokenManager
	queue  *stubQueue
	server http.Handler
}

const deviceKey = "device-secret"

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	s := repotest.NewStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := access.NewResolver(s.Roles, s.Organizations)
	engine := service.NewEngine(s, resolver, audit.NoOpRecorder{}, nil, logger)

	sender := mocks.NewMockSender(gomock.NewController(t))
	sender.EXPECT().SendEmail(gomock.Any()).Return(nil).AnyTimes()

	queue := &stubQueue{}
	tokens := auth.NewTokenManager("test_secret", time.Hour)
	lockers := service.NewLockerService(engine)
	h := &Handlers{
		Organizations: NewOrganizationHandler(service.NewOrganizationService(engine, service.NewAllocator(s))),
		Lockers:       NewLockerHandler(service.NewGrantManager(engine, sender, "https://app.lockity.test/signup"), lockers, resolver),
		Schedules:     NewScheduleHandler(service.NewScheduleService(engine)),
		Devices:       NewDeviceHandler(service.NewDeviceTokenService(engine), service.NewLockerLogService(engine, queue), lockers),
	}

	r := chi.NewRouter()
	r.Mount("/api", h.Routes(tokens, deviceKey))

	repotest.User(t, s, 7, "owner@example.com")
	repotest.User(t, s, 9, "member@example.com")
	repotest.Locker(t, s, "SN-001", 3)

	return &apiFixture{store: s, tokens: tokens, queue: queue, server: r}
}

func (f *apiFixture) do(t *testing.T, method, path string, userID uint, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		token, err := f.tokens.Generate(userID, "")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestLockerAPI(t *testing.T) {
	f := newAPI(t)

	rec, body := f.do(t, http.MethodPost, "/api/organizations", 7, map[string]any{
		"name":          "Acme",
		"area_name":     "HQ",
		"serial_number": "SN-001",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["ok"])
	data := body["data"].(map[string]any)
	lockerID := uint(data["locker"].(map[string]any)["id"].(float64))
	base := fmt.Sprintf("/api/lockers/%d", lockerID)

	rec, _ = f.do(t, http.MethodPost, base+"/compartments/2/users", 7, map[string]any{
		"user_email": "member@example.com",
		"role":       "user",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, body = f.do(t, http.MethodPost, base+"/compartments/2/users", 7, map[string]any{
		"user_email": "member@example.com",
		"role":       "user",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["data"].(map[string]any)["created"])

	rec, body = f.do(t, http.MethodGet, base+"/role", 9, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user", body["data"].(map[string]any)["role"])

	rec, _ = f.do(t, http.MethodPost, base+"/compartments/1/users", 9, map[string]any{
		"user_email": "owner@example.com",
		"role":       "user",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = f.do(t, http.MethodPost, base+"/compartments/1/users", 7, map[string]any{
		"user_email": "stranger@example.com",
		"role":       "user",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "invitation")

	rec, _ = f.do(t, http.MethodDelete, base+"/users/9?compartment=abc", 7, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, base+"/users/7", 7, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, base+"/users/9?compartment=2", 7, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = f.do(t, http.MethodGet, base+"/role", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/lockers/abc/role", 7, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleAPI(t *testing.T) {
	f := newAPI(t)
	rec, body := f.do(t, http.MethodPost, "/api/organizations", 7, map[string]any{
		"name": "Acme", "area_name": "HQ", "serial_number": "SN-001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	lockerID := uint(body["data"].(map[string]any)["locker"].(map[string]any)["id"].(float64))
	base := fmt.Sprintf("/api/lockers/%d/schedules", lockerID)

	weekly := map[string]any{
		"day_of_week":     "mon",
		"start_time":      "08:00:00",
		"end_time":        "17:00:00",
		"repeat_schedule": true,
	}
	rec, body = f.do(t, http.MethodPost, base, 7, weekly)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	scheduleID := uint(body["data"].(map[string]any)["id"].(float64))

	rec, _ = f.do(t, http.MethodPost, base, 7, weekly)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = f.do(t, http.MethodPost, base, 7, map[string]any{
		"day_of_week":     "mon",
		"start_time":      "08:00:00",
		"end_time":        "17:00:00",
		"repeat_schedule": true,
		"schedule_date":   "2025-06-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["details"], "schedule_date")

	rec, body = f.do(t, http.MethodPut, fmt.Sprintf("%s/%d", base, scheduleID), 7, map[string]any{
		"end_time": "18:00:00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "18:00:00", body["data"].(map[string]any)["end_time"])
	assert.Equal(t, "mon", body["data"].(map[string]any)["day_of_week"])

	rec, body = f.do(t, http.MethodGet, base, 7, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)
}

func TestDeviceAPI(t *testing.T) {
	f := newAPI(t)
	rec, _ := f.do(t, http.MethodPost, "/api/organizations", 7, map[string]any{
		"name": "Acme", "area_name": "HQ", "serial_number": "SN-001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/devices/tokens", 7, map[string]any{
		"device_token": "fcm-1",
		"device_type":  "mobile",
		"platform":     "ios",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = f.do(t, http.MethodPost, "/api/devices/tokens", 7, map[string]any{
		"device_token": "fcm-1",
		"device_type":  "mobile",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/devices/tokens", 7, map[string]any{"device_token": "fcm-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	post := func(key, payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/iot/logs", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(middleware.APIKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)
		return rec
	}

	rec = post(deviceKey, `{"serial_number":"SN-001","user_id":7,"compartment_number":1,"action":"opening","source":"app"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, f.queue.batches, 1)
	assert.True(t, f.queue.batches[0].Notify)

	rec = post(deviceKey, `[{"serial_number":"SN-001","action":"alarm","source":"sensor"},{"serial_number":"SN-001","action":"photo","source":"camera","photo_path":"p/1.jpg"}]`)
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, f.queue.batches, 2)
	assert.True(t, f.queue.batches[1].InsertMany)
	assert.False(t, f.queue.batches[1].Notify)

	rec = post("", `{"serial_number":"SN-001","action":"opening","source":"app"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(deviceKey, `{"serial_number":"SN-404","action":"opening","source":"app"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(deviceKey, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadAPI(t *testing.T) {
	f := newAPI(t)
	rec, body := f.do(t, http.MethodPost, "/api/organizations", 7, map[string]any{
		"name": "Acme", "area_name": "HQ", "serial_number": "SN-001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := body["data"].(map[string]any)
	lockerID := uint(created["locker"].(map[string]any)["id"].(float64))
	orgID := uint(created["organization"].(map[string]any)["id"].(float64))
	org := fmt.Sprintf("/api/organizations/%d", orgID)

	rec, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/lockers/%d/compartments/2/users", lockerID), 7, map[string]any{
		"user_email": "member@example.com",
		"role":       "user",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	page := func(body map[string]any) []any {
		t.Helper()
		data := body["data"].(map[string]any)
		return data["items"].([]any)
	}

	t.Run("lockers", func(t *testing.T) {
		rec, body := f.do(t, http.MethodGet, "/api/lockers?role=user", 9, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		items := page(body)
		require.Len(t, items, 1)
		item := items[0].(map[string]any)
		assert.Equal(t, "SN-001", item["serial_number"])
		assert.Equal(t, "Acme", item["organization_name"])
		assert.NotContains(t, item, "schedules")

		rec, body = f.do(t, http.MethodGet, "/api/lockers?role=admin", 9, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, page(body))

		rec, body = f.do(t, http.MethodGet, "/api/lockers?page=abc", 9, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body["details"], "page")

		rec, body = f.do(t, http.MethodGet, "/api/lockers?role=owner", 9, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body["details"], "role")

		rec, _ = f.do(t, http.MethodGet, "/api/lockers", 0, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("compartments", func(t *testing.T) {
		path := fmt.Sprintf("/api/lockers/%d/compartments", lockerID)
		rec, body := f.do(t, http.MethodGet, path+"?limit=2", 7, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := body["data"].(map[string]any)
		assert.Equal(t, float64(3), data["total"])
		assert.Equal(t, true, data["has_next_page"])
		items := data["items"].([]any)
		require.Len(t, items, 2)
		users := items[1].(map[string]any)["users"].([]any)
		require.Len(t, users, 2)
		assert.Equal(t, "member@example.com", users[1].(map[string]any)["email"])

		rec, _ = f.do(t, http.MethodGet, path, 9, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec, _ = f.do(t, http.MethodGet, "/api/lockers/999/compartments", 7, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("organizations", func(t *testing.T) {
		rec, body := f.do(t, http.MethodGet, "/api/organizations", 7, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		items := page(body)
		require.Len(t, items, 1)
		assert.Equal(t, "Acme", items[0].(map[string]any)["name"])

		rec, body = f.do(t, http.MethodGet, org+"/areas", 7, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		areas := body["data"].([]any)
		require.Len(t, areas, 1)
		assert.Equal(t, "HQ", areas[0].(map[string]any)["name"])
		assert.Len(t, areas[0].(map[string]any)["lockers"], 1)

		rec, _ = f.do(t, http.MethodGet, org+"/areas", 9, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec, body = f.do(t, http.MethodGet, org+"/users?role=user", 7, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Users with role user retrieved", body["message"])
		members := page(body)
		require.Len(t, members, 1)
		assert.Equal(t, float64(9), members[0].(map[string]any)["id"])

		rec, _ = f.do(t, http.MethodGet, "/api/organizations/999/users", 7, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update organization", func(t *testing.T) {
		rec, body := f.do(t, http.MethodPut, org, 7, map[string]any{"name": "Acme Corp"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Acme Corp", body["data"].(map[string]any)["name"])

		rec, _ = f.do(t, http.MethodPut, org, 9, map[string]any{"name": "Mine"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec, _ = f.do(t, http.MethodPut, org, 7, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("device config", func(t *testing.T) {
		get := func(key, serial string) (*httptest.ResponseRecorder, map[string]any) {
			req := httptest.NewRequest(http.MethodGet, "/api/iot/lockers/"+serial+"/config", nil)
			if key != "" {
				req.Header.Set(middleware.APIKeyHeader, key)
			}
			rec := httptest.NewRecorder()
			f.server.ServeHTTP(rec, req)
			var out map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			return rec, out
		}

		rec, body := get(deviceKey, "SN-001")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		cfg := body["data"].(map[string]any)
		assert.Equal(t, "SN-001", cfg["serial_number"])
		users := cfg["users"].([]any)
		require.Len(t, users, 2)
		assert.Equal(t, []any{float64(2)}, users[1].(map[string]any)["compartments"])

		rec, _ = get("", "SN-001")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec, _ = get(deviceKey, "SN-404")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
