package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rentora/appointment-service/internal/enrichment"
	"github.com/rentora/appointment-service/internal/events"
	"github.com/rentora/appointment-service/internal/model"
	"github.com/rentora/appointment-service/internal/service"
	"github.com/rentora/appointment-service/internal/storage"
)

// memStore is a minimal in-memory service.Store for handler tests.
type memStore struct {
	seq  int
	byID map[string]model.Appointment
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]model.Appointment{}}
}

func (m *memStore) Create(_ context.Context, a *model.Appointment) (model.Appointment, error) {
	m.seq++
	saved := *a
	saved.ID = fmt.Sprintf("apt-%d", m.seq)
	saved.CreatedAt = time.Now().UTC()
	saved.UpdatedAt = saved.CreatedAt
	m.byID[saved.ID] = saved
	return saved, nil
}

func (m *memStore) Update(_ context.Context, a *model.Appointment) (model.Appointment, error) {
	if _, ok := m.byID[a.ID]; !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	saved := *a
	saved.UpdatedAt = time.Now().UTC()
	m.byID[saved.ID] = saved
	return saved, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (model.Appointment, error) {
	a, ok := m.byID[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return a, nil
}

func (m *memStore) FindByConfirmationToken(_ context.Context, token string) (model.Appointment, error) {
	for _, a := range m.byID {
		if a.ConfirmationToken == token {
			return a, nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (m *memStore) all() []model.Appointment {
	var out []model.Appointment
	for _, a := range m.byID {
		out = append(out, a)
	}
	return out
}

func (m *memStore) FindByRequester(_ context.Context, id int64) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.byID {
		if a.RequesterID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FindByProvider(_ context.Context, id int64) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.byID {
		if a.ProviderID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FindByProperty(_ context.Context, id int64) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.byID {
		if a.PropertyID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FindByUser(_ context.Context, id int64) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.byID {
		if a.RequesterID == id || a.ProviderID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FindByStatus(_ context.Context, status model.Status) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.byID {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FindByType(_ context.Context, t model.Type) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.byID {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FindByDateRange(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.byID {
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FindAll(context.Context) ([]model.Appointment, error) {
	return m.all(), nil
}

func (m *memStore) FindProviderBooked(_ context.Context, providerID int64, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.byID {
		if a.ProviderID == providerID && a.Status.Active() && a.StartTime.Before(to) && a.EndTime().After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ExistsDuplicate(_ context.Context, requesterID, providerID, propertyID int64, start time.Time) (bool, error) {
	for _, a := range m.byID {
		if a.RequesterID == requesterID && a.ProviderID == providerID && a.PropertyID == propertyID && a.StartTime.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FindPendingReminders(context.Context, model.Status, time.Time) ([]model.Appointment, error) {
	return nil, nil
}

func (m *memStore) MarkReminderSent(context.Context, string) error { return nil }

type noUsers struct{}

func (noUsers) GetUserByID(context.Context, int64) (model.User, error) {
	return model.User{}, errors.New("down")
}

func (noUsers) GetUserByUsername(context.Context, string) (model.User, error) {
	return model.User{}, errors.New("down")
}

type noProperties struct{}

func (noProperties) GetPropertyByID(context.Context, int64) (model.Property, error) {
	return model.Property{}, errors.New("down")
}

func newTestMux(t *testing.T) (*http.ServeMux, *memStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	enricher := enrichment.New(noUsers{}, noProperties{}, logger, enrichment.Config{})
	svc := service.New(store, enricher, events.NopEmitter{}, logger, service.Config{})
	mux := http.NewServeMux()
	New(svc, logger).Register(mux)
	return mux, store
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return rec, env
}

func createBody(start time.Time) map[string]any {
	return map[string]any{
		"title":           "Flat viewing",
		"startTime":       start.Format(time.RFC3339),
		"durationMinutes": 60,
		"type":            "VIEWING",
		"propertyId":      11,
		"requesterId":     7,
		"providerId":      2,
		"location":        "12 Main St",
	}
}

func TestCreateAndFetch(t *testing.T) {
	mux, _ := newTestMux(t)
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	rec, env := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", createBody(start))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !env.Success {
		t.Fatalf("expected success envelope: %+v", env)
	}
	data := env.Data.(map[string]any)
	id := data["id"].(string)
	if data["status"] != "PENDING" {
		t.Fatalf("status = %v", data["status"])
	}

	rec, env = doJSON(t, mux, http.MethodGet, "/api/v1/appointments/"+id, nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("get status = %d, env %+v", rec.Code, env)
	}
}

func TestCreate_ConflictMapsTo409(t *testing.T) {
	mux, _ := newTestMux(t)
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", createBody(start))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create status = %d", rec.Code)
	}

	body := createBody(start.Add(30 * time.Minute))
	body["requesterId"] = 8
	rec, env := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if env.Success || env.ErrorCode != service.CodeTimeConflict {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestCreate_PastTimeMapsTo400(t *testing.T) {
	mux, _ := newTestMux(t)
	rec, env := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", createBody(time.Now().UTC().Add(-time.Hour)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.ErrorCode != service.CodeInvalidTime {
		t.Fatalf("errorCode = %q", env.ErrorCode)
	}
}

func TestGet_UnknownIDMapsTo404(t *testing.T) {
	mux, _ := newTestMux(t)
	rec, env := doJSON(t, mux, http.MethodGet, "/api/v1/appointments/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env.Success {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestConfirmByTokenRoute(t *testing.T) {
	mux, store := newTestMux(t)
	start := time.Now().UTC().Add(48 * time.Hour)

	rec, env := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", createBody(start))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	id := env.Data.(map[string]any)["id"].(string)
	token := store.byID[id].ConfirmationToken

	rec, env = doJSON(t, mux, http.MethodPut, "/api/v1/appointments/confirm/token/"+token, nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("confirm status = %d, env %+v", rec.Code, env)
	}
	if env.Data.(map[string]any)["status"] != "CONFIRMED" {
		t.Fatalf("status = %v", env.Data.(map[string]any)["status"])
	}

	rec, env = doJSON(t, mux, http.MethodPut, "/api/v1/appointments/confirm/token/bogus", nil)
	if rec.Code != http.StatusNotFound || env.ErrorCode != service.CodeInvalidToken {
		t.Fatalf("bogus token: status = %d, env %+v", rec.Code, env)
	}
}

func TestLifecycleRoutes(t *testing.T) {
	mux, _ := newTestMux(t)
	start := time.Now().UTC().Add(48 * time.Hour)

	_, env := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", createBody(start))
	id := env.Data.(map[string]any)["id"].(string)

	rec, env := doJSON(t, mux, http.MethodPut, "/api/v1/appointments/"+id+"/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, env %+v", rec.Code, env)
	}

	rec, env = doJSON(t, mux, http.MethodPut, "/api/v1/appointments/"+id+"/complete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d, env %+v", rec.Code, env)
	}

	// Completed appointments reject cancellation.
	rec, env = doJSON(t, mux, http.MethodPut, "/api/v1/appointments/"+id+"/cancel", map[string]any{"reason": "x"})
	if rec.Code != http.StatusConflict || env.ErrorCode != service.CodeInvalidStatus {
		t.Fatalf("cancel status = %d, env %+v", rec.Code, env)
	}
}

func TestAvailableSlotsRoute(t *testing.T) {
	mux, _ := newTestMux(t)

	day := time.Now().UTC().AddDate(0, 0, 7)
	start := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	rec, _ := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", createBody(start))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	path := fmt.Sprintf("/api/v1/appointments/available-slots?providerId=2&date=%s&duration=60", start.Format("2006-01-02"))
	rec, env := doJSON(t, mux, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("slots status = %d, env %+v", rec.Code, env)
	}
	slots := env.Data.([]any)
	for _, raw := range slots {
		s, err := time.Parse(time.RFC3339, raw.(string))
		if err != nil {
			t.Fatalf("bad slot %v: %v", raw, err)
		}
		if s.Before(start.Add(-time.Hour)) || s.After(start.Add(time.Hour)) {
			continue
		}
		if !s.Equal(start.Add(-time.Hour)) && !s.Equal(start.Add(time.Hour)) {
			t.Fatalf("slot %s overlaps the booked hour", raw)
		}
	}
}

func TestStatisticsRoute(t *testing.T) {
	mux, _ := newTestMux(t)
	start := time.Now().UTC().Add(48 * time.Hour)

	if rec, _ := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", createBody(start)); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	rec, env := doJSON(t, mux, http.MethodGet, "/api/v1/appointments/statistics/7", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("statistics status = %d, env %+v", rec.Code, env)
	}
	data := env.Data.(map[string]any)
	if data["total"].(float64) != 1 || data["upcoming"].(float64) != 1 {
		t.Fatalf("statistics = %+v", data)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestMux(t)
	rec, env := doJSON(t, mux, http.MethodDelete, "/api/v1/appointments", nil)
	if rec.Code != http.StatusMethodNotAllowed || env.Success {
		t.Fatalf("status = %d, env %+v", rec.Code, env)
	}
}

func TestAuthorizeHook(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	enricher := enrichment.New(noUsers{}, noProperties{}, logger, enrichment.Config{})
	svc := service.New(store, enricher, events.NopEmitter{}, logger, service.Config{})

	h := New(svc, logger)
	h.Authorize = func(_ *http.Request, capability string) error {
		if capability == "write" {
			return errors.New("write access denied")
		}
		return nil
	}
	mux := http.NewServeMux()
	h.Register(mux)

	start := time.Now().UTC().Add(48 * time.Hour)
	rec, env := doJSON(t, mux, http.MethodPost, "/api/v1/appointments", createBody(start))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("create status = %d, want 403", rec.Code)
	}
	if env.Success {
		t.Fatalf("expected failure envelope: %+v", env)
	}

	rec, env = doJSON(t, mux, http.MethodGet, "/api/v1/appointments", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("list status = %d, env %+v", rec.Code, env)
	}

	rec, _ = doJSON(t, mux, http.MethodPut, "/api/v1/appointments/apt-1/confirm", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("confirm status = %d, want 403", rec.Code)
	}
}
