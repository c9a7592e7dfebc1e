package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkozlowski/tokensentry/internal/config"
	"github.com/lkozlowski/tokensentry/internal/domain"
	"github.com/lkozlowski/tokensentry/internal/market"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubAlertStore struct {
	alerts []domain.Alert
	err    error
}

func (s *stubAlertStore) Insert(context.Context, domain.Alert) error { return nil }

func (s *stubAlertStore) ListRecent(context.Context, int) ([]domain.Alert, error) {
	return s.alerts, s.err
}

type handlerFixture struct {
	handler *Handler
	runtime *config.Runtime
	store   *market.SnapshotStore
}

func newHandlerFixture(alertStore domain.AlertStore) *handlerFixture {
	cfg := config.Defaults()
	rt := config.NewRuntime(&cfg)
	store := market.NewSnapshotStore(cfg.Monitor.SnapshotCapacity)
	universe := market.NewUniverseManager(nil, rt, nil, testLogger())

	return &handlerFixture{
		handler: NewHandler(universe, store, rt, alertStore, testLogger()),
		runtime: rt,
		store:   store,
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newHandlerFixture(nil)

	rec := httptest.NewRecorder()
	f.handler.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestStatusReportsEngineState(t *testing.T) {
	f := newHandlerFixture(nil)

	rec := httptest.NewRecorder()
	f.handler.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	assert.Equal(t, false, body["paused"])
	assert.Equal(t, true, body["tier25_enabled"])
	assert.Equal(t, float64(0), body["universe_count"])
	assert.Equal(t, float64(0), body["tracked_count"])
	assert.Equal(t, float64((30*time.Minute).Milliseconds()), body["cooldown_ms"])
}

func TestPauseAndResume(t *testing.T) {
	f := newHandlerFixture(nil)

	rec := httptest.NewRecorder()
	f.handler.Pause(rec, httptest.NewRequest(http.MethodPost, "/control/pause", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.runtime.Current().Paused)

	rec = httptest.NewRecorder()
	f.handler.Resume(rec, httptest.NewRequest(http.MethodPost, "/control/resume", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.runtime.Current().Paused)
}

func TestUpdateSettingsPartialPatch(t *testing.T) {
	f := newHandlerFixture(nil)

	body := `{"tier25_enabled": false, "cooldown_ms": 60000}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/control/settings", strings.NewReader(body))
	f.handler.UpdateSettings(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	s := f.runtime.Current()
	assert.False(t, s.Tier25Enabled)
	assert.Equal(t, time.Minute, s.Cooldown)

	// Fields absent from the patch keep their values.
	assert.True(t, s.Tier50Enabled)
	assert.Equal(t, 100_000.0, s.MaxMarketCap)
}

func TestUpdateSettingsRejectsBadInput(t *testing.T) {
	f := newHandlerFixture(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/control/settings", strings.NewReader("{not json"))
	f.handler.UpdateSettings(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/control/settings", strings.NewReader(`{"cooldown_ms": 0}`))
	f.handler.UpdateSettings(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing was applied.
	assert.Equal(t, 30*time.Minute, f.runtime.Current().Cooldown)
}

func TestRecentAlertsWithoutPersistence(t *testing.T) {
	f := newHandlerFixture(nil)

	rec := httptest.NewRecorder()
	f.handler.RecentAlerts(rec, httptest.NewRequest(http.MethodGet, "/alerts/recent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecentAlertsReturnsHistory(t *testing.T) {
	alertStore := &stubAlertStore{alerts: []domain.Alert{{ID: "alert-1", Tier: domain.Tier25}}}
	f := newHandlerFixture(alertStore)

	rec := httptest.NewRecorder()
	f.handler.RecentAlerts(rec, httptest.NewRequest(http.MethodGet, "/alerts/recent", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Len(t, body["alerts"], 1)
}
