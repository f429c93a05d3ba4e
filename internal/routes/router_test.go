package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"groundtransfer/opsdesk/internal/api"
	"groundtransfer/opsdesk/internal/config"
	"groundtransfer/opsdesk/internal/db"
	"groundtransfer/opsdesk/internal/metrics"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (http.Handler, *api.Dependencies) {
	t.Helper()
	pgDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := pgDB.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(pgDB); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: "http://upstream.invalid", PageSize: 100, MaxAttempts: 1},
		Sync:     config.SyncConfig{MaxRangeDays: 30, DetailConcurrency: 1},
		Auth:     config.AuthConfig{TokenSecret: "test-secret", TokenTTL: time.Hour},
	}

	reg := prometheus.NewRegistry()
	deps := api.BuildDependencies(cfg, pgDB, sqlx.NewDb(sqlDB, "sqlite3"), metrics.NewMetricsRegistry(reg))
	return RegisterRoutes(deps, reg, time.Now()), deps
}

func TestRouter_HealthAndMetricsArePublic(t *testing.T) {
	router, _ := newTestServer(t)

	for _, path := range []string{"/healthCheck", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 for %s, got %d", path, rec.Code)
		}
	}
}

func TestRouter_SyncRoutesRequireToken(t *testing.T) {
	router, deps := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/runs", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", rec.Code)
	}

	token, err := deps.Services.Tokens.Issue("router-test")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/runs?limit=5", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with a token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_RangeValidationBeforeUpstream(t *testing.T) {
	router, deps := newTestServer(t)
	token, _ := deps.Services.Tokens.Issue("router-test")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/range",
		strings.NewReader(`{"date_from":"2026-01-01","date_to":"2026-06-01"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a range over the cap, got %d", rec.Code)
	}

	var count int64
	deps.PgDB.Table("sync_status").Count(&count)
	if count != 0 {
		t.Errorf("Expected no ledger rows, got %d", count)
	}
}
