package routes

import (
	"net/http"
	"time"

	"groundtransfer/opsdesk/internal/api"
	"groundtransfer/opsdesk/internal/logging"
	"groundtransfer/opsdesk/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes builds the chi router: health, metrics and the sync trigger API
func RegisterRoutes(deps *api.Dependencies, gatherer prometheus.Gatherer, upSince time.Time) http.Handler {
	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.MetricsMiddleware(deps.Metrics))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:8081"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/healthCheck", api.HealthCheckHandler(deps.SqlDB, deps.Services.Fetcher.BreakerState, upSince))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	syncHandler := api.NewSyncHandler(deps.Services.Sync, deps.Services.Backfill, deps.Repo.Ledger, deps.BackfillDefaults())
	RegisterAPIRoutes(r, deps, syncHandler)

	logging.Info("Router initialized with metrics and logging middleware")
	return r
}
