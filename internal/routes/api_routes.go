package routes

import (
	"time"

	"groundtransfer/opsdesk/internal/api"
	"groundtransfer/opsdesk/internal/middleware"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// RegisterAPIRoutes registers all API v1 routes and handlers
func RegisterAPIRoutes(r chi.Router, deps *api.Dependencies, syncHandler *api.SyncHandler) {
	r.Route("/api/v1/sync", func(v1 chi.Router) {
		v1.Use(middleware.AuthMiddleware(deps.Services.Tokens))

		v1.Get("/runs", syncHandler.ListRuns())

		// Each trigger costs a full upstream pass
		v1.Group(func(trigger chi.Router) {
			trigger.Use(middleware.RateLimitMiddleware(rate.Every(10*time.Second), 3))

			trigger.Post("/recency", syncHandler.TriggerRecency())
			trigger.Post("/horizon", syncHandler.TriggerHorizon())
			trigger.Post("/scheduled", syncHandler.TriggerScheduled())
			trigger.Post("/range", syncHandler.TriggerRange())
			trigger.Post("/bookings/{ref}", syncHandler.TriggerBooking())
			trigger.Post("/backfill", syncHandler.TriggerBackfill())
		})
	})
}
