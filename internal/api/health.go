package api

import (
	"context"
	"net/http"
	"time"

	"groundtransfer/opsdesk/internal/models/entities"
)

// Pinger is satisfied by *sqlx.DB and *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthCheckHandler handles GET /healthCheck
//
// Postgres must answer a ping; an open upstream breaker reports the service as degraded.
func HealthCheckHandler(db Pinger, breakerState func() string, upSince time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := make(map[string]entities.ServiceStatus)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		pgstatus := "ok"
		pgDetails := "Postgres Connected"
		if err := db.PingContext(ctx); err != nil {
			pgstatus = "down"
			pgDetails = err.Error()
		}
		services["postgres"] = entities.ServiceStatus{
			Status:  pgstatus,
			Details: pgDetails,
		}

		if breakerState != nil {
			state := breakerState()
			upstreamStatus := "ok"
			if state != "closed" {
				upstreamStatus = "degraded"
			}
			services["upstream"] = entities.ServiceStatus{
				Status:  upstreamStatus,
				Details: "circuit breaker " + state,
			}
		}

		overallStatus := "ok"
		statusCode := http.StatusOK
		for _, svc := range services {
			if svc.Status == "down" {
				overallStatus = "down"
				statusCode = http.StatusServiceUnavailable
				break
			}
			if svc.Status != "ok" {
				overallStatus = svc.Status
			}
		}

		resp := entities.HealthCheckResponse{
			Services: services,
			Status:   overallStatus,
			UpSince:  upSince,
			Uptime:   time.Since(upSince).Round(time.Second).String(),
		}
		writeJSON(w, statusCode, resp)
	}
}
