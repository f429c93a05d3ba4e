package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"groundtransfer/opsdesk/internal/auth"
	"groundtransfer/opsdesk/internal/jobs"
	"groundtransfer/opsdesk/internal/logging"
	"groundtransfer/opsdesk/internal/models/dtos"
	"groundtransfer/opsdesk/internal/models/dtos/requests"
	gormModels "groundtransfer/opsdesk/internal/models/gorm"
	"groundtransfer/opsdesk/internal/services"
	"groundtransfer/opsdesk/internal/workers"

	"github.com/go-chi/chi/v5"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// SyncRunner is the sync engine as the HTTP surface uses it
type SyncRunner interface {
	Run(ctx context.Context, strategy services.Strategy) (*dtos.SyncSummary, error)
	SyncReference(ctx context.Context, ref string) (*dtos.SyncSummary, error)
	RecencyStrategy() services.Strategy
	HorizonStrategy(daysAhead int) services.Strategy
	ScheduledStrategy() services.Strategy
	RangeStrategy(dateFrom, dateTo string) (services.Strategy, error)
}

type BackfillRunner interface {
	Run(ctx context.Context, opts workers.BackfillOptions) (*dtos.SyncSummary, error)
}

type RunLister interface {
	ListRecent(ctx context.Context, strategy string, limit int) ([]gormModels.SyncRun, error)
}

// SyncHandler handles manual sync triggering endpoints
type SyncHandler struct {
	sync     SyncRunner
	backfill BackfillRunner
	runs     RunLister
	defaults workers.BackfillOptions
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(sync SyncRunner, backfill BackfillRunner, runs RunLister, defaults workers.BackfillOptions) *SyncHandler {
	return &SyncHandler{
		sync:     sync,
		backfill: backfill,
		runs:     runs,
		defaults: defaults,
	}
}

// TriggerRecency handles POST /api/v1/sync/recency
func (h *SyncHandler) TriggerRecency() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.runStrategy(w, r, h.sync.RecencyStrategy())
	}
}

// TriggerHorizon handles POST /api/v1/sync/horizon
func (h *SyncHandler) TriggerHorizon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req requests.HorizonSyncRequest
		if !decodeOptionalBody(w, r, &req) {
			return
		}
		if req.DaysAhead < 0 {
			respondWithError(w, http.StatusBadRequest, "days_ahead must not be negative")
			return
		}
		h.runStrategy(w, r, h.sync.HorizonStrategy(req.DaysAhead))
	}
}

// TriggerScheduled handles POST /api/v1/sync/scheduled
func (h *SyncHandler) TriggerScheduled() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.runStrategy(w, r, h.sync.ScheduledStrategy())
	}
}

// TriggerRange handles POST /api/v1/sync/range
func (h *SyncHandler) TriggerRange() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req requests.RangeSyncRequest
		if !decodeOptionalBody(w, r, &req) {
			return
		}

		strategy, err := h.sync.RangeStrategy(req.DateFrom, req.DateTo)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.runStrategy(w, r, strategy)
	}
}

// TriggerBooking handles POST /api/v1/sync/bookings/{ref}
func (h *SyncHandler) TriggerBooking() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "ref")
		logging.Info("Single booking sync triggered", "booking_ref", ref, "caller", auth.Caller(r.Context()))

		summary, err := h.sync.SyncReference(detached(r), ref)
		h.respondWithSummary(w, summary, err)
	}
}

// TriggerBackfill handles POST /api/v1/sync/backfill
func (h *SyncHandler) TriggerBackfill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req requests.BackfillRequest
		if !decodeOptionalBody(w, r, &req) {
			return
		}
		if req.BatchSize < 0 || req.DaysAhead < 0 {
			respondWithError(w, http.StatusBadRequest, "batch_size and days_ahead must not be negative")
			return
		}

		opts := h.defaults
		if req.BatchSize > 0 {
			opts.BatchSize = req.BatchSize
		}
		if req.DaysAhead > 0 {
			opts.DaysAhead = req.DaysAhead
		}

		logging.Info("Backfill triggered", "batch_size", opts.BatchSize, "days_ahead", opts.DaysAhead, "caller", auth.Caller(r.Context()))
		summary, err := h.backfill.Run(detached(r), opts)
		h.respondWithSummary(w, summary, err)
	}
}

// ListRuns handles GET /api/v1/sync/runs?limit=&strategy=
func (h *SyncHandler) ListRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxRunsLimit)
		}

		runs, err := h.runs.ListRecent(r.Context(), r.URL.Query().Get("strategy"), limit)
		if err != nil {
			logging.Error("Failed to list sync runs", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to list sync runs")
			return
		}
		respondWithSuccess(w, http.StatusOK, &runs)
	}
}

func (h *SyncHandler) runStrategy(w http.ResponseWriter, r *http.Request, strategy services.Strategy) {
	logging.Info("Sync triggered", "strategy", strategy.Name(), "caller", auth.Caller(r.Context()))

	summary, err := h.sync.Run(detached(r), strategy)
	h.respondWithSummary(w, summary, err)
}

func (h *SyncHandler) respondWithSummary(w http.ResponseWriter, summary *dtos.SyncSummary, err error) {
	switch {
	case err == nil:
		respondWithSuccess(w, http.StatusOK, summary)
	case errors.Is(err, services.ErrInvalidRange),
		errors.Is(err, services.ErrRangeTooWide),
		errors.Is(err, jobs.ErrInvalidReference):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case summary != nil:
		respondWithErrorData(w, http.StatusInternalServerError, err.Error(), summary)
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

// detached keeps a run going when the caller hangs up, so the ledger row is always closed out
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// decodeOptionalBody accepts an empty body; it writes a 400 and returns false on malformed JSON
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
