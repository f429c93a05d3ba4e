package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"groundtransfer/opsdesk/internal/config"
	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/db/repositories"
	"groundtransfer/opsdesk/internal/logging"
	"groundtransfer/opsdesk/internal/metrics"
	"groundtransfer/opsdesk/internal/models/dtos"
	"groundtransfer/opsdesk/internal/services"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidReference is returned when a single-reference sync is asked for a blank ref
var ErrInvalidReference = errors.New("booking reference is required")

var errBudgetExhausted = errors.New("run budget exhausted before this reference was processed")

// BookingSyncJob is the one sync engine behind every strategy:
// plan windows, search, merge, then fetch detail, reconcile and upsert each reference.
type BookingSyncJob struct {
	fetcher  *services.UpstreamFetcher
	upserter *services.BookingUpsertService
	ledger   *repositories.SyncStatusRepo
	cfg      *config.Config
	metrics  *metrics.MetricsRegistry
	now      func() time.Time
}

// NewBookingSyncJob creates a new booking sync job instance
func NewBookingSyncJob(
	fetcher *services.UpstreamFetcher,
	upserter *services.BookingUpsertService,
	ledger *repositories.SyncStatusRepo,
	cfg *config.Config,
	m *metrics.MetricsRegistry,
) *BookingSyncJob {
	return &BookingSyncJob{
		fetcher:  fetcher,
		upserter: upserter,
		ledger:   ledger,
		cfg:      cfg,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecencyStrategy returns the configured last-action strategy
func (j *BookingSyncJob) RecencyStrategy() services.Strategy {
	return services.RecencyStrategy{Lookback: j.cfg.Sync.RecencyLookback}
}

// HorizonStrategy returns the travel-date strategy; daysAhead <= 0 uses the configured horizon
func (j *BookingSyncJob) HorizonStrategy(daysAhead int) services.Strategy {
	if daysAhead <= 0 {
		daysAhead = j.cfg.Sync.HorizonDays
	}
	return services.HorizonStrategy{DaysAhead: daysAhead}
}

// ScheduledStrategy returns the combined recency + horizon strategy
func (j *BookingSyncJob) ScheduledStrategy() services.Strategy {
	return services.NewScheduledStrategy(j.cfg.Sync.RecencyLookback, j.cfg.Sync.HorizonDays)
}

// RangeStrategy validates a manual YYYY-MM-DD range
func (j *BookingSyncJob) RangeStrategy(dateFrom, dateTo string) (services.Strategy, error) {
	return services.NewExplicitRangeStrategy(dateFrom, dateTo, j.cfg.Sync.MaxRangeDays, j.cfg.Upstream.BatchTimeout)
}

// Run executes one invocation of the strategy. Invalid parameters are rejected before
// the ledger or the upstream is touched. A non-nil error means a store failure; the
// summary is still returned with whatever was processed.
func (j *BookingSyncJob) Run(ctx context.Context, strategy services.Strategy) (*dtos.SyncSummary, error) {
	plan, err := strategy.Plan(j.now())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	run, err := j.ledger.Start(ctx, plan.Strategy, &plan.From, &plan.To)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrStore, err)
	}

	summary := dtos.NewSyncSummary(run.ID, plan.Strategy)
	log := logging.WithRun(run.ID, plan.Strategy)
	log.Infow("Starting booking sync",
		"from", plan.From,
		"to", plan.To,
		"windows", len(plan.Windows),
	)

	budgetCtx, cancel := j.withBudget(ctx)
	defer cancel()

	merged := j.search(budgetCtx, plan, summary, log)
	summary.Found = merged.Len()
	log.Infow("Search stage finished", "found", summary.Found)

	runErr := j.processRefs(budgetCtx, merged, summary)

	return j.finish(ctx, summary, runErr, start, log)
}

// SyncReference refreshes one booking straight from the detail endpoint
func (j *BookingSyncJob) SyncReference(ctx context.Context, ref string) (*dtos.SyncSummary, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrInvalidReference
	}

	start := time.Now()
	run, err := j.ledger.Start(ctx, constants.SyncStrategySingleRef, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrStore, err)
	}

	summary := dtos.NewSyncSummary(run.ID, constants.SyncStrategySingleRef)
	summary.Found = 1
	log := logging.WithRun(run.ID, constants.SyncStrategySingleRef)
	log.Infow("Starting single booking sync", "booking_ref", ref)

	budgetCtx, cancel := j.withBudget(ctx)
	defer cancel()

	refs := services.MergeSummaries()
	refs.AddRef(ref)

	runErr := j.processRefs(budgetCtx, refs, summary)

	return j.finish(ctx, summary, runErr, start, log)
}

func (j *BookingSyncJob) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if j.cfg.Sync.RunBudget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, j.cfg.Sync.RunBudget)
}

// search queries every window in order. A failed window is reported and skipped.
func (j *BookingSyncJob) search(ctx context.Context, plan *services.Plan, summary *dtos.SyncSummary, log *zap.SugaredLogger) *services.MergedSet {
	merged := services.MergeSummaries()

	for _, window := range plan.Windows {
		if ctx.Err() != nil {
			summary.AddFailure("", constants.StageDeadline,
				fmt.Errorf("%s window %s skipped: %w", window.Index, window.From.Format(time.DateOnly), errBudgetExhausted))
			j.metrics.IncFailure(constants.StageDeadline)
			continue
		}

		found, err := j.fetcher.SearchWindow(ctx, window, plan.SearchTimeout)
		merged.Add(found...)
		if err != nil {
			log.Warnw("Search window failed", "index", window.Index, "from", window.From, "to", window.To, "error", err)
			summary.AddFailure("", constants.StageSearch, err)
			j.metrics.IncFailure(constants.StageSearch)
		}
	}

	return merged
}

// processRefs runs detail + reconcile + upsert over a bounded worker pool.
// Per-reference failures are recorded; only a store failure stops the pool.
func (j *BookingSyncJob) processRefs(budgetCtx context.Context, merged *services.MergedSet, summary *dtos.SyncSummary) error {
	limit := j.cfg.Sync.DetailConcurrency
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(budgetCtx)
	g.SetLimit(limit)

	var (
		mu      sync.Mutex
		started = make(map[string]bool, merged.Len())
	)

	for _, ref := range merged.Refs() {
		if gctx.Err() != nil {
			break
		}
		searchSummary, _ := merged.Summary(ref)

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			mu.Lock()
			started[ref] = true
			mu.Unlock()

			return j.syncOne(gctx, budgetCtx, ref, searchSummary, summary)
		})
	}

	err := g.Wait()
	if err != nil {
		return err
	}

	// Budget expiry is not fatal; whatever never started is reported and left for the next run
	if budgetCtx.Err() != nil {
		for _, ref := range merged.Refs() {
			if !started[ref] {
				summary.AddFailure(ref, constants.StageDeadline, errBudgetExhausted)
				j.metrics.IncFailure(constants.StageDeadline)
			}
		}
	}
	return nil
}

func (j *BookingSyncJob) syncOne(ctx, budgetCtx context.Context, ref string, searchSummary *dtos.BookingSummary, summary *dtos.SyncSummary) error {
	fail := func(stage string, err error) error {
		if budgetCtx.Err() != nil {
			stage = constants.StageDeadline
		}
		summary.AddFailure(ref, stage, err)
		j.metrics.IncFailure(stage)
		return nil
	}

	detail, err := j.fetcher.FetchDetail(ctx, ref)
	if err != nil {
		return fail(constants.StageDetail, err)
	}

	record, err := services.ReconcileBooking(searchSummary, detail, j.now())
	if err != nil {
		return fail(constants.StageDetail, err)
	}
	if record.BookingRef != ref {
		return fail(constants.StageDetail, fmt.Errorf("detail returned reference %q", record.BookingRef))
	}

	result, err := j.upserter.Upsert(ctx, record)
	if err != nil {
		if errors.Is(err, services.ErrStore) && budgetCtx.Err() == nil {
			return err
		}
		return fail(constants.StageUpsert, err)
	}

	if result == services.UpsertInserted {
		summary.AddNew()
	} else {
		summary.AddUpdated()
	}
	return nil
}

// finish writes the terminal ledger row. The ledger write ignores the caller's
// cancellation so an aborted run is still closed out.
func (j *BookingSyncJob) finish(ctx context.Context, summary *dtos.SyncSummary, runErr error, start time.Time, log *zap.SugaredLogger) (*dtos.SyncSummary, error) {
	ledgerCtx := context.WithoutCancel(ctx)
	elapsed := time.Since(start)

	if runErr != nil {
		log.Errorw("Booking sync failed", "error", runErr, "new", summary.New, "updated", summary.Updated, "failed", summary.Failed)
		if err := j.ledger.Fail(ledgerCtx, summary.RunID, summary, runErr); err != nil {
			log.Errorw("Failed to mark sync run failed", "error", err)
		}
		j.metrics.ObserveSyncRun(summary.Strategy, constants.SyncRunFailed.String(), elapsed)
		return summary, runErr
	}

	if err := j.ledger.Complete(ledgerCtx, summary.RunID, summary); err != nil {
		log.Errorw("Failed to complete sync run", "error", err)
		j.metrics.ObserveSyncRun(summary.Strategy, constants.SyncRunFailed.String(), elapsed)
		return summary, fmt.Errorf("%w: %w", services.ErrStore, err)
	}

	j.metrics.ObserveSyncRun(summary.Strategy, constants.SyncRunCompleted.String(), elapsed)
	log.Infow("Booking sync completed",
		"found", summary.Found,
		"new", summary.New,
		"updated", summary.Updated,
		"failed", summary.Failed,
		"duration", elapsed.Truncate(time.Millisecond).String(),
	)
	return summary, nil
}
