package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/db/repositories"
	"groundtransfer/opsdesk/internal/logging"
	"groundtransfer/opsdesk/internal/metrics"
	"groundtransfer/opsdesk/internal/models/dtos"
	models "groundtransfer/opsdesk/internal/models/gorm"
	"groundtransfer/opsdesk/internal/services"
)

// BackfillOptions bounds one backfill pass
type BackfillOptions struct {
	BatchSize int
	DaysAhead int
	Delay     time.Duration
}

// BookingBackfillWorker fills detail fields and provinces that an earlier sync left empty
type BookingBackfillWorker struct {
	candidates *repositories.BackfillRepo
	bookings   *repositories.BookingRepo
	fetcher    *services.UpstreamFetcher
	province   *services.ProvinceService
	ledger     *repositories.SyncStatusRepo
	metrics    *metrics.MetricsRegistry
	now        func() time.Time
}

func NewBookingBackfillWorker(
	candidates *repositories.BackfillRepo,
	bookings *repositories.BookingRepo,
	fetcher *services.UpstreamFetcher,
	province *services.ProvinceService,
	ledger *repositories.SyncStatusRepo,
	m *metrics.MetricsRegistry,
) *BookingBackfillWorker {
	return &BookingBackfillWorker{
		candidates: candidates,
		bookings:   bookings,
		fetcher:    fetcher,
		province:   province,
		ledger:     ledger,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run scans one batch of incomplete upcoming bookings. Per-reference failures are counted and
// the reference stays eligible for the next pass; a store error aborts the pass.
func (w *BookingBackfillWorker) Run(ctx context.Context, opts BackfillOptions) (*dtos.SyncSummary, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = 7
	}

	start := time.Now()
	from := w.now()
	to := from.AddDate(0, 0, opts.DaysAhead)

	run, err := w.ledger.Start(ctx, constants.SyncStrategyBackfill, &from, &to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrStore, err)
	}
	summary := dtos.NewSyncSummary(run.ID, constants.SyncStrategyBackfill)
	log := logging.WithRun(run.ID, constants.SyncStrategyBackfill)

	refs, err := w.candidates.FindCandidates(ctx, from, to, opts.BatchSize)
	if err != nil {
		return w.finish(ctx, summary, fmt.Errorf("%w: %w", services.ErrStore, err), start)
	}
	summary.Found = len(refs)
	log.Infow("Starting booking backfill", "candidates", len(refs), "days_ahead", opts.DaysAhead)

	for i, ref := range refs {
		if i > 0 {
			if err := pause(ctx, opts.Delay); err != nil {
				for _, rest := range refs[i:] {
					summary.AddFailure(rest, constants.StageDeadline, err)
				}
				break
			}
		}

		if err := w.backfillOne(ctx, ref, summary); err != nil {
			return w.finish(ctx, summary, err, start)
		}
	}

	return w.finish(ctx, summary, nil, start)
}

func (w *BookingBackfillWorker) backfillOne(ctx context.Context, ref string, summary *dtos.SyncSummary) error {
	existing, err := w.bookings.FindByRef(ctx, ref)
	if err != nil {
		return fmt.Errorf("%w: lookup %s: %w", services.ErrStore, ref, err)
	}
	if existing == nil {
		w.fail(summary, ref, constants.StageUpsert, errors.New("booking no longer exists"))
		return nil
	}

	detail, err := w.fetcher.FetchDetail(ctx, ref)
	if err != nil {
		w.fail(summary, ref, constants.StageDetail, err)
		return nil
	}

	fresh, err := services.ReconcileBooking(nil, detail, w.now())
	if err != nil {
		w.fail(summary, ref, constants.StageDetail, err)
		return nil
	}

	fields := missingDetailFields(existing, fresh)
	w.resolveProvince(ctx, existing, fresh, fields)

	if len(fields) == 0 {
		w.metrics.IncBackfill("unchanged")
		return nil
	}

	if err := w.bookings.UpdateFields(ctx, ref, fields); err != nil {
		return fmt.Errorf("%w: update %s: %w", services.ErrStore, ref, err)
	}

	summary.AddUpdated()
	w.metrics.IncBackfill("updated")
	logging.Debug("Backfilled booking", "booking_ref", ref, "fields", len(fields))
	return nil
}

// resolveProvince re-asks the classifier for bookings still unresolved. Manual provinces are never touched.
func (w *BookingBackfillWorker) resolveProvince(ctx context.Context, existing, fresh *models.Booking, fields map[string]interface{}) {
	if w.province == nil || existing.Province != nil || existing.ProvinceSource == constants.ProvinceSourceManual {
		return
	}

	candidate := *existing
	fillMissing(&candidate, fresh)

	if err := w.province.Apply(ctx, &candidate); err != nil {
		w.metrics.IncFailure(constants.StageProvince)
		logging.Warn("Province inference failed during backfill",
			"booking_ref", existing.BookingRef,
			"error", err,
		)
		return
	}
	if candidate.Province == nil {
		return
	}

	fields["province"] = *candidate.Province
	fields["province_source"] = candidate.ProvinceSource
	fields["province_confidence"] = candidate.ProvinceConfidence
}

func (w *BookingBackfillWorker) fail(summary *dtos.SyncSummary, ref, stage string, err error) {
	summary.AddFailure(ref, stage, err)
	w.metrics.IncFailure(stage)
	w.metrics.IncBackfill("failed")
	logging.Warn("Backfill skipped booking", "booking_ref", ref, "stage", stage, "error", err)
}

func (w *BookingBackfillWorker) finish(ctx context.Context, summary *dtos.SyncSummary, runErr error, start time.Time) (*dtos.SyncSummary, error) {
	ledgerCtx := context.WithoutCancel(ctx)
	elapsed := time.Since(start)

	if runErr != nil {
		logging.Error("Booking backfill failed", "run_id", summary.RunID, "error", runErr)
		if err := w.ledger.Fail(ledgerCtx, summary.RunID, summary, runErr); err != nil {
			logging.Error("Failed to mark backfill run failed", "run_id", summary.RunID, "error", err)
		}
		w.metrics.ObserveSyncRun(constants.SyncStrategyBackfill, constants.SyncRunFailed.String(), elapsed)
		return summary, runErr
	}

	if err := w.ledger.Complete(ledgerCtx, summary.RunID, summary); err != nil {
		w.metrics.ObserveSyncRun(constants.SyncStrategyBackfill, constants.SyncRunFailed.String(), elapsed)
		return summary, fmt.Errorf("%w: %w", services.ErrStore, err)
	}

	w.metrics.ObserveSyncRun(constants.SyncStrategyBackfill, constants.SyncRunCompleted.String(), elapsed)
	logging.Info("Booking backfill completed",
		"run_id", summary.RunID,
		"found", summary.Found,
		"updated", summary.Updated,
		"failed", summary.Failed,
	)
	return summary, nil
}

// missingDetailFields lists the columns that are empty locally and known upstream
func missingDetailFields(existing, fresh *models.Booking) map[string]interface{} {
	fields := map[string]interface{}{}

	setString := func(column, have, want string) {
		if have == "" && want != "" {
			fields[column] = want
		}
	}
	setTime := func(column string, have, want *time.Time) {
		if have == nil && want != nil {
			fields[column] = *want
		}
	}

	setString("accommodation_name", existing.AccommodationName, fresh.AccommodationName)
	setString("accommodation_address", existing.AccommodationAddress, fresh.AccommodationAddress)
	setString("accommodation_address2", existing.AccommodationAddr2, fresh.AccommodationAddr2)
	setString("arrival_flight_no", existing.ArrivalFlightNo, fresh.ArrivalFlightNo)
	setString("departure_flight_no", existing.DepartureFlightNo, fresh.DepartureFlightNo)
	setString("pickup_address", existing.PickupAddress, fresh.PickupAddress)
	setString("dropoff_address", existing.DropoffAddress, fresh.DropoffAddress)
	setString("passenger_email", existing.PassengerEmail, fresh.PassengerEmail)
	setString("passenger_phone", existing.PassengerPhone, fresh.PassengerPhone)
	setTime("arrival_date", existing.ArrivalDate, fresh.ArrivalDate)
	setTime("departure_date", existing.DepartureDate, fresh.DepartureDate)
	setTime("pickup_date", existing.PickupDate, fresh.PickupDate)

	return fields
}

// fillMissing copies the fields missingDetailFields would write onto b
func fillMissing(b, fresh *models.Booking) {
	if b.AccommodationName == "" {
		b.AccommodationName = fresh.AccommodationName
	}
	if b.AccommodationAddress == "" {
		b.AccommodationAddress = fresh.AccommodationAddress
	}
	if b.AccommodationAddr2 == "" {
		b.AccommodationAddr2 = fresh.AccommodationAddr2
	}
	if b.PickupAddress == "" {
		b.PickupAddress = fresh.PickupAddress
	}
	if b.DropoffAddress == "" {
		b.DropoffAddress = fresh.DropoffAddress
	}
	if b.Airport == "" {
		b.Airport = fresh.Airport
	}
	if b.Resort == "" {
		b.Resort = fresh.Resort
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
