package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"groundtransfer/opsdesk/internal/common"
	"groundtransfer/opsdesk/internal/config"
	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/db/repositories"
	"groundtransfer/opsdesk/internal/metrics"
	"groundtransfer/opsdesk/internal/models/dtos"
	gormModels "groundtransfer/opsdesk/internal/models/gorm"
	"groundtransfer/opsdesk/internal/providers"
	"groundtransfer/opsdesk/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Fake BookingSource keyed by search index
type fakeBookingSource struct {
	results    map[string][]string
	detailFunc func(ctx context.Context, ref string) (*dtos.BookingDetail, error)

	mu          sync.Mutex
	searchCalls int
	detailCalls map[string]int
}

func (f *fakeBookingSource) SearchBookings(ctx context.Context, window dtos.SearchWindow, page int) ([]dtos.BookingSummary, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()

	if page > 1 {
		return nil, nil
	}
	var out []dtos.BookingSummary
	for _, ref := range f.results[window.Index] {
		out = append(out, dtos.BookingSummary{Ref: common.FlexString(ref), Status: "ACT"})
	}
	return out, nil
}

func (f *fakeBookingSource) FetchBookingDetail(ctx context.Context, ref string) (*dtos.BookingDetail, error) {
	f.mu.Lock()
	if f.detailCalls == nil {
		f.detailCalls = make(map[string]int)
	}
	f.detailCalls[ref]++
	f.mu.Unlock()

	if f.detailFunc != nil {
		return f.detailFunc(ctx, ref)
	}
	return detailFor(ref), nil
}

func (f *fakeBookingSource) DetailCalls(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls[ref]
}

func (f *fakeBookingSource) SearchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchCalls
}

// fixedStrategy plans the windows it was given
type fixedStrategy struct {
	windows []dtos.SearchWindow
	err     error
}

func (s fixedStrategy) Name() string { return "fixed" }

func (s fixedStrategy) Plan(now time.Time) (*services.Plan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.Plan{
		Strategy: s.Name(),
		From:     now.Add(-time.Hour),
		To:       now,
		Windows:  s.windows,
	}, nil
}

func twoWindows() fixedStrategy {
	now := time.Now().UTC()
	return fixedStrategy{windows: []dtos.SearchWindow{
		{From: now.Add(-time.Hour), To: now, Index: constants.SearchIndexArrivals},
		{From: now.Add(-time.Hour), To: now, Index: constants.SearchIndexDepartures},
	}}
}

func detailFor(ref string) *dtos.BookingDetail {
	return &dtos.BookingDetail{
		General: dtos.DetailGeneral{
			Ref:         common.FlexString(ref),
			Status:      "ACT",
			BookingType: "Airport",
			Airport:     "AGP",
			Adults:      "2",
		},
		Arrival: dtos.DetailLeg{Date: "2026-10-20 10:00:00", AccommodationName: "Hotel Sol"},
	}
}

// Setup test database
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&gormModels.Booking{}, &gormModels.SyncRun{}, &gormModels.DriverVehicleAssignment{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			PageSize:         100,
			MaxPages:         5,
			SearchTimeout:    time.Second,
			DetailTimeout:    time.Second,
			BatchTimeout:     2 * time.Second,
			MaxAttempts:      3,
			RetryBackoff:     time.Millisecond,
			BreakerThreshold: 100,
			BreakerCooldown:  time.Second,
		},
		Sync: config.SyncConfig{
			RecencyLookback:   time.Hour,
			HorizonDays:       2,
			MaxRangeDays:      30,
			DetailConcurrency: 2,
			RunBudget:         5 * time.Second,
		},
	}
}

// newTestJob wires the real fetcher, upserter and ledger; storeDB may differ from ledgerDB
func newTestJob(t *testing.T, source *fakeBookingSource, cfg *config.Config, ledgerDB, storeDB *gorm.DB) *BookingSyncJob {
	t.Helper()
	m := metrics.NewMetricsRegistry(prometheus.NewRegistry())
	fetcher := services.NewUpstreamFetcher(source, cfg.Upstream)
	upserter := services.NewBookingUpsertService(storeDB, nil, m)
	return NewBookingSyncJob(fetcher, upserter, repositories.NewSyncStatusRepo(ledgerDB), cfg, m)
}

func ledgerRows(t *testing.T, db *gorm.DB) []gormModels.SyncRun {
	t.Helper()
	var runs []gormModels.SyncRun
	if err := db.Order("started_at").Find(&runs).Error; err != nil {
		t.Fatalf("Failed to read ledger: %v", err)
	}
	return runs
}

func TestBookingSyncJob_Run_DedupesAcrossWindows(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeBookingSource{results: map[string][]string{
		constants.SearchIndexArrivals:   {"A", "B"},
		constants.SearchIndexDepartures: {"B", "C"},
	}}
	job := newTestJob(t, source, testConfig(), db, db)

	summary, err := job.Run(context.Background(), twoWindows())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if summary.Found != 3 || summary.New != 3 || summary.Updated != 0 || summary.Failed != 0 {
		t.Errorf("Unexpected summary %+v", summary)
	}
	for _, ref := range []string{"A", "B", "C"} {
		if calls := source.DetailCalls(ref); calls != 1 {
			t.Errorf("Expected one detail call for %s, got %d", ref, calls)
		}
	}

	var count int64
	db.Model(&gormModels.Booking{}).Count(&count)
	if count != 3 {
		t.Errorf("Expected 3 bookings, got %d", count)
	}

	runs := ledgerRows(t, db)
	if len(runs) != 1 {
		t.Fatalf("Expected 1 ledger row, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != summary.RunID || run.Status != constants.SyncRunCompleted {
		t.Errorf("Expected completed run %s, got %s/%s", summary.RunID, run.ID, run.Status)
	}
	if run.TotalFound != 3 || run.TotalNew != 3 || run.CompletedAt == nil {
		t.Errorf("Unexpected ledger counts %+v", run)
	}
}

func TestBookingSyncJob_Run_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeBookingSource{results: map[string][]string{
		constants.SearchIndexArrivals: {"A", "B"},
	}}
	job := newTestJob(t, source, testConfig(), db, db)
	ctx := context.Background()

	if _, err := job.Run(ctx, twoWindows()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	summary, err := job.Run(ctx, twoWindows())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if summary.New != 0 || summary.Updated != 2 {
		t.Errorf("Expected 0 new / 2 updated on re-run, got %d/%d", summary.New, summary.Updated)
	}

	var count int64
	db.Model(&gormModels.Booking{}).Count(&count)
	if count != 2 {
		t.Errorf("Expected 2 bookings, got %d", count)
	}
	if runs := ledgerRows(t, db); len(runs) != 2 {
		t.Errorf("Expected one ledger row per invocation, got %d", len(runs))
	}
}

func TestBookingSyncJob_Run_RetryExhaustionSkipsReference(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeBookingSource{
		results: map[string][]string{constants.SearchIndexArrivals: {"A", "B", "C"}},
		detailFunc: func(ctx context.Context, ref string) (*dtos.BookingDetail, error) {
			if ref == "B" {
				return nil, errors.New("connection reset")
			}
			return detailFor(ref), nil
		},
	}
	job := newTestJob(t, source, testConfig(), db, db)

	summary, err := job.Run(context.Background(), twoWindows())
	if err != nil {
		t.Fatalf("Expected the run to complete, got %v", err)
	}

	if summary.New != 2 || summary.Failed != 1 {
		t.Errorf("Expected 2 new / 1 failed, got %d/%d", summary.New, summary.Failed)
	}
	if refs := summary.FailedRefs(); len(refs) != 1 || refs[0] != "B" {
		t.Errorf("Expected B to be reported, got %v", refs)
	}
	if summary.Errors[0].Stage != constants.StageDetail {
		t.Errorf("Expected detail stage, got %s", summary.Errors[0].Stage)
	}
	if calls := source.DetailCalls("B"); calls != 3 {
		t.Errorf("Expected 3 attempts for B, got %d", calls)
	}

	runs := ledgerRows(t, db)
	if runs[0].Status != constants.SyncRunCompleted || runs[0].TotalFailed != 1 {
		t.Errorf("Expected completed run with 1 failure, got %+v", runs[0])
	}
}

func TestBookingSyncJob_Run_NotFoundIsNotRetried(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeBookingSource{
		results: map[string][]string{constants.SearchIndexArrivals: {"GONE"}},
		detailFunc: func(ctx context.Context, ref string) (*dtos.BookingDetail, error) {
			return nil, &providers.ProviderError{
				Code:       constants.ErrCodeBookingNotFound,
				Message:    "Booking not found",
				StatusCode: 404,
			}
		},
	}
	job := newTestJob(t, source, testConfig(), db, db)

	summary, err := job.Run(context.Background(), twoWindows())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("Expected 1 failure, got %d", summary.Failed)
	}
	if calls := source.DetailCalls("GONE"); calls != 1 {
		t.Errorf("Expected a missing booking not to be retried, got %d calls", calls)
	}
}

func TestBookingSyncJob_RangeStrategy_RejectsWideRange(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeBookingSource{}
	job := newTestJob(t, source, testConfig(), db, db)

	_, err := job.RangeStrategy("2026-01-01", "2026-03-01")
	if !errors.Is(err, services.ErrRangeTooWide) {
		t.Errorf("Expected ErrRangeTooWide, got %v", err)
	}

	_, err = job.RangeStrategy("2026-03-01", "2026-01-01")
	if !errors.Is(err, services.ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}

	if source.SearchCalls() != 0 {
		t.Errorf("Expected no upstream calls, got %d", source.SearchCalls())
	}
	if runs := ledgerRows(t, db); len(runs) != 0 {
		t.Errorf("Expected no ledger rows, got %d", len(runs))
	}
}

func TestBookingSyncJob_Run_PlanErrorTouchesNothing(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeBookingSource{}
	job := newTestJob(t, source, testConfig(), db, db)

	_, err := job.Run(context.Background(), fixedStrategy{err: services.ErrRangeTooWide})
	if !errors.Is(err, services.ErrRangeTooWide) {
		t.Errorf("Expected plan error, got %v", err)
	}
	if source.SearchCalls() != 0 {
		t.Errorf("Expected no upstream calls, got %d", source.SearchCalls())
	}
	if runs := ledgerRows(t, db); len(runs) != 0 {
		t.Errorf("Expected no ledger rows, got %d", len(runs))
	}
}

func TestBookingSyncJob_Run_BudgetExpiry(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeBookingSource{
		results: map[string][]string{constants.SearchIndexArrivals: {"A", "B", "C"}},
		detailFunc: func(ctx context.Context, ref string) (*dtos.BookingDetail, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	cfg := testConfig()
	cfg.Sync.DetailConcurrency = 1
	cfg.Sync.RunBudget = 50 * time.Millisecond
	job := newTestJob(t, source, cfg, db, db)

	summary, err := job.Run(context.Background(), twoWindows())
	if err != nil {
		t.Fatalf("Expected budget expiry to complete the run, got %v", err)
	}

	if summary.Failed != 3 {
		t.Errorf("Expected all 3 references reported, got %d", summary.Failed)
	}
	for _, e := range summary.Errors {
		if e.Stage != constants.StageDeadline {
			t.Errorf("Expected deadline stage for %s, got %s", e.BookingRef, e.Stage)
		}
	}
	if source.DetailCalls("B") != 0 || source.DetailCalls("C") != 0 {
		t.Error("Expected B and C never to be started")
	}

	runs := ledgerRows(t, db)
	if runs[0].Status != constants.SyncRunCompleted {
		t.Errorf("Expected completed run, got %s", runs[0].Status)
	}
}

func TestBookingSyncJob_Run_StoreFailureFailsRun(t *testing.T) {
	ledgerDB := setupTestDB(t)
	storeDB := setupTestDB(t)
	source := &fakeBookingSource{results: map[string][]string{
		constants.SearchIndexArrivals: {"A", "B"},
	}}
	job := newTestJob(t, source, testConfig(), ledgerDB, storeDB)

	sqlDB, _ := storeDB.DB()
	sqlDB.Close()

	summary, err := job.Run(context.Background(), twoWindows())
	if !errors.Is(err, services.ErrStore) {
		t.Fatalf("Expected ErrStore, got %v", err)
	}
	if summary == nil || summary.New != 0 {
		t.Errorf("Expected partial summary with nothing written, got %+v", summary)
	}

	runs := ledgerRows(t, ledgerDB)
	if len(runs) != 1 || runs[0].Status != constants.SyncRunFailed {
		t.Fatalf("Expected one failed ledger row, got %+v", runs)
	}
	if !strings.Contains(runs[0].ErrorMessage, "store failure") {
		t.Errorf("Expected store failure message, got %q", runs[0].ErrorMessage)
	}
}

func TestBookingSyncJob_SyncReference(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeBookingSource{}
	job := newTestJob(t, source, testConfig(), db, db)

	summary, err := job.SyncReference(context.Background(), "  X1  ")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.Strategy != constants.SyncStrategySingleRef || summary.Found != 1 || summary.New != 1 {
		t.Errorf("Unexpected summary %+v", summary)
	}
	if source.SearchCalls() != 0 {
		t.Errorf("Expected no search calls, got %d", source.SearchCalls())
	}

	var stored gormModels.Booking
	if err := db.Where("booking_ref = ?", "X1").First(&stored).Error; err != nil {
		t.Fatalf("Booking not found in database: %v", err)
	}

	runs := ledgerRows(t, db)
	if runs[0].Strategy != constants.SyncStrategySingleRef || runs[0].DateFrom != nil {
		t.Errorf("Expected single_ref ledger row without bounds, got %+v", runs[0])
	}
}

func TestBookingSyncJob_SyncReference_Blank(t *testing.T) {
	db := setupTestDB(t)
	job := newTestJob(t, &fakeBookingSource{}, testConfig(), db, db)

	if _, err := job.SyncReference(context.Background(), "   "); !errors.Is(err, ErrInvalidReference) {
		t.Errorf("Expected ErrInvalidReference, got %v", err)
	}
	if runs := ledgerRows(t, db); len(runs) != 0 {
		t.Errorf("Expected no ledger rows, got %d", len(runs))
	}
}
