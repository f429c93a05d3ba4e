package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"groundtransfer/opsdesk/internal/common"
	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/metrics"
	"groundtransfer/opsdesk/internal/models/dtos"
	gormModels "groundtransfer/opsdesk/internal/models/gorm"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

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

	// Auto migrate
	if err := db.AutoMigrate(&gormModels.Booking{}, &gormModels.SyncRun{}, &gormModels.DriverVehicleAssignment{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	return db
}

func newTestUpsertService(t *testing.T, db *gorm.DB, classifier *mockClassifier) *BookingUpsertService {
	m := metrics.NewMetricsRegistry(prometheus.NewRegistry())
	province := NewProvinceService(classifier, common.NewCacheService(time.Hour, time.Hour), time.Hour, m)
	svc := NewBookingUpsertService(db, province, m)
	svc.now = func() time.Time { return reconcileNow }
	return svc
}

func reconciled(t *testing.T, ref, status string) *gormModels.Booking {
	t.Helper()
	b, err := ReconcileBooking(&dtos.BookingSummary{Ref: common.FlexString(ref), Status: common.FlexString(status)}, &dtos.BookingDetail{
		General: dtos.DetailGeneral{Ref: common.FlexString(ref), Status: common.FlexString(status), Airport: "AGP", Adults: "2"},
		Arrival: dtos.DetailLeg{Date: "2026-10-20 10:00:00", AccommodationName: "Hotel Sol"},
	}, reconcileNow)
	if err != nil {
		t.Fatalf("Failed to reconcile: %v", err)
	}
	return b
}

func TestBookingUpsertService_InsertInfersProvince(t *testing.T) {
	db := setupTestDB(t)
	classifier := resolvedClassifier("Malaga")
	svc := newTestUpsertService(t, db, classifier)

	result, err := svc.Upsert(context.Background(), reconciled(t, "REF-1", "ACT"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != UpsertInserted {
		t.Errorf("Expected new, got %s", result)
	}

	var stored gormModels.Booking
	if err := db.Where("booking_ref = ?", "REF-1").First(&stored).Error; err != nil {
		t.Fatalf("Booking not found in database: %v", err)
	}
	if stored.Province == nil || *stored.Province != "Malaga" {
		t.Errorf("Expected province Malaga, got %v", stored.Province)
	}
	if classifier.calls != 1 {
		t.Errorf("Expected 1 classifier call, got %d", classifier.calls)
	}
}

func TestBookingUpsertService_IdempotentRerun(t *testing.T) {
	db := setupTestDB(t)
	classifier := resolvedClassifier("Malaga")
	svc := newTestUpsertService(t, db, classifier)
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, reconciled(t, "REF-1", "ACT")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	var first gormModels.Booking
	db.Where("booking_ref = ?", "REF-1").First(&first)

	result, err := svc.Upsert(ctx, reconciled(t, "REF-1", "ACT"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != UpsertUpdated {
		t.Errorf("Expected updated on re-run, got %s", result)
	}

	var count int64
	db.Model(&gormModels.Booking{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 row, got %d", count)
	}

	var second gormModels.Booking
	db.Where("booking_ref = ?", "REF-1").First(&second)
	if second.ID != first.ID || second.AccommodationName != first.AccommodationName ||
		second.PaxTotal != first.PaxTotal || second.RawData != first.RawData ||
		*second.Province != *first.Province || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("Expected identical row after re-run, got %+v vs %+v", second, first)
	}
	if classifier.calls != 1 {
		t.Errorf("Expected province inference only on insert, got %d calls", classifier.calls)
	}
}

func TestBookingUpsertService_ConcurrentInsertReportsUpdated(t *testing.T) {
	db := setupTestDB(t)
	other := "Cadiz"
	// Another run creates the booking while this one is classifying it
	classifier := &mockClassifier{
		classifyFunc: func(ctx context.Context, signals dtos.ProvinceSignals) (*dtos.ProvinceResult, error) {
			if err := db.Create(&gormModels.Booking{BookingRef: "REF-1", Status: "ACT", Province: &other, ProvinceSource: "heuristic"}).Error; err != nil {
				return nil, err
			}
			p := "Malaga"
			return &dtos.ProvinceResult{Province: &p, Source: "heuristic", Confidence: 0.9}, nil
		},
	}
	svc := newTestUpsertService(t, db, classifier)

	result, err := svc.Upsert(context.Background(), reconciled(t, "REF-1", "AMM"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != UpsertUpdated {
		t.Errorf("Expected updated when the row already existed, got %s", result)
	}

	var count int64
	db.Model(&gormModels.Booking{}).Count(&count)
	if count != 1 {
		t.Fatalf("Expected 1 row, got %d", count)
	}

	var stored gormModels.Booking
	db.Where("booking_ref = ?", "REF-1").First(&stored)
	if stored.Status != "AMM" {
		t.Errorf("Expected status AMM, got %s", stored.Status)
	}
	if stored.Province == nil || *stored.Province != "Cadiz" {
		t.Errorf("Expected the existing province to be kept, got %v", stored.Province)
	}
}

func TestBookingUpsertService_UpdateDoesNotReinferProvince(t *testing.T) {
	db := setupTestDB(t)
	manual := "Granada"
	db.Create(&gormModels.Booking{BookingRef: "REF-1", Status: "ACT", Province: &manual, ProvinceSource: constants.ProvinceSourceManual})

	classifier := resolvedClassifier("Malaga")
	svc := newTestUpsertService(t, db, classifier)

	if _, err := svc.Upsert(context.Background(), reconciled(t, "REF-1", "AMM")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var stored gormModels.Booking
	db.Where("booking_ref = ?", "REF-1").First(&stored)
	if *stored.Province != "Granada" || stored.ProvinceSource != constants.ProvinceSourceManual {
		t.Errorf("Expected manual province kept, got %s/%s", *stored.Province, stored.ProvinceSource)
	}
	if stored.Status != "AMM" {
		t.Errorf("Expected status AMM, got %s", stored.Status)
	}
	if classifier.calls != 0 {
		t.Errorf("Expected no classifier call on update, got %d", classifier.calls)
	}
}

func TestBookingUpsertService_CancellationCascade(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestUpsertService(t, db, resolvedClassifier("Malaga"))
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, reconciled(t, "REF-1", "ACT")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	db.Create(&gormModels.DriverVehicleAssignment{BookingRef: "REF-1", Status: "assigned"})

	if _, err := svc.Upsert(ctx, reconciled(t, "REF-1", "CAN")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var assignment gormModels.DriverVehicleAssignment
	db.Where("booking_ref = ?", "REF-1").First(&assignment)
	if assignment.Status != constants.AssignmentStatusCancelled {
		t.Errorf("Expected cancelled assignment, got %s", assignment.Status)
	}
	if assignment.BookingStatus != "CAN" {
		t.Errorf("Expected booking status CAN, got %s", assignment.BookingStatus)
	}
	if assignment.CancelledAt == nil || !assignment.CancelledAt.Equal(reconcileNow) {
		t.Errorf("Expected cancelled_at %v, got %v", reconcileNow, assignment.CancelledAt)
	}

	// A second cancelled sync keeps the first cancellation time
	svc.now = func() time.Time { return reconcileNow.Add(time.Hour) }
	if _, err := svc.Upsert(ctx, reconciled(t, "REF-1", "CAN")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	db.Where("booking_ref = ?", "REF-1").First(&assignment)
	if !assignment.CancelledAt.Equal(reconcileNow) {
		t.Errorf("Expected cancelled_at unchanged, got %v", assignment.CancelledAt)
	}
}

func TestBookingUpsertService_ActiveStatusMirrorsOnly(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestUpsertService(t, db, resolvedClassifier("Malaga"))

	db.Create(&gormModels.DriverVehicleAssignment{BookingRef: "REF-1", Status: "assigned"})

	if _, err := svc.Upsert(context.Background(), reconciled(t, "REF-1", "AMM")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var assignment gormModels.DriverVehicleAssignment
	db.Where("booking_ref = ?", "REF-1").First(&assignment)
	if assignment.Status != "assigned" || assignment.CancelledAt != nil {
		t.Errorf("Expected assignment to stay assigned, got %s / %v", assignment.Status, assignment.CancelledAt)
	}
	if assignment.BookingStatus != "AMM" {
		t.Errorf("Expected booking status AMM, got %s", assignment.BookingStatus)
	}
}

func TestBookingUpsertService_ClassifierFailureStillInserts(t *testing.T) {
	db := setupTestDB(t)
	classifier := &mockClassifier{
		classifyFunc: func(ctx context.Context, signals dtos.ProvinceSignals) (*dtos.ProvinceResult, error) {
			return nil, errors.New("classifier down")
		},
	}
	svc := newTestUpsertService(t, db, classifier)

	result, err := svc.Upsert(context.Background(), reconciled(t, "REF-1", "ACT"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != UpsertInserted {
		t.Errorf("Expected new, got %s", result)
	}

	var stored gormModels.Booking
	db.Where("booking_ref = ?", "REF-1").First(&stored)
	if stored.Province != nil {
		t.Errorf("Expected unresolved province, got %v", *stored.Province)
	}
}

func TestBookingUpsertService_StoreFailure(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestUpsertService(t, db, resolvedClassifier("Malaga"))

	sqlDB, _ := db.DB()
	sqlDB.Close()

	_, err := svc.Upsert(context.Background(), reconciled(t, "REF-1", "ACT"))
	if !errors.Is(err, ErrStore) {
		t.Errorf("Expected ErrStore, got %v", err)
	}
}

func TestBookingUpsertService_StoreErrorKeepsCause(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestUpsertService(t, db, resolvedClassifier("Malaga"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Upsert(ctx, reconciled(t, "REF-1", "ACT"))
	if !errors.Is(err, ErrStore) {
		t.Fatalf("Expected ErrStore, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected the database cause to stay in the chain, got %v", err)
	}
}
