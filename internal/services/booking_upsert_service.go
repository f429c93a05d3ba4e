package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/db/repositories"
	"groundtransfer/opsdesk/internal/logging"
	"groundtransfer/opsdesk/internal/metrics"
	gormModels "groundtransfer/opsdesk/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// ErrStore marks local database failures; they abort the whole invocation
var ErrStore = errors.New("store failure")

// UpsertResult says whether a booking was created or refreshed
type UpsertResult string

const (
	UpsertInserted UpsertResult = "new"
	UpsertUpdated  UpsertResult = "updated"
)

// BookingUpsertService writes reconciled bookings and cascades status changes to assignments
type BookingUpsertService struct {
	db          *gormlib.DB
	bookings    *repositories.BookingRepo
	assignments *repositories.AssignmentRepo
	province    *ProvinceService
	metrics     *metrics.MetricsRegistry
	now         func() time.Time
}

func NewBookingUpsertService(db *gormlib.DB, province *ProvinceService, m *metrics.MetricsRegistry) *BookingUpsertService {
	return &BookingUpsertService{
		db:          db,
		bookings:    repositories.NewBookingRepo(db),
		assignments: repositories.NewAssignmentRepo(db),
		province:    province,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Upsert inserts or updates one booking. Province inference runs only for new bookings.
// The booking write and the assignment cascade share one transaction.
func (s *BookingUpsertService) Upsert(ctx context.Context, record *gormModels.Booking) (UpsertResult, error) {
	if record == nil || record.BookingRef == "" {
		return "", fmt.Errorf("upsert: booking reference is required")
	}

	now := s.now()
	if record.SyncedAt == nil {
		record.SyncedAt = &now
	}

	existing, err := s.bookings.FindByRef(ctx, record.BookingRef)
	if err != nil {
		return "", fmt.Errorf("%w: lookup %s: %w", ErrStore, record.BookingRef, err)
	}

	result := UpsertUpdated
	if existing == nil {
		result = UpsertInserted
		s.inferProvince(ctx, record)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gormlib.DB) error {
		bookings := s.bookings.WithTx(tx)
		if result == UpsertInserted {
			inserted, err := bookings.Insert(ctx, record)
			if err != nil {
				return fmt.Errorf("insert: %w", err)
			}
			if inserted {
				return s.cascade(ctx, s.assignments.WithTx(tx), record, now)
			}
			// A concurrent run created the row after our lookup
			result = UpsertUpdated
		}

		if err := bookings.UpdateMutable(ctx, record); err != nil {
			return fmt.Errorf("update: %w", err)
		}

		return s.cascade(ctx, s.assignments.WithTx(tx), record, now)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrStore, record.BookingRef, err)
	}

	s.metrics.IncUpserted(string(result))
	return result, nil
}

func (s *BookingUpsertService) cascade(ctx context.Context, assignments *repositories.AssignmentRepo, record *gormModels.Booking, now time.Time) error {
	if constants.IsCancelledStatus(record.Status) {
		cancelled, err := assignments.CancelForBooking(ctx, record.BookingRef, record.Status, now)
		if err != nil {
			return fmt.Errorf("cancel assignments: %w", err)
		}
		if cancelled > 0 {
			logging.Info("Cancelled assignments for cancelled booking",
				"booking_ref", record.BookingRef,
				"assignments", cancelled,
			)
		}
		return nil
	}

	if _, err := assignments.MirrorBookingStatus(ctx, record.BookingRef, record.Status); err != nil {
		return fmt.Errorf("mirror booking status: %w", err)
	}
	return nil
}

// inferProvince never fails the upsert; an unreachable classifier leaves the booking for backfill
func (s *BookingUpsertService) inferProvince(ctx context.Context, record *gormModels.Booking) {
	if s.province == nil {
		return
	}
	if err := s.province.Apply(ctx, record); err != nil {
		s.metrics.IncFailure(constants.StageProvince)
		logging.Warn("Province inference failed, leaving unresolved",
			"booking_ref", record.BookingRef,
			"error", err,
		)
	}
}
