package repositories

import (
	"context"
	"fmt"

	"groundtransfer/opsdesk/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// bookingMutableColumns are rewritten on every sync. booking_ref, created_at and the
// province columns are never touched after insert.
var bookingMutableColumns = []string{
	"status", "booking_type", "last_action_date",
	"arrival_date", "departure_date", "pickup_date",
	"arrival_flight_no", "departure_flight_no",
	"accommodation_name", "accommodation_address", "accommodation_address2",
	"airport", "resort", "pickup_address", "dropoff_address",
	"passenger_name", "passenger_email", "passenger_phone",
	"adults", "children", "infants", "pax_total",
	"raw_data", "synced_at", "updated_at",
}

// BookingRepo handles bookings table operations
type BookingRepo struct {
	db *gormlib.DB
}

// NewBookingRepo creates a new booking repository
func NewBookingRepo(db *gormlib.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *BookingRepo) WithTx(tx *gormlib.DB) *BookingRepo {
	return &BookingRepo{db: tx}
}

// FindByRef returns the booking or nil when it does not exist
func (r *BookingRepo) FindByRef(ctx context.Context, ref string) (*gorm.Booking, error) {
	var booking gorm.Booking

	err := r.db.WithContext(ctx).
		Where("booking_ref = ?", ref).
		First(&booking).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &booking, nil
}

// Insert creates a booking including its province fields. It reports false, and writes
// nothing, when another run created the same booking_ref first.
func (r *BookingRepo) Insert(ctx context.Context, booking *gorm.Booking) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "booking_ref"}},
			DoNothing: true,
		}).
		Create(booking)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateMutable overwrites the sync-owned columns of an existing booking
func (r *BookingRepo) UpdateMutable(ctx context.Context, booking *gorm.Booking) error {
	result := r.db.WithContext(ctx).
		Model(&gorm.Booking{}).
		Where("booking_ref = ?", booking.BookingRef).
		Select(bookingMutableColumns).
		Updates(booking)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("booking %s: %w", booking.BookingRef, gormlib.ErrRecordNotFound)
	}
	return nil
}

// UpdateFields applies a targeted column update, used by backfill
func (r *BookingRepo) UpdateFields(ctx context.Context, ref string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&gorm.Booking{}).
		Where("booking_ref = ?", ref).
		Updates(fields).Error
}
