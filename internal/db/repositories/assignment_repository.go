package repositories

import (
	"context"
	"time"

	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// AssignmentRepo touches the driver/vehicle assignments owned by dispatch.
// Only status, booking_status, cancelled_at and updated_at are written here.
type AssignmentRepo struct {
	db *gormlib.DB
}

// NewAssignmentRepo creates a new assignment repository
func NewAssignmentRepo(db *gormlib.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *AssignmentRepo) WithTx(tx *gormlib.DB) *AssignmentRepo {
	return &AssignmentRepo{db: tx}
}

// CancelForBooking cancels the booking's open assignments and mirrors the booking status
// onto every assignment. Already-cancelled rows keep their original cancelled_at.
func (r *AssignmentRepo) CancelForBooking(ctx context.Context, ref string, bookingStatus string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&gorm.DriverVehicleAssignment{}).
		Where("booking_ref = ? AND status <> ?", ref, constants.AssignmentStatusCancelled).
		Updates(map[string]interface{}{
			"status":         constants.AssignmentStatusCancelled,
			"cancelled_at":   now,
			"booking_status": bookingStatus,
		})
	if result.Error != nil {
		return 0, result.Error
	}

	if _, err := r.MirrorBookingStatus(ctx, ref, bookingStatus); err != nil {
		return 0, err
	}

	return result.RowsAffected, nil
}

// MirrorBookingStatus copies the upstream status onto the booking's assignments
func (r *AssignmentRepo) MirrorBookingStatus(ctx context.Context, ref string, bookingStatus string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&gorm.DriverVehicleAssignment{}).
		Where("booking_ref = ?", ref).
		Update("booking_status", bookingStatus)

	return result.RowsAffected, result.Error
}
