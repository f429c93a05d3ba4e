package repositories

import (
	"context"
	"testing"
	"time"

	"groundtransfer/opsdesk/internal/constants"
	gormModels "groundtransfer/opsdesk/internal/models/gorm"

	"gorm.io/gorm"
)

func assignmentsFor(t *testing.T, db *gorm.DB, ref string) []gormModels.DriverVehicleAssignment {
	t.Helper()
	var assignments []gormModels.DriverVehicleAssignment
	if err := db.Where("booking_ref = ?", ref).Order("id ASC").Find(&assignments).Error; err != nil {
		t.Fatalf("Failed to load assignments: %v", err)
	}
	return assignments
}

func TestAssignmentRepo_CancelForBooking(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssignmentRepo(db)
	ctx := context.Background()

	earlier := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	db.Create(&gormModels.DriverVehicleAssignment{BookingRef: "REF-1", Status: "assigned"})
	db.Create(&gormModels.DriverVehicleAssignment{BookingRef: "REF-1", Status: constants.AssignmentStatusCancelled, CancelledAt: &earlier})
	db.Create(&gormModels.DriverVehicleAssignment{BookingRef: "OTHER", Status: "assigned"})

	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	cancelled, err := repo.CancelForBooking(ctx, "REF-1", "CAN", now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cancelled != 1 {
		t.Errorf("Expected 1 newly cancelled assignment, got %d", cancelled)
	}

	assignments := assignmentsFor(t, db, "REF-1")
	if len(assignments) != 2 {
		t.Fatalf("Expected 2 assignments, got %d", len(assignments))
	}
	for _, a := range assignments {
		if a.Status != constants.AssignmentStatusCancelled {
			t.Errorf("Expected cancelled, got %s", a.Status)
		}
		if a.BookingStatus != "CAN" {
			t.Errorf("Expected booking status CAN, got %s", a.BookingStatus)
		}
	}
	if !assignments[0].CancelledAt.Equal(now) {
		t.Errorf("Expected cancelled_at %v, got %v", now, assignments[0].CancelledAt)
	}
	if !assignments[1].CancelledAt.Equal(earlier) {
		t.Errorf("Expected original cancelled_at to be kept, got %v", assignments[1].CancelledAt)
	}

	other := assignmentsFor(t, db, "OTHER")
	if other[0].Status != "assigned" {
		t.Errorf("Expected unrelated assignment untouched, got %s", other[0].Status)
	}
}

func TestAssignmentRepo_MirrorBookingStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssignmentRepo(db)
	ctx := context.Background()

	db.Create(&gormModels.DriverVehicleAssignment{BookingRef: "REF-1", Status: "assigned"})

	rows, err := repo.MirrorBookingStatus(ctx, "REF-1", "AMM")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected 1 row, got %d", rows)
	}

	assignments := assignmentsFor(t, db, "REF-1")
	if assignments[0].Status != "assigned" || assignments[0].BookingStatus != "AMM" {
		t.Errorf("Unexpected assignment %+v", assignments[0])
	}
}
