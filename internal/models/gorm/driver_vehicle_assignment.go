package gorm

import "time"

// DriverVehicleAssignment is owned by the dispatch screens.
// The sync engine only mirrors booking status into it and cascades cancellations.
type DriverVehicleAssignment struct {
	ID            uint       `gorm:"column:id;primaryKey;autoIncrement"`
	BookingRef    string     `gorm:"column:booking_ref;type:varchar(32);not null;index"`
	DriverID      *uint      `gorm:"column:driver_id"`
	VehicleID     *uint      `gorm:"column:vehicle_id"`
	Status        string     `gorm:"column:status;type:varchar(20);not null;default:'assigned'"`
	BookingStatus string     `gorm:"column:booking_status;type:varchar(20)"`
	Notes         string     `gorm:"column:notes;type:text"`
	CancelledAt   *time.Time `gorm:"column:cancelled_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (DriverVehicleAssignment) TableName() string {
	return "driver_vehicle_assignments"
}
