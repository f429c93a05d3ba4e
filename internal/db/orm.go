package db

import (
	"fmt"

	"groundtransfer/opsdesk/internal/logging"
	"groundtransfer/opsdesk/internal/models/gorm"

	"gorm.io/driver/postgres"
	gormlib "gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitPostgresORM opens the GORM handle used by the sync engine
func InitPostgresORM(dsn string) (*gormlib.DB, error) {
	db, err := gormlib.Open(postgres.Open(dsn), &gormlib.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	logging.Info("Connected to Postgres via GORM")
	return db, nil
}

// Migrate creates or updates the tables the engine owns or touches
func Migrate(db *gormlib.DB) error {
	if err := db.AutoMigrate(
		&gorm.Booking{},
		&gorm.SyncRun{},
		&gorm.DriverVehicleAssignment{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
