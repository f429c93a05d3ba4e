package gorm

import (
	"time"

	"groundtransfer/opsdesk/internal/constants"
)

// SyncRun is one append-only ledger row per sync invocation
type SyncRun struct {
	ID           string                  `gorm:"column:id;primaryKey;type:uuid"`
	Strategy     string                  `gorm:"column:strategy;type:varchar(30);not null;index"`
	DateFrom     *time.Time              `gorm:"column:date_from"`
	DateTo       *time.Time              `gorm:"column:date_to"`
	Status       constants.SyncRunStatus `gorm:"column:status;type:varchar(20);not null"`
	TotalFound   int                     `gorm:"column:total_found;not null;default:0"`
	TotalNew     int                     `gorm:"column:total_new;not null;default:0"`
	TotalUpdated int                     `gorm:"column:total_updated;not null;default:0"`
	TotalFailed  int                     `gorm:"column:total_failed;not null;default:0"`
	ErrorMessage string                  `gorm:"column:error_message;type:text"`
	StartedAt    time.Time               `gorm:"column:started_at;not null"`
	CompletedAt  *time.Time              `gorm:"column:completed_at"`
}

// TableName specifies the table name for GORM
func (SyncRun) TableName() string {
	return "sync_status"
}
