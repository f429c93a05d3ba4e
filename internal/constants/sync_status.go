package constants

import (
	"database/sql/driver"
	"fmt"
)

// SyncRunStatus mirrors the status column of the sync_status ledger
type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunFailed    SyncRunStatus = "failed"
)

// Stringer ­– convenient for fmt / logs
func (s SyncRunStatus) String() string { return string(s) }

/* ---------- DB adapters so sqlx (or database/sql) scans/values cleanly ---------- */

// Scan implements the sql.Scanner interface
func (s *SyncRunStatus) Scan(src interface{}) error {
	if src == nil {
		*s = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		*s = SyncRunStatus(v)
	case []byte:
		*s = SyncRunStatus(v)
	default:
		return fmt.Errorf("SyncRunStatus: cannot scan type %T", src)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (s SyncRunStatus) Value() (driver.Value, error) { return string(s), nil }
