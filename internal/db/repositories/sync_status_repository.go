package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/models/dtos"
	"groundtransfer/opsdesk/internal/models/gorm"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// ErrRunNotRunning is returned when finishing a ledger row that is already terminal
var ErrRunNotRunning = errors.New("sync run is not running")

// SyncStatusRepo is the append-only sync_status ledger
type SyncStatusRepo struct {
	db *gormlib.DB
}

// NewSyncStatusRepo creates a new sync ledger repository
func NewSyncStatusRepo(db *gormlib.DB) *SyncStatusRepo {
	return &SyncStatusRepo{db: db}
}

// Start records a running invocation with its window bounds (nil for single-ref runs)
func (r *SyncStatusRepo) Start(ctx context.Context, strategy string, from, to *time.Time) (*gorm.SyncRun, error) {
	run := &gorm.SyncRun{
		ID:        uuid.NewString(),
		Strategy:  strategy,
		DateFrom:  utcPtr(from),
		DateTo:    utcPtr(to),
		Status:    constants.SyncRunRunning,
		StartedAt: time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("start sync run: %w", err)
	}
	return run, nil
}

// Complete closes a running row with the invocation's counts
func (r *SyncStatusRepo) Complete(ctx context.Context, id string, summary *dtos.SyncSummary) error {
	return r.finish(ctx, id, constants.SyncRunCompleted, summary, "")
}

// Fail closes a running row with the error that aborted it
func (r *SyncStatusRepo) Fail(ctx context.Context, id string, summary *dtos.SyncSummary, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.finish(ctx, id, constants.SyncRunFailed, summary, msg)
}

func (r *SyncStatusRepo) finish(ctx context.Context, id string, status constants.SyncRunStatus, summary *dtos.SyncSummary, message string) error {
	fields := map[string]interface{}{
		"status":        status,
		"error_message": message,
		"completed_at":  time.Now().UTC(),
	}
	if summary != nil {
		fields["total_found"] = summary.Found
		fields["total_new"] = summary.New
		fields["total_updated"] = summary.Updated
		fields["total_failed"] = summary.Failed
	}

	// Terminal rows are immutable
	result := r.db.WithContext(ctx).
		Model(&gorm.SyncRun{}).
		Where("id = ? AND status = ?", id, constants.SyncRunRunning).
		Updates(fields)

	if result.Error != nil {
		return fmt.Errorf("finish sync run %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("finish sync run %s: %w", id, ErrRunNotRunning)
	}
	return nil
}

// ListRecent returns the newest runs first, optionally filtered by strategy
func (r *SyncStatusRepo) ListRecent(ctx context.Context, strategy string, limit int) ([]gorm.SyncRun, error) {
	var runs []gorm.SyncRun

	query := r.db.WithContext(ctx).Order("started_at DESC")
	if strategy != "" {
		query = query.Where("strategy = ?", strategy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}

	return runs, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
