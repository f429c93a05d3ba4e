package repositories

import (
	"context"
	"fmt"
	"time"

	"groundtransfer/opsdesk/internal/constants"

	"github.com/jmoiron/sqlx"
)

// BackfillRepo runs the raw candidate scan for the backfill scanner
type BackfillRepo struct {
	db *sqlx.DB
}

func NewBackfillRepo(db *sqlx.DB) *BackfillRepo {
	return &BackfillRepo{db}
}

// FindCandidates returns refs of non-cancelled bookings travelling in [from, to] that still
// lack detail fields or a province, earliest travel date first
func (r *BackfillRepo) FindCandidates(ctx context.Context, from, to time.Time, limit int) ([]string, error) {
	refs := []string{}

	err := r.db.SelectContext(ctx, &refs, r.db.Rebind(constants.SelectBackfillCandidates),
		constants.BookingTypeQuote,
		constants.BookingStatusCancelled, "CANCELLED", "CANCELED",
		from.UTC(), to.UTC(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select backfill candidates: %w", err)
	}

	return refs, nil
}
