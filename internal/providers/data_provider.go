package providers

import (
	"context"

	"groundtransfer/opsdesk/internal/models/dtos"
)

// BookingSource defines the upstream reservation API as the sync engine sees it
type BookingSource interface {
	// SearchBookings fetches one page of coarse summaries for a window. An empty
	// slice with a nil error means the upstream had nothing (including 204 No Content).
	SearchBookings(ctx context.Context, window dtos.SearchWindow, page int) ([]dtos.BookingSummary, error)

	// FetchBookingDetail fetches the full record for a single booking reference
	FetchBookingDetail(ctx context.Context, ref string) (*dtos.BookingDetail, error)
}

// ProvinceClassifier defines the external heuristic that maps location signals to a province
type ProvinceClassifier interface {
	Classify(ctx context.Context, signals dtos.ProvinceSignals) (*dtos.ProvinceResult, error)
}
