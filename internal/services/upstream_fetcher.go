package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"groundtransfer/opsdesk/internal/config"
	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/logging"
	"groundtransfer/opsdesk/internal/models/dtos"
	"groundtransfer/opsdesk/internal/providers"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrDetailUnavailable means a detail fetch was given up on; the reference is skipped, the run continues
var ErrDetailUnavailable = errors.New("booking detail unavailable")

// ErrSearchUnavailable means a search window was abandoned after its retries
var ErrSearchUnavailable = errors.New("search window unavailable")

// UpstreamFetcher adds pagination, pacing, retry and circuit breaking on top of a BookingSource
type UpstreamFetcher struct {
	source  providers.BookingSource
	cfg     config.UpstreamConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
}

// NewUpstreamFetcher creates a fetcher. One fetcher is shared by every run so the
// request pace and breaker state hold across concurrent invocations.
func NewUpstreamFetcher(source providers.BookingSource, cfg config.UpstreamConfig) *UpstreamFetcher {
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	return &UpstreamFetcher{
		source:  source,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		breaker: newUpstreamBreaker(cfg),
	}
}

func newUpstreamBreaker(cfg config.UpstreamConfig) *gobreaker.CircuitBreaker[any] {
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 10
	}

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "reservation-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A missing booking is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || providers.IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("Upstream circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

// BreakerState reports the breaker state for health output
func (f *UpstreamFetcher) BreakerState() string {
	return f.breaker.State().String()
}

// SearchWindow pages through one window. A page shorter than the page size is the last one.
// If a page fails after its retries the summaries collected so far are returned with an
// error wrapping ErrSearchUnavailable.
func (f *UpstreamFetcher) SearchWindow(ctx context.Context, window dtos.SearchWindow, timeout time.Duration) ([]dtos.BookingSummary, error) {
	if timeout <= 0 {
		timeout = f.cfg.SearchTimeout
	}

	var collected []dtos.BookingSummary
	for page := 1; page <= f.cfg.MaxPages; page++ {
		var summaries []dtos.BookingSummary
		err := f.withRetry(ctx, func(ctx context.Context) error {
			callCtx, cancel := withOptionalTimeout(ctx, timeout)
			defer cancel()

			result, err := f.breaker.Execute(func() (any, error) {
				return f.source.SearchBookings(callCtx, window, page)
			})
			if err != nil {
				return err
			}
			summaries, _ = result.([]dtos.BookingSummary)
			return nil
		})
		if err != nil {
			return collected, fmt.Errorf("%w: %s %s..%s page %d: %w",
				ErrSearchUnavailable, window.Index,
				window.From.Format(constants.UpstreamDateLayout),
				window.To.Format(constants.UpstreamDateLayout),
				page, err)
		}

		if len(summaries) == 0 {
			break
		}
		collected = append(collected, summaries...)

		if len(summaries) != f.cfg.PageSize {
			break
		}
		if page == f.cfg.MaxPages {
			logging.Warn("Search page cap reached, window may be truncated",
				"index", window.Index,
				"from", window.From,
				"to", window.To,
				"max_pages", f.cfg.MaxPages,
			)
		}
	}

	return collected, nil
}

// FetchDetail fetches one booking's detail with bounded retries.
// Any failure is reported as ErrDetailUnavailable so callers can skip the reference.
func (f *UpstreamFetcher) FetchDetail(ctx context.Context, ref string) (*dtos.BookingDetail, error) {
	var detail *dtos.BookingDetail
	err := f.withRetry(ctx, func(ctx context.Context) error {
		callCtx, cancel := withOptionalTimeout(ctx, f.cfg.DetailTimeout)
		defer cancel()

		result, err := f.breaker.Execute(func() (any, error) {
			return f.source.FetchBookingDetail(callCtx, ref)
		})
		if err != nil {
			return err
		}
		detail, _ = result.(*dtos.BookingDetail)
		if detail == nil {
			return &providers.ProviderError{
				Code:    constants.ErrCodeInvalidDataFormat,
				Message: "Empty booking detail",
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDetailUnavailable, ref, err)
	}
	return detail, nil
}

// withRetry makes up to MaxAttempts paced calls with a linear backoff (RetryBackoff x attempt).
// Permanent errors and an open breaker end the loop early.
func (f *UpstreamFetcher) withRetry(ctx context.Context, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (after: %v)", err, lastErr)
			}
			return err
		}

		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}

		if providers.IsPermanent(lastErr) {
			return lastErr
		}
		if errors.Is(lastErr, gobreaker.ErrOpenState) || errors.Is(lastErr, gobreaker.ErrTooManyRequests) {
			return &providers.ProviderError{
				Code:    constants.ErrCodeCircuitOpen,
				Message: constants.GetErrorMessage(constants.ErrCodeCircuitOpen),
				Err:     lastErr,
			}
		}
		if ctx.Err() != nil {
			return lastErr
		}

		if attempt < f.cfg.MaxAttempts {
			if err := sleepContext(ctx, f.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
