package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/models/dtos"
)

const rangeDateLayout = "2006-01-02"

var (
	// ErrInvalidRange is returned for missing, unparseable or inverted explicit ranges
	ErrInvalidRange = errors.New("invalid date range")
	// ErrRangeTooWide is returned when an explicit range exceeds the configured span
	ErrRangeTooWide = errors.New("date range exceeds maximum span")
)

// Plan is the set of search windows one sync invocation will query
type Plan struct {
	Strategy string
	From     time.Time
	To       time.Time
	Windows  []dtos.SearchWindow

	// SearchTimeout overrides the per-call search timeout when non-zero
	SearchTimeout time.Duration
}

// Strategy selects the windows for a sync invocation
type Strategy interface {
	Name() string
	Plan(now time.Time) (*Plan, error)
}

// RecencyStrategy catches recently modified bookings through the last-action index
type RecencyStrategy struct {
	Lookback time.Duration
}

func (s RecencyStrategy) Name() string { return constants.SyncStrategyRecency }

func (s RecencyStrategy) Plan(now time.Time) (*Plan, error) {
	if s.Lookback <= 0 {
		return nil, fmt.Errorf("%w: recency lookback must be positive", ErrInvalidRange)
	}
	now = now.UTC()
	from := now.Add(-s.Lookback)

	return &Plan{
		Strategy: s.Name(),
		From:     from,
		To:       now,
		Windows: []dtos.SearchWindow{
			{From: from, To: now, Index: constants.SearchIndexLastAction},
		},
	}, nil
}

// HorizonStrategy covers bookings travelling in the next DaysAhead days
type HorizonStrategy struct {
	DaysAhead int
}

func (s HorizonStrategy) Name() string { return constants.SyncStrategyHorizon }

func (s HorizonStrategy) Plan(now time.Time) (*Plan, error) {
	if s.DaysAhead <= 0 {
		return nil, fmt.Errorf("%w: days ahead must be positive", ErrInvalidRange)
	}
	now = now.UTC()
	to := now.AddDate(0, 0, s.DaysAhead)

	return &Plan{
		Strategy: s.Name(),
		From:     now,
		To:       to,
		Windows:  travelWindows(now, to),
	}, nil
}

// ExplicitRangeStrategy is the manual catch-up over caller-supplied calendar days
type ExplicitRangeStrategy struct {
	From          time.Time
	To            time.Time
	MaxSpanDays   int
	SearchTimeout time.Duration
}

// NewExplicitRangeStrategy parses YYYY-MM-DD bounds and validates them
func NewExplicitRangeStrategy(dateFrom, dateTo string, maxSpanDays int, searchTimeout time.Duration) (*ExplicitRangeStrategy, error) {
	dateFrom = strings.TrimSpace(dateFrom)
	dateTo = strings.TrimSpace(dateTo)
	if dateFrom == "" || dateTo == "" {
		return nil, fmt.Errorf("%w: date_from and date_to are required", ErrInvalidRange)
	}

	from, err := time.ParseInLocation(rangeDateLayout, dateFrom, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: date_from %q is not YYYY-MM-DD", ErrInvalidRange, dateFrom)
	}
	to, err := time.ParseInLocation(rangeDateLayout, dateTo, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: date_to %q is not YYYY-MM-DD", ErrInvalidRange, dateTo)
	}

	s := &ExplicitRangeStrategy{
		From:          from,
		To:            to,
		MaxSpanDays:   maxSpanDays,
		SearchTimeout: searchTimeout,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s ExplicitRangeStrategy) Name() string { return constants.SyncStrategyExplicitRange }

// Validate rejects missing, inverted and oversized ranges
func (s ExplicitRangeStrategy) Validate() error {
	if s.From.IsZero() || s.To.IsZero() {
		return fmt.Errorf("%w: date_from and date_to are required", ErrInvalidRange)
	}

	from, to := startOfDay(s.From), startOfDay(s.To)
	if to.Before(from) {
		return fmt.Errorf("%w: date_to %s is before date_from %s",
			ErrInvalidRange, to.Format(rangeDateLayout), from.Format(rangeDateLayout))
	}

	if s.MaxSpanDays > 0 {
		span := int(to.Sub(from).Hours() / 24)
		if span > s.MaxSpanDays {
			return fmt.Errorf("%w: %d days requested, limit is %d", ErrRangeTooWide, span, s.MaxSpanDays)
		}
	}
	return nil
}

func (s ExplicitRangeStrategy) Plan(_ time.Time) (*Plan, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	first, last := startOfDay(s.From), startOfDay(s.To)

	windows := make([]dtos.SearchWindow, 0, 2*(int(last.Sub(first).Hours()/24)+1))
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		windows = append(windows, travelWindows(day, endOfDay(day))...)
	}

	return &Plan{
		Strategy:      s.Name(),
		From:          first,
		To:            endOfDay(last),
		Windows:       windows,
		SearchTimeout: s.SearchTimeout,
	}, nil
}

// CompositeStrategy runs several strategies as one invocation; overlapping results are merged downstream
type CompositeStrategy struct {
	Label      string
	Strategies []Strategy
}

// NewScheduledStrategy is the combined recency + horizon run
func NewScheduledStrategy(lookback time.Duration, daysAhead int) CompositeStrategy {
	return CompositeStrategy{
		Label: constants.SyncStrategyScheduled,
		Strategies: []Strategy{
			RecencyStrategy{Lookback: lookback},
			HorizonStrategy{DaysAhead: daysAhead},
		},
	}
}

func (s CompositeStrategy) Name() string { return s.Label }

func (s CompositeStrategy) Plan(now time.Time) (*Plan, error) {
	if len(s.Strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategies to combine", ErrInvalidRange)
	}

	combined := &Plan{Strategy: s.Name()}
	for i, strategy := range s.Strategies {
		plan, err := strategy.Plan(now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strategy.Name(), err)
		}

		if i == 0 || plan.From.Before(combined.From) {
			combined.From = plan.From
		}
		if i == 0 || plan.To.After(combined.To) {
			combined.To = plan.To
		}
		if plan.SearchTimeout > combined.SearchTimeout {
			combined.SearchTimeout = plan.SearchTimeout
		}
		combined.Windows = append(combined.Windows, plan.Windows...)
	}

	return combined, nil
}

// travelWindows splits a travel-date range into the arrivals and departures sub-indices
func travelWindows(from, to time.Time) []dtos.SearchWindow {
	return []dtos.SearchWindow{
		{From: from, To: to, Index: constants.SearchIndexArrivals},
		{From: from, To: to, Index: constants.SearchIndexDepartures},
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Second)
}
