package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"groundtransfer/opsdesk/internal/config"
	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/metrics"
	"groundtransfer/opsdesk/internal/models/dtos"
)

// ReservationProvider implements BookingSource for the upstream reservation API
type ReservationProvider struct {
	BaseURL string
	APIKey  string
	Version string
	Client  *http.Client

	metrics *metrics.MetricsRegistry
}

// Ensure ReservationProvider implements BookingSource
var _ BookingSource = (*ReservationProvider)(nil)

// NewReservationProvider creates a provider from explicit upstream configuration.
// Call deadlines come from the caller's context; the transport only bounds connection setup.
func NewReservationProvider(cfg config.UpstreamConfig, m *metrics.MetricsRegistry) *ReservationProvider {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout

	return &ReservationProvider{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Version: cfg.Version,
		Client:  &http.Client{Transport: transport},
		metrics: m,
	}
}

// ============================================================================
// Booking Methods
// ============================================================================

// SearchBookings fetches one page of booking summaries for the window
func (p *ReservationProvider) SearchBookings(ctx context.Context, window dtos.SearchWindow, page int) ([]dtos.BookingSummary, error) {
	if page < 1 {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Page number must be greater than 0",
		}
	}

	endpoint, err := searchEndpoint(window, page)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	status, body, err := p.doGET(ctx, endpoint)
	if err != nil {
		p.metrics.ObserveUpstream("search", "error", time.Since(start))
		return nil, err
	}

	if status == http.StatusNoContent || len(strings.TrimSpace(string(body))) == 0 {
		p.metrics.ObserveUpstream("search", "empty", time.Since(start))
		return []dtos.BookingSummary{}, nil
	}

	summaries, err := parseSearchBody(body)
	if err != nil {
		p.metrics.ObserveUpstream("search", "error", time.Since(start))
		return nil, err
	}

	p.metrics.ObserveUpstream("search", "ok", time.Since(start))
	return summaries, nil
}

// FetchBookingDetail fetches the full record for one booking reference
func (p *ReservationProvider) FetchBookingDetail(ctx context.Context, ref string) (*dtos.BookingDetail, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Booking reference cannot be empty",
		}
	}

	endpoint := "/bookings/" + url.PathEscape(strings.TrimSpace(ref))

	start := time.Now()
	status, body, err := p.doGET(ctx, endpoint)
	if err != nil {
		p.metrics.ObserveUpstream("detail", "error", time.Since(start))
		return nil, err
	}

	if status == http.StatusNoContent || len(strings.TrimSpace(string(body))) == 0 {
		p.metrics.ObserveUpstream("detail", "empty", time.Since(start))
		return nil, &ProviderError{
			Code:       constants.ErrCodeBookingNotFound,
			Message:    fmt.Sprintf("Booking %s not found", ref),
			StatusCode: status,
		}
	}

	var envelope dtos.DetailResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		p.metrics.ObserveUpstream("detail", "error", time.Since(start))
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Failed to decode detail response",
			Details: truncate(string(body), 512),
			Err:     err,
		}
	}

	if len(envelope.Booking) == 0 || string(envelope.Booking) == "null" {
		p.metrics.ObserveUpstream("detail", "empty", time.Since(start))
		return nil, &ProviderError{
			Code:       constants.ErrCodeBookingNotFound,
			Message:    fmt.Sprintf("Booking %s not found", ref),
			StatusCode: status,
		}
	}

	var detail dtos.BookingDetail
	if err := json.Unmarshal(envelope.Booking, &detail); err != nil {
		p.metrics.ObserveUpstream("detail", "error", time.Since(start))
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Failed to decode booking detail",
			Details: truncate(string(envelope.Booking), 512),
			Err:     err,
		}
	}
	detail.Raw = envelope.Booking

	p.metrics.ObserveUpstream("detail", "ok", time.Since(start))
	return &detail, nil
}

// ============================================================================
// HTTP Helper Methods
// ============================================================================

// doGET performs an authenticated GET and returns the status code and body
func (p *ReservationProvider) doGET(ctx context.Context, endpoint string) (int, []byte, error) {
	// Validate API key
	if p.APIKey == "" {
		return 0, nil, &ProviderError{
			Code:    constants.ErrCodeInvalidAPIKey,
			Message: "UPSTREAM_API_KEY is not set",
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+endpoint, nil)
	if err != nil {
		return 0, nil, &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: "Failed to create request",
			Err:     err,
		}
	}

	req.Header.Set("API_KEY", p.APIKey)
	req.Header.Set("VERSION", p.Version)
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		code := constants.ErrCodeNetworkError
		if errors.Is(err, context.DeadlineExceeded) {
			code = constants.ErrCodeTimeout
		}
		return 0, nil, &ProviderError{
			Code:    code,
			Message: constants.GetErrorMessage(code),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		code := constants.ErrCodeNetworkError
		if errors.Is(readErr, context.DeadlineExceeded) {
			code = constants.ErrCodeTimeout
		}
		return resp.StatusCode, nil, &ProviderError{
			Code:       code,
			Message:    "Failed to read response body",
			StatusCode: resp.StatusCode,
			Err:        readErr,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil, p.buildHTTPError(resp.StatusCode, endpoint, string(bodyBytes))
	}

	return resp.StatusCode, bodyBytes, nil
}

// buildHTTPError creates appropriate error based on status code
func (p *ReservationProvider) buildHTTPError(statusCode int, endpoint string, body string) error {
	body = truncate(body, 512)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ProviderError{
			Code:       constants.ErrCodeInvalidAPIKey,
			Message:    fmt.Sprintf("Authentication failed for endpoint %s", endpoint),
			Details:    body,
			StatusCode: statusCode,
		}
	case http.StatusNotFound:
		return &ProviderError{
			Code:       constants.ErrCodeBookingNotFound,
			Message:    fmt.Sprintf("Resource not found: %s", endpoint),
			Details:    body,
			StatusCode: statusCode,
		}
	case http.StatusTooManyRequests:
		return &ProviderError{
			Code:       constants.ErrCodeRateLimited,
			Message:    constants.GetErrorMessage(constants.ErrCodeRateLimited),
			Details:    body,
			StatusCode: statusCode,
		}
	default:
		return &ProviderError{
			Code:       constants.ErrCodeUpstreamError,
			Message:    fmt.Sprintf("HTTP %d from %s", statusCode, endpoint),
			Details:    body,
			StatusCode: statusCode,
		}
	}
}

// searchEndpoint builds the search path for a window's index
func searchEndpoint(window dtos.SearchWindow, page int) (string, error) {
	var prefix string
	switch window.Index {
	case constants.SearchIndexLastAction, "":
		prefix = "/bookings/search/"
	case constants.SearchIndexArrivals:
		prefix = "/bookings/search/arrivals/"
	case constants.SearchIndexDepartures:
		prefix = "/bookings/search/departures/"
	default:
		return "", &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: fmt.Sprintf("Unknown search index %q", window.Index),
		}
	}

	return fmt.Sprintf("%ssince-date/%s/until-date/%s/page/%d",
		prefix,
		url.PathEscape(window.From.UTC().Format(constants.UpstreamDateLayout)),
		url.PathEscape(window.To.UTC().Format(constants.UpstreamDateLayout)),
		page,
	), nil
}

// parseSearchBody decodes the positional-label map and returns summaries in label order
func parseSearchBody(body []byte) ([]dtos.BookingSummary, error) {
	var resp dtos.SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Failed to decode search response",
			Details: truncate(string(body), 512),
			Err:     err,
		}
	}

	if len(resp.Bookings) == 0 {
		return []dtos.BookingSummary{}, nil
	}

	labels := make([]string, 0, len(resp.Bookings))
	for label := range resp.Bookings {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return labelLess(labels[i], labels[j])
	})

	summaries := make([]dtos.BookingSummary, 0, len(labels))
	for _, label := range labels {
		raw := resp.Bookings[label]
		var summary dtos.BookingSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			return nil, &ProviderError{
				Code:    constants.ErrCodeInvalidDataFormat,
				Message: fmt.Sprintf("Failed to decode search entry %s", label),
				Details: truncate(string(raw), 512),
				Err:     err,
			}
		}
		summary.Raw = raw
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// labelLess orders "booking_2" before "booking_10"; non-numeric labels sort lexically after
func labelLess(a, b string) bool {
	na, okA := labelIndex(a)
	nb, okB := labelIndex(b)
	switch {
	case okA && okB:
		return na < nb
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}

func labelIndex(label string) (int, bool) {
	idx := strings.LastIndexAny(label, "_-")
	if idx < 0 || idx == len(label)-1 {
		n, err := strconv.Atoi(label)
		return n, err == nil
	}
	n, err := strconv.Atoi(label[idx+1:])
	return n, err == nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
