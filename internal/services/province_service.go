package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"groundtransfer/opsdesk/internal/common"
	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/metrics"
	"groundtransfer/opsdesk/internal/models/dtos"
	gormModels "groundtransfer/opsdesk/internal/models/gorm"
	"groundtransfer/opsdesk/internal/providers"
)

// ProvinceService infers a booking's province from its location signals.
// Resolved answers are cached; unresolved ones are not, so backfill can retry them.
type ProvinceService struct {
	classifier providers.ProvinceClassifier
	cache      common.CacheInterface
	ttl        time.Duration
	metrics    *metrics.MetricsRegistry
}

func NewProvinceService(
	classifier providers.ProvinceClassifier,
	cache common.CacheInterface,
	ttl time.Duration,
	m *metrics.MetricsRegistry,
) *ProvinceService {
	return &ProvinceService{
		classifier: classifier,
		cache:      cache,
		ttl:        ttl,
		metrics:    m,
	}
}

// BuildProvinceSignals picks the signal set for the booking's shape.
// Quote bookings carry only their pickup and dropoff addresses.
func BuildProvinceSignals(b *gormModels.Booking) dtos.ProvinceSignals {
	if b.IsQuote() {
		return dtos.ProvinceSignals{
			Kind:         dtos.ProvinceSignalQuote,
			AddressLines: nonEmpty(b.PickupAddress, b.DropoffAddress),
		}
	}
	return dtos.ProvinceSignals{
		Kind:         dtos.ProvinceSignalAirport,
		AirportCode:  strings.ToUpper(strings.TrimSpace(b.Airport)),
		Resort:       strings.TrimSpace(b.Resort),
		AddressLines: nonEmpty(b.AccommodationName, b.AccommodationAddress, b.AccommodationAddr2),
	}
}

// Infer classifies the booking. A nil error with an unresolved result means the
// classifier had no answer; an error means it could not be asked.
func (s *ProvinceService) Infer(ctx context.Context, b *gormModels.Booking) (*dtos.ProvinceResult, error) {
	signals := BuildProvinceSignals(b)
	if signals.AirportCode == "" && signals.Resort == "" && len(signals.AddressLines) == 0 {
		return &dtos.ProvinceResult{}, nil
	}

	key, err := provinceCacheKey(signals)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, found := s.cache.Get(key); found {
			var result dtos.ProvinceResult
			if err := common.DecodeCached(cached, &result); err == nil && result.Resolved() {
				s.metrics.IncCache(string(constants.CachePrefixProvince), true)
				return &result, nil
			}
		}
		s.metrics.IncCache(string(constants.CachePrefixProvince), false)
	}

	result, err := s.classifier.Classify(ctx, signals)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", b.BookingRef, err)
	}
	if result == nil {
		result = &dtos.ProvinceResult{}
	}

	if s.cache != nil && result.Resolved() {
		s.cache.Set(key, *result, s.ttl)
	}
	return result, nil
}

// Apply infers and writes the province fields onto b. On failure b is left unresolved.
func (s *ProvinceService) Apply(ctx context.Context, b *gormModels.Booking) error {
	result, err := s.Infer(ctx, b)
	if err != nil {
		b.Province = nil
		b.ProvinceSource = ""
		b.ProvinceConfidence = 0
		return err
	}
	applyProvince(b, result)
	return nil
}

func applyProvince(b *gormModels.Booking, result *dtos.ProvinceResult) {
	if !result.Resolved() {
		b.Province = nil
		b.ProvinceSource = result.Source
		b.ProvinceConfidence = 0
		return
	}
	province := strings.TrimSpace(*result.Province)
	b.Province = &province
	b.ProvinceSource = result.Source
	b.ProvinceConfidence = result.Confidence
}

func provinceCacheKey(signals dtos.ProvinceSignals) (string, error) {
	data, err := json.Marshal(signals)
	if err != nil {
		return "", fmt.Errorf("encode province signals: %w", err)
	}
	sum := sha256.Sum256([]byte(strings.ToLower(string(data))))
	return string(constants.CachePrefixProvince) + hex.EncodeToString(sum[:16]), nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
