package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"groundtransfer/opsdesk/internal/config"
	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/models/dtos"
)

// HTTPProvinceClassifier calls the province classifier service over HTTP
type HTTPProvinceClassifier struct {
	URL    string
	Client *http.Client
}

// Ensure HTTPProvinceClassifier implements ProvinceClassifier
var _ ProvinceClassifier = (*HTTPProvinceClassifier)(nil)

// NewProvinceClassifier returns the HTTP classifier, or an unconfigured stand-in when no URL is set
func NewProvinceClassifier(cfg config.ClassifierConfig) ProvinceClassifier {
	if cfg.URL == "" {
		return UnconfiguredClassifier{}
	}
	return &HTTPProvinceClassifier{
		URL: cfg.URL,
		Client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Classify posts the signal bag and decodes {province, source, confidence}
func (c *HTTPProvinceClassifier) Classify(ctx context.Context, signals dtos.ProvinceSignals) (*dtos.ProvinceResult, error) {
	payloadBytes, err := json.Marshal(signals)
	if err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeClassifierError,
			Message: "Failed to marshal classifier request",
			Err:     err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeClassifierError,
			Message: "Failed to create request",
			Err:     err,
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeClassifierError,
			Message: constants.GetErrorMessage(constants.ErrCodeClassifierError),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeClassifierError,
			Message: "Failed to read classifier response",
			Err:     err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Code:       constants.ErrCodeClassifierError,
			Message:    fmt.Sprintf("Classifier returned HTTP %d", resp.StatusCode),
			Details:    truncate(string(bodyBytes), 512),
			StatusCode: resp.StatusCode,
		}
	}

	var result dtos.ProvinceResult
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeClassifierError,
			Message: "Failed to decode classifier response",
			Details: truncate(string(bodyBytes), 512),
			Err:     err,
		}
	}

	if result.Province != nil && *result.Province == "" {
		result.Province = nil
	}

	return &result, nil
}

// UnconfiguredClassifier always answers "unresolved" so inserts proceed without a classifier
type UnconfiguredClassifier struct{}

// Classify returns an unresolved result
func (UnconfiguredClassifier) Classify(_ context.Context, _ dtos.ProvinceSignals) (*dtos.ProvinceResult, error) {
	return &dtos.ProvinceResult{
		Province:   nil,
		Source:     constants.ProvinceSourceUnconfigured,
		Confidence: 0,
	}, nil
}
