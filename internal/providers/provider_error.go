package providers

import (
	"errors"
	"fmt"

	"groundtransfer/opsdesk/internal/constants"
)

// ProviderError represents a provider-specific error
type ProviderError struct {
	Code       string
	Message    string
	Details    string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether retrying the same call cannot succeed
func IsPermanent(err error) bool {
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		return false
	}
	switch provErr.Code {
	case constants.ErrCodeBookingNotFound, constants.ErrCodeInvalidAPIKey:
		return true
	default:
		return false
	}
}

// ErrorCode extracts the provider error code, or "" for other errors
func ErrorCode(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code
	}
	return ""
}
