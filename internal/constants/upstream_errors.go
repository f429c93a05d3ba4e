package constants

// Upstream Error Codes
// These constants define specific error scenarios for the reservation provider and classifier

const (
	ErrCodeInvalidAPIKey     = "INVALID_API_KEY"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeNetworkError      = "NETWORK_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBookingNotFound   = "BOOKING_NOT_FOUND"
	ErrCodeInvalidDataFormat = "INVALID_DATA_FORMAT"
	ErrCodeUpstreamError     = "UPSTREAM_ERROR"
	ErrCodeCircuitOpen       = "CIRCUIT_OPEN"
	ErrCodeClassifierError   = "CLASSIFIER_ERROR"
)

// Error Messages
// Human-readable messages corresponding to error codes

var UpstreamErrorMessages = map[string]string{
	ErrCodeInvalidAPIKey:     "The reservation API key or version was rejected",
	ErrCodeRateLimited:       "Rate limit exceeded. Please try again later",
	ErrCodeNetworkError:      "Unable to connect to the reservation API",
	ErrCodeTimeout:           "The reservation API did not answer in time",
	ErrCodeBookingNotFound:   "The booking reference was not found upstream",
	ErrCodeInvalidDataFormat: "The reservation API returned a malformed body",
	ErrCodeUpstreamError:     "The reservation API returned an error",
	ErrCodeCircuitOpen:       "Upstream calls are suspended after repeated failures",
	ErrCodeClassifierError:   "The province classifier could not be reached",
}

// GetErrorMessage returns the human-readable message for an error code
func GetErrorMessage(code string) string {
	if msg, exists := UpstreamErrorMessages[code]; exists {
		return msg
	}
	return "An unknown error occurred"
}
