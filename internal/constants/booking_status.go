package constants

import "strings"

// Upstream booking status codes
const (
	BookingStatusActive    = "ACT"
	BookingStatusAmended   = "AMM"
	BookingStatusCancelled = "CAN"
)

// Upstream booking types
const (
	BookingTypeAirport = "Airport"
	BookingTypeQuote   = "Quote"
)

// Assignment status written by the cancellation cascade
const AssignmentStatusCancelled = "cancelled"

// Province classifier sources set by this service rather than the classifier
const (
	ProvinceSourceUnconfigured = "unconfigured"
	ProvinceSourceManual       = "manual"
)

// IsCancelledStatus reports whether an upstream status code means the booking was cancelled.
// Older payloads spell the status out in full.
func IsCancelledStatus(status string) bool {
	s := strings.ToUpper(strings.TrimSpace(status))
	return s == BookingStatusCancelled || s == "CANCELLED" || s == "CANCELED"
}

// IsQuoteBooking reports whether the booking type is the point-to-point Quote shape
func IsQuoteBooking(bookingType string) bool {
	return strings.EqualFold(strings.TrimSpace(bookingType), BookingTypeQuote)
}
