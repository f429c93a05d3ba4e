package dtos

import (
	"encoding/json"
	"time"

	"groundtransfer/opsdesk/internal/common"
)

// SearchWindow is one bounded query against an upstream search index
type SearchWindow struct {
	From  time.Time
	To    time.Time
	Index string // constants.SearchIndex*
}

// BookingSummary is the coarse record returned by the upstream search endpoint
type BookingSummary struct {
	Ref            common.FlexString `json:"ref"`
	Status         common.FlexString `json:"status"`
	BookingType    common.FlexString `json:"bookingtype"`
	LastActionDate common.FlexString `json:"lastactiondate"`
	ArrivalDate    common.FlexString `json:"arrivaldate"`
	DepartureDate  common.FlexString `json:"departuredate"`
	PassengerName  common.FlexString `json:"passengername"`
	Airport        common.FlexString `json:"airport"`
	Resort         common.FlexString `json:"resort"`
	Adults         common.FlexString `json:"adults"`
	Children       common.FlexString `json:"children"`
	Infants        common.FlexString `json:"infants"`

	// Raw is the verbatim summary object as received
	Raw json.RawMessage `json:"-"`
}

// BookingRef returns the natural key of the summary
func (s *BookingSummary) BookingRef() string {
	if s == nil {
		return ""
	}
	return s.Ref.String()
}

// SearchResponse is the upstream search body; bookings are keyed by positional labels ("booking_0", ...)
type SearchResponse struct {
	Bookings map[string]json.RawMessage `json:"bookings"`
}

// DetailResponse wraps the upstream detail body; Booking is kept raw for the raw_data envelope
type DetailResponse struct {
	Booking json.RawMessage `json:"booking"`
}

// BookingDetail is the full upstream record for one reference
type BookingDetail struct {
	General   DetailGeneral `json:"general"`
	Arrival   DetailLeg     `json:"arrival"`
	Departure DetailLeg     `json:"departure"`
	Quote     DetailQuote   `json:"quote"`

	// Raw is the verbatim booking object as received
	Raw json.RawMessage `json:"-"`
}

// DetailGeneral carries booking-wide fields
type DetailGeneral struct {
	Ref            common.FlexString `json:"ref"`
	Status         common.FlexString `json:"status"`
	BookingType    common.FlexString `json:"bookingtype"`
	LastActionDate common.FlexString `json:"lastactiondate"`
	PassengerName  common.FlexString `json:"passengername"`
	PassengerEmail common.FlexString `json:"passengeremail"`
	PassengerPhone common.FlexString `json:"passengertelno"`
	Airport        common.FlexString `json:"airport"`
	Resort         common.FlexString `json:"resort"`
	Adults         common.FlexString `json:"adults"`
	Children       common.FlexString `json:"children"`
	Infants        common.FlexString `json:"infants"`
}

// DetailLeg is either the arrival or the departure leg of an airport transfer
type DetailLeg struct {
	Date                  common.FlexString `json:"date"`
	PickupDate            common.FlexString `json:"pickupdate"`
	FlightNo              common.FlexString `json:"flightno"`
	AccommodationName     common.FlexString `json:"accommodationname"`
	AccommodationAddress1 common.FlexString `json:"accommodationaddress1"`
	AccommodationAddress2 common.FlexString `json:"accommodationaddress2"`
}

// HasAccommodation reports whether the leg names an accommodation
func (l DetailLeg) HasAccommodation() bool {
	return !l.AccommodationName.IsEmpty()
}

// DetailQuote is the point-to-point field set used by Quote bookings
type DetailQuote struct {
	TransferDate    common.FlexString `json:"transferdate"`
	PickupAddress1  common.FlexString `json:"pickupaddress1"`
	PickupAddress2  common.FlexString `json:"pickupaddress2"`
	DropoffAddress1 common.FlexString `json:"dropoffaddress1"`
	DropoffAddress2 common.FlexString `json:"dropoffaddress2"`
}
