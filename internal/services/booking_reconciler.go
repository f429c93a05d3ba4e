package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"groundtransfer/opsdesk/internal/common"
	"groundtransfer/opsdesk/internal/constants"
	"groundtransfer/opsdesk/internal/models/dtos"
	gormModels "groundtransfer/opsdesk/internal/models/gorm"
)

// ReconcileBooking merges a search summary and a detail record into the local row shape.
// Detail wins wherever it carries a value. Either input may be nil, not both.
// Province fields are left empty; inference happens in the upsert path.
func ReconcileBooking(summary *dtos.BookingSummary, detail *dtos.BookingDetail, now time.Time) (*gormModels.Booking, error) {
	if summary == nil && detail == nil {
		return nil, fmt.Errorf("reconcile: no search or detail record")
	}
	if summary == nil {
		summary = &dtos.BookingSummary{}
	}
	if detail == nil {
		detail = &dtos.BookingDetail{}
	}

	g := detail.General
	syncedAt := now.UTC()

	booking := &gormModels.Booking{
		BookingRef:     pick(g.Ref, summary.Ref).String(),
		Status:         strings.ToUpper(pick(g.Status, summary.Status).String()),
		BookingType:    pick(g.BookingType, summary.BookingType).String(),
		LastActionDate: pickTime(g.LastActionDate, summary.LastActionDate),
		Airport:        pick(g.Airport, summary.Airport).String(),
		Resort:         pick(g.Resort, summary.Resort).String(),
		PassengerName:  pick(g.PassengerName, summary.PassengerName).String(),
		PassengerEmail: g.PassengerEmail.String(),
		PassengerPhone: g.PassengerPhone.String(),
		SyncedAt:       &syncedAt,
	}
	if booking.BookingRef == "" {
		return nil, fmt.Errorf("reconcile: booking reference is empty")
	}

	if booking.IsQuote() {
		applyQuoteFields(booking, summary, detail.Quote)
	} else {
		applyAirportFields(booking, summary, detail)
	}

	applyPax(booking,
		pick(g.Adults, summary.Adults),
		pick(g.Children, summary.Children),
		pick(g.Infants, summary.Infants),
	)

	raw, err := json.Marshal(dtos.RawDataEnvelope{
		Version: constants.RawDataVersion,
		Search:  rawOrNull(summary.Raw),
		Detail:  rawOrNull(detail.Raw),
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: encode raw data: %w", booking.BookingRef, err)
	}
	booking.RawData = string(raw)

	return booking, nil
}

func applyAirportFields(b *gormModels.Booking, summary *dtos.BookingSummary, detail *dtos.BookingDetail) {
	arrival, departure := detail.Arrival, detail.Departure

	b.ArrivalDate = pickTime(arrival.Date, summary.ArrivalDate)
	b.DepartureDate = pickTime(departure.Date, summary.DepartureDate)
	b.ArrivalFlightNo = arrival.FlightNo.String()
	b.DepartureFlightNo = departure.FlightNo.String()

	b.PickupDate = firstTime(
		departure.PickupDate,
		departure.Date,
		arrival.Date,
		summary.DepartureDate,
		summary.ArrivalDate,
	)

	// The accommodation block moves as a unit so name and address never come from different legs
	leg := arrival
	if !arrival.HasAccommodation() {
		leg = departure
	}
	b.AccommodationName = leg.AccommodationName.String()
	b.AccommodationAddress = leg.AccommodationAddress1.String()
	b.AccommodationAddr2 = leg.AccommodationAddress2.String()
}

func applyQuoteFields(b *gormModels.Booking, summary *dtos.BookingSummary, quote dtos.DetailQuote) {
	b.PickupDate = firstTime(quote.TransferDate, summary.DepartureDate, summary.ArrivalDate)
	b.PickupAddress = joinLines(quote.PickupAddress1, quote.PickupAddress2)
	b.DropoffAddress = joinLines(quote.DropoffAddress1, quote.DropoffAddress2)
}

// applyPax keeps the upstream counts when any is present and they add up to at least one
// passenger; otherwise the booking is recorded as a single adult.
func applyPax(b *gormModels.Booking, adults, children, infants common.FlexString) {
	a, okA := adults.Int()
	c, okC := children.Int()
	i, okI := infants.Int()

	if a < 0 {
		a = 0
	}
	if c < 0 {
		c = 0
	}
	if i < 0 {
		i = 0
	}

	if (okA || okC || okI) && a+c+i > 0 {
		b.Adults, b.Children, b.Infants = a, c, i
		b.PaxTotal = a + c + i
		return
	}

	b.Adults, b.Children, b.Infants = 1, 0, 0
	b.PaxTotal = 1
}

func pick(detail, search common.FlexString) common.FlexString {
	if !detail.IsEmpty() {
		return detail
	}
	return search
}

// pickTime is pick for dates: a detail value that does not parse (e.g. 0000-00-00) counts as unset
func pickTime(detail, search common.FlexString) *time.Time {
	return firstTime(detail, search)
}

func firstTime(candidates ...common.FlexString) *time.Time {
	for _, c := range candidates {
		if t := c.Time(); t != nil {
			return t
		}
	}
	return nil
}

func joinLines(lines ...common.FlexString) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if !l.IsEmpty() {
			parts = append(parts, l.String())
		}
	}
	return strings.Join(parts, ", ")
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage("null")
	}
	return raw
}
