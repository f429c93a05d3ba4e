package gorm

import (
	"time"

	"groundtransfer/opsdesk/internal/constants"
)

// Booking is the reconciled local copy of one upstream reservation
type Booking struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement"`
	BookingRef string `gorm:"column:booking_ref;type:varchar(32);not null;uniqueIndex"`

	// Lifecycle
	Status         string     `gorm:"column:status;type:varchar(20);not null;default:''"`
	BookingType    string     `gorm:"column:booking_type;type:varchar(30);not null;default:''"`
	LastActionDate *time.Time `gorm:"column:last_action_date"`

	// Itinerary
	ArrivalDate          *time.Time `gorm:"column:arrival_date"`
	DepartureDate        *time.Time `gorm:"column:departure_date"`
	PickupDate           *time.Time `gorm:"column:pickup_date;index"`
	ArrivalFlightNo      string     `gorm:"column:arrival_flight_no;type:varchar(20)"`
	DepartureFlightNo    string     `gorm:"column:departure_flight_no;type:varchar(20)"`
	AccommodationName    string     `gorm:"column:accommodation_name;type:varchar(255)"`
	AccommodationAddress string     `gorm:"column:accommodation_address;type:text"`
	AccommodationAddr2   string     `gorm:"column:accommodation_address2;type:text"`
	Airport              string     `gorm:"column:airport;type:varchar(10)"`
	Resort               string     `gorm:"column:resort;type:varchar(120)"`

	// Quote bookings only
	PickupAddress  string `gorm:"column:pickup_address;type:text"`
	DropoffAddress string `gorm:"column:dropoff_address;type:text"`

	// Passenger
	PassengerName  string `gorm:"column:passenger_name;type:varchar(255)"`
	PassengerEmail string `gorm:"column:passenger_email;type:varchar(255)"`
	PassengerPhone string `gorm:"column:passenger_phone;type:varchar(50)"`
	Adults         int    `gorm:"column:adults;not null;default:0"`
	Children       int    `gorm:"column:children;not null;default:0"`
	Infants        int    `gorm:"column:infants;not null;default:0"`
	PaxTotal       int    `gorm:"column:pax_total;not null;default:0"`

	// Derived by the province classifier
	Province           *string `gorm:"column:province;type:varchar(120)"`
	ProvinceSource     string  `gorm:"column:province_source;type:varchar(60)"`
	ProvinceConfidence float64 `gorm:"column:province_confidence;type:numeric(5,2);not null;default:0"`

	// Verbatim upstream payloads, see RawDataEnvelope
	RawData string `gorm:"column:raw_data;type:jsonb"`

	SyncedAt  *time.Time `gorm:"column:synced_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Booking) TableName() string {
	return "bookings"
}

// IsQuote reports whether the booking uses the point-to-point field set
func (b *Booking) IsQuote() bool {
	return b != nil && constants.IsQuoteBooking(b.BookingType)
}
