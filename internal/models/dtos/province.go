package dtos

// Signal kinds sent to the province classifier
const (
	ProvinceSignalAirport = "airport"
	ProvinceSignalQuote   = "quote"
)

// ProvinceSignals is the location signal bag passed to the classifier.
// Airport bookings send the airport code, resort and accommodation lines;
// Quote bookings send pickup and dropoff address lines only.
type ProvinceSignals struct {
	Kind         string   `json:"kind"`
	AirportCode  string   `json:"airport_code,omitempty"`
	Resort       string   `json:"resort,omitempty"`
	AddressLines []string `json:"address_lines"`
}

// ProvinceResult is the classifier's best guess; Province is nil when unresolved
type ProvinceResult struct {
	Province   *string `json:"province"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Resolved reports whether the classifier named a province
func (r *ProvinceResult) Resolved() bool {
	return r != nil && r.Province != nil && *r.Province != ""
}
