package requests

// HorizonSyncRequest optionally overrides how far ahead the horizon strategy looks
type HorizonSyncRequest struct {
	DaysAhead int `json:"days_ahead,omitempty"`
}

// RangeSyncRequest asks for an explicit-range sync; dates are YYYY-MM-DD
type RangeSyncRequest struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

// BackfillRequest tunes one backfill pass; zero values fall back to configuration
type BackfillRequest struct {
	BatchSize int `json:"batch_size,omitempty"`
	DaysAhead int `json:"days_ahead,omitempty"`
}
