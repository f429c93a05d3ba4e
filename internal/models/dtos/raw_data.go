package dtos

import "encoding/json"

// RawDataEnvelope is stored verbatim in bookings.raw_data and never read back by reconciliation
type RawDataEnvelope struct {
	Version int             `json:"version"`
	Search  json.RawMessage `json:"search"`
	Detail  json.RawMessage `json:"detail"`
}
