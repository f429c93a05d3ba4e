package common

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FlexString accepts strings, numbers, booleans and null from upstream payloads.
// Empty objects and arrays (the upstream's rendering of blank XML nodes) decode to "".
type FlexString string

func (fs *FlexString) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*fs = ""
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*fs = FlexString(strings.TrimSpace(s))
	case '{', '[':
		*fs = ""
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*fs = FlexString(strconv.FormatBool(v))
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*fs = FlexString(n.String())
	}
	return nil
}

// String returns the trimmed value
func (fs FlexString) String() string {
	return string(fs)
}

// IsEmpty reports whether the upstream sent no value
func (fs FlexString) IsEmpty() bool {
	return strings.TrimSpace(string(fs)) == ""
}

// Int parses the value as an integer; ok is false when absent or not numeric
func (fs FlexString) Int() (int, bool) {
	if fs.IsEmpty() {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(fs)), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// upstreamTimeLayouts are tried in order; the upstream is not consistent between endpoints
var upstreamTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
}

// Time parses the value as an upstream date-time in UTC; nil when absent or unparseable
func (fs FlexString) Time() *time.Time {
	s := strings.TrimSpace(string(fs))
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return nil
	}
	for _, layout := range upstreamTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
