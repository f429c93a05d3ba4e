package constants

type CachePrefix string

const CachePrefixProvince CachePrefix = "PROVINCE_"

// Upstream search index path segments
const (
	SearchIndexLastAction = "last_action"
	SearchIndexArrivals   = "arrivals"
	SearchIndexDepartures = "departures"
)

// UpstreamDateLayout is the date-time format the upstream accepts in search paths
const UpstreamDateLayout = "2006-01-02T15:04:05"

// RawDataVersion is stamped into every raw_data envelope
const RawDataVersion = 1
