package common

import (
	"encoding/json"
	"fmt"
	"time"
)

// CacheInterface defines the contract for cache implementations
type CacheInterface interface {
	// Set stores a value in cache with the given key and duration
	Set(key string, value interface{}, duration time.Duration)

	// Get retrieves a value from cache by key
	// Returns the value and true if found, nil and false otherwise
	Get(key string) (interface{}, bool)

	// Delete removes a value from cache by key
	Delete(key string)

	// Close closes any underlying connections (for Redis, etc.)
	Close() error
}

// DecodeCached copies a cached value into out.
// The in-memory cache hands back the stored value, Redis hands back generic JSON,
// so both are normalised through a JSON round trip.
func DecodeCached(value interface{}, out any) error {
	if value == nil {
		return fmt.Errorf("cache: nil value")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: re-encode value: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cache: decode value: %w", err)
	}
	return nil
}
