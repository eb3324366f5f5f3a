package config

import (
	"fmt"
	"time"
)

// Cache backend identifiers.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig configures the search result cache.
type CacheConfig struct {
	// Backend selects where results are cached. "memory" keeps them
	// in-process; "redis" shares them across instances.
	Backend string `envconfig:"BACKEND" default:"memory" validate:"oneof=memory redis"`

	// TTL bounds entry staleness when no change event arrives.
	TTL time.Duration `envconfig:"TTL" default:"5m" validate:"min=1s"`

	// Capacity caps the number of entries held by the memory backend.
	Capacity int `envconfig:"CAPACITY" default:"10000" validate:"min=1"`

	// TimeBucket controls how coarsely the evaluation time is folded into
	// cache keys. Larger buckets raise the hit rate but delay the effect of
	// date-window boundaries.
	TimeBucket time.Duration `envconfig:"TIME_BUCKET" default:"1m" validate:"min=1s"`
}

// Validate checks CacheConfig fields for correctness.
func (c *CacheConfig) Validate() error {
	if c.Backend != CacheBackendMemory && c.Backend != CacheBackendRedis {
		return fmt.Errorf("cache backend must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.Backend)
	}
	if c.TTL < c.TimeBucket {
		return fmt.Errorf("cache TTL (%s) cannot be shorter than the time bucket (%s)", c.TTL, c.TimeBucket)
	}
	return nil
}
