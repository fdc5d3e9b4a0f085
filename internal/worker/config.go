// Package worker provides background jobs for Star Seeker.
package worker

import "time"

// PrefetchConfig holds configuration for the cache warming job.
type PrefetchConfig struct {
	// Concurrency is the number of concurrent lookups.
	// Default: 3
	Concurrency int

	// Timeout bounds each lookup.
	// Default: 30 seconds
	Timeout time.Duration

	// Interval is the pause between runs when started with Start.
	// Default: 5 minutes
	Interval time.Duration

	// Gates warms the full gate list.
	Gates bool

	// FavouriteGates warms the details of every favourite gate.
	FavouriteGates bool

	// FavouriteRoutes warms the route search of every favourite route.
	FavouriteRoutes bool
}

// DefaultPrefetchConfig returns the default prefetch configuration.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		Concurrency:     3,
		Timeout:         30 * time.Second,
		Interval:        5 * time.Minute,
		Gates:           true,
		FavouriteGates:  true,
		FavouriteRoutes: true,
	}
}

func (c PrefetchConfig) withDefaults() PrefetchConfig {
	def := DefaultPrefetchConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	return c
}
