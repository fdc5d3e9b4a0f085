// Package resilience wraps calls to the gate network API in a circuit breaker with
// optional retries, and keeps a registry of upstream health for the status endpoint.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// HalfOpenProbes is the number of trial requests let through while half-open.
	// Default: 1
	HalfOpenProbes uint32

	// Window clears the failure counts periodically while the circuit is closed, so old
	// failures do not trip the breaker hours later.
	// Default: 1 minute
	Window time.Duration

	// Cooldown is how long the circuit stays open before probing again.
	// Default: 30 seconds
	Cooldown time.Duration

	// ConsecutiveFailures trips the breaker after that many failures in a row.
	// Default: 5
	ConsecutiveFailures uint32

	// FailureRatio trips the breaker once at least MinRequests were made in the window
	// and this share of them failed.
	// Default: 0.5 with MinRequests 10
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns the breaker settings used for the gate network API.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		HalfOpenProbes:      1,
		Window:              time.Minute,
		Cooldown:            30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	def := DefaultBreakerConfig()
	if c.HalfOpenProbes == 0 {
		c.HalfOpenProbes = def.HalfOpenProbes
	}
	if c.Window == 0 {
		c.Window = def.Window
	}
	if c.Cooldown == 0 {
		c.Cooldown = def.Cooldown
	}
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = def.FailureRatio
	}
	if c.MinRequests == 0 {
		c.MinRequests = def.MinRequests
	}
	return c
}

// ShouldTrip reports whether counts warrant opening the circuit.
func (c BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// countsAsSuccess keeps caller cancellations from counting against the upstream.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func newBreaker[T any](name string, cfg BreakerConfig, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker[T] {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.HalfOpenProbes,
		Interval:      cfg.Window,
		Timeout:       cfg.Cooldown,
		ReadyToTrip:   cfg.ShouldTrip,
		IsSuccessful:  countsAsSuccess,
		OnStateChange: onChange,
	})
}
