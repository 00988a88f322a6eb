package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration
type Config struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`
	MaxRetries        int     `json:"maxRetries"`
	InitialBackoffMs  int     `json:"initialBackoffMs"`
	MaxBackoffMs      int     `json:"maxBackoffMs"`
}

// DefaultConfig returns the default rate limit configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             1,
		MaxRetries:        3,
		InitialBackoffMs:  200,
		MaxBackoffMs:      10000,
	}
}

// WithOverrides returns the default config with the given overrides
func WithOverrides(overrides PartialConfig) Config {
	cfg := DefaultConfig()
	if overrides.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *overrides.RequestsPerSecond
	}
	if overrides.Burst != nil {
		cfg.Burst = *overrides.Burst
	}
	if overrides.MaxRetries != nil {
		cfg.MaxRetries = *overrides.MaxRetries
	}
	if overrides.InitialBackoffMs != nil {
		cfg.InitialBackoffMs = *overrides.InitialBackoffMs
	}
	if overrides.MaxBackoffMs != nil {
		cfg.MaxBackoffMs = *overrides.MaxBackoffMs
	}
	return cfg
}

// PartialConfig allows partial configuration overrides
type PartialConfig struct {
	RequestsPerSecond *float64 `json:"requestsPerSecond,omitempty"`
	Burst             *int     `json:"burst,omitempty"`
	MaxRetries        *int     `json:"maxRetries,omitempty"`
	InitialBackoffMs  *int     `json:"initialBackoffMs,omitempty"`
	MaxBackoffMs      *int     `json:"maxBackoffMs,omitempty"`
}

// RateLimiter spaces outgoing requests with a token bucket
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter with the given config.
// A non-positive RequestsPerSecond disables limiting.
func NewRateLimiter(config Config) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(limitFor(config), burstFor(config)),
	}
}

// Wait blocks until a request may be sent or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

func limitFor(config Config) rate.Limit {
	if config.RequestsPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(config.RequestsPerSecond)
}

func burstFor(config Config) int {
	if config.Burst < 1 {
		return 1
	}
	return config.Burst
}
