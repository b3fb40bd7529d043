package http

import (
	"errors"
	"time"
)

// Config holds HTTP boundary configuration.
type Config struct {
	// TokenHeader is the header name for token extraction (default: "Authorization")
	TokenHeader string

	// TokenPrefix is the prefix for token extraction (default: "Bearer ")
	TokenPrefix string

	// SkipPaths bypass principal resolution (e.g., ["/healthz", "/metrics"])
	SkipPaths []string

	// RateLimit is the number of requests per minute per caller; 0 disables limiting
	RateLimit int

	// Production enables HTTPS redirects and HSTS
	Production bool

	// MaxBodyBytes bounds request bodies
	MaxBodyBytes int64

	// RequestTimeout bounds each request
	RequestTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		TokenHeader:    "Authorization",
		TokenPrefix:    "Bearer ",
		SkipPaths:      []string{"/healthz", "/metrics"},
		RateLimit:      120,
		MaxBodyBytes:   1 << 20,
		RequestTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.TokenHeader == "" {
		return errors.New("token header is required")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}
	return nil
}
