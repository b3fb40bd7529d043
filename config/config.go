// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/synergy-framework/blogguard/jwt"
	"github.com/synergy-framework/blogguard/memory"
)

// Config holds runtime configuration for the server.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":9090"`
	AppReadTimeout  time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	RequestTimeout  time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// PGDSN selects the PostgreSQL stores; empty keeps everything in memory.
	PGDSN string `envconfig:"PG_DSN"`

	// RedisAddr selects the Redis analytics store; empty keeps counters in memory.
	RedisAddr      string `envconfig:"REDIS_ADDR"`
	AnalyticsAsync bool   `envconfig:"ANALYTICS_ASYNC" default:"false"`

	JWTSecret          string        `envconfig:"JWT_SECRET" required:"true"`
	JWTAlgorithm       string        `envconfig:"JWT_ALGORITHM" default:"HS256"`
	JWTIssuer          string        `envconfig:"JWT_ISSUER" default:"blogguard"`
	JWTAudience        string        `envconfig:"JWT_AUDIENCE" default:"blogguard-users"`
	AccessTokenExpiry  time.Duration `envconfig:"ACCESS_TOKEN_EXPIRY" default:"15m"`
	RefreshTokenExpiry time.Duration `envconfig:"REFRESH_TOKEN_EXPIRY" default:"168h"`
	BCryptCost         int           `envconfig:"BCRYPT_COST" default:"10"`

	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	ViewRecordTimeout  time.Duration `envconfig:"VIEW_RECORD_TIMEOUT" default:"2s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET must be provided")
	}
	if alg := jwt.Algorithm(c.JWTAlgorithm); alg != jwt.HS256 {
		return fmt.Errorf("config: JWT_ALGORITHM %q not supported, only HS256 takes a shared secret", c.JWTAlgorithm)
	}
	jc := c.JWT()
	if err := jc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("config: RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.AppAddr == "" {
		return errors.New("config: APP_ADDR must be provided")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// IsProduction returns true when the server runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// JWT returns the token manager configuration.
func (c *Config) JWT() jwt.Config {
	return jwt.Config{
		SecretKey:          c.JWTSecret,
		Algorithm:          jwt.Algorithm(c.JWTAlgorithm),
		Issuer:             c.JWTIssuer,
		Audience:           c.JWTAudience,
		AccessTokenExpiry:  c.AccessTokenExpiry,
		RefreshTokenExpiry: c.RefreshTokenExpiry,
		ClockSkew:          30 * time.Second,
	}
}

// Memory returns the in-memory store configuration.
func (c *Config) Memory() memory.Config {
	return memory.Config{
		JWTSecretKey:       c.JWTSecret,
		JWTAlgorithm:       jwt.Algorithm(c.JWTAlgorithm),
		AccessTokenExpiry:  c.AccessTokenExpiry,
		RefreshTokenExpiry: c.RefreshTokenExpiry,
		JWTIssuer:          c.JWTIssuer,
		JWTAudience:        c.JWTAudience,
		BCryptCost:         c.BCryptCost,
	}
}
