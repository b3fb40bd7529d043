package jwt

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Algorithm represents the signing algorithm for JWT tokens.
type Algorithm string

const (
	// HS256 uses HMAC with SHA-256
	HS256 Algorithm = "HS256"
	// RS256 uses RSA signature with SHA-256
	RS256 Algorithm = "RS256"
)

// Config holds the configuration for JWT token management.
type Config struct {
	// SecretKey is the secret key for HS256
	SecretKey string `validate:"required_if=Algorithm HS256"`

	// PrivateKey is the RSA private key for RS256 (PEM format)
	PrivateKey string `validate:"required_if=Algorithm RS256"`

	// PublicKey is the RSA public key for RS256 (PEM format, optional)
	PublicKey string

	// Algorithm to use for signing (HS256 or RS256)
	Algorithm Algorithm `validate:"required,oneof=HS256 RS256"`

	// Issuer identifies the issuer of the token
	Issuer string `validate:"max=100"`

	// Audience identifies the recipients of the token
	Audience string `validate:"max=100"`

	// AccessTokenExpiry sets the expiration time for access tokens
	AccessTokenExpiry time.Duration `validate:"gt=0"`

	// RefreshTokenExpiry sets the expiration time for refresh tokens
	RefreshTokenExpiry time.Duration `validate:"gt=0"`

	// ClockSkew allows for clock drift between servers
	ClockSkew time.Duration
}

// DefaultConfig returns a default JWT configuration.
func DefaultConfig() Config {
	return Config{
		Algorithm:          HS256,
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		ClockSkew:          5 * time.Minute,
	}
}

// Validate checks the struct tags above. Failures are validator.ValidationErrors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("jwt config: %w", err)
	}
	return nil
}
