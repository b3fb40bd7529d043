package memory

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/synergy-framework/blogguard/jwt"
)

// Config holds configuration for the in-memory service.
type Config struct {
	JWTSecretKey       string        `validate:"required"`
	JWTAlgorithm       jwt.Algorithm `validate:"required"`
	AccessTokenExpiry  time.Duration `validate:"gt=0"`
	RefreshTokenExpiry time.Duration `validate:"gt=0"`
	JWTIssuer          string
	JWTAudience        string
	BCryptCost         int `validate:"min=4,max=31"`
}

var validate = validator.New()

// DefaultConfig returns a default configuration for development.
func DefaultConfig() Config {
	return Config{
		JWTSecretKey:       "dev-secret-key-change-in-production",
		JWTAlgorithm:       jwt.HS256,
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		JWTIssuer:          "blogguard",
		JWTAudience:        "blogguard-users",
		BCryptCost:         bcrypt.DefaultCost,
	}
}

// Validate validates the service configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("memory config: %w", err)
	}
	return nil
}

// JWT returns the token manager configuration.
func (c Config) JWT() jwt.Config {
	return jwt.Config{
		SecretKey:          c.JWTSecretKey,
		Algorithm:          c.JWTAlgorithm,
		AccessTokenExpiry:  c.AccessTokenExpiry,
		RefreshTokenExpiry: c.RefreshTokenExpiry,
		Issuer:             c.JWTIssuer,
		Audience:           c.JWTAudience,
		ClockSkew:          time.Minute,
	}
}
