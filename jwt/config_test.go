package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func TestConfig_Validate(t *testing.T) {
	valid := func(mod func(*Config)) Config {
		c := DefaultConfig()
		c.SecretKey = "blog-secret"
		c.Issuer = "blogguard"
		c.Audience = "blogguard-users"
		mod(&c)
		return c
	}

	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{name: "defaults with secret", cfg: valid(func(*Config) {})},
		{name: "rs256 derives public key", cfg: valid(func(c *Config) { c.Algorithm, c.SecretKey, c.PrivateKey = RS256, "", "pem" })},
		{name: "no algorithm", cfg: valid(func(c *Config) { c.Algorithm = "" }), field: "Algorithm"},
		{name: "none algorithm", cfg: valid(func(c *Config) { c.Algorithm = "none" }), field: "Algorithm"},
		{name: "hs256 without secret", cfg: valid(func(c *Config) { c.SecretKey = "" }), field: "SecretKey"},
		{name: "rs256 without key", cfg: valid(func(c *Config) { c.Algorithm = RS256 }), field: "PrivateKey"},
		{name: "long issuer", cfg: valid(func(c *Config) { c.Issuer = strings.Repeat("i", 101) }), field: "Issuer"},
		{name: "long audience", cfg: valid(func(c *Config) { c.Audience = strings.Repeat("a", 101) }), field: "Audience"},
		{name: "negative access expiry", cfg: valid(func(c *Config) { c.AccessTokenExpiry = -time.Minute }), field: "AccessTokenExpiry"},
		{name: "zero refresh expiry", cfg: valid(func(c *Config) { c.RefreshTokenExpiry = 0 }), field: "RefreshTokenExpiry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) || verrs[0].Field() != tt.field {
				t.Fatalf("want failure on %s, got %v", tt.field, err)
			}
		})
	}
}
