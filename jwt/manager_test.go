package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"
)

func newHS256(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		SecretKey:          "test-secret",
		Algorithm:          HS256,
		AccessTokenExpiry:  time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "test-issuer",
		Audience:           "test-aud",
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func TestManager_HS256(t *testing.T) {
	m := newHS256(t)

	tests := []struct {
		name    string
		userID  string
		roles   []string
		invalid bool
	}{
		{name: "admin", userID: "u1", roles: []string{"admin"}},
		{name: "writer and reader", userID: "u2", roles: []string{"writer", "reader"}},
		{name: "no roles", userID: "u3"},
		{name: "invalid token string", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.invalid {
				if _, err := m.ValidateToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("expected ErrInvalidToken, got %v", err)
				}
				return
			}

			pair, err := m.GenerateTokens(tt.userID, tt.userID+"-name", tt.roles)
			if err != nil {
				t.Fatalf("GenerateTokens error: %v", err)
			}
			if pair.AccessToken == "" || pair.RefreshToken == "" || pair.TokenType != "Bearer" {
				t.Fatalf("unexpected pair: %+v", pair)
			}

			claims, err := m.ValidateAccessToken(pair.AccessToken)
			if err != nil {
				t.Fatalf("ValidateAccessToken error: %v", err)
			}
			if claims.UserID != tt.userID || claims.Username != tt.userID+"-name" {
				t.Fatalf("unexpected claims: %+v", claims)
			}
			if len(claims.Roles) != len(tt.roles) {
				t.Fatalf("roles: got %v want %v", claims.Roles, tt.roles)
			}

			refresh, err := m.ValidateToken(pair.RefreshToken)
			if err != nil || !refresh.IsRefreshToken() {
				t.Fatalf("refresh token: %v %+v", err, refresh)
			}
			if _, err := m.ValidateAccessToken(pair.RefreshToken); !errors.Is(err, ErrWrongTokenType) {
				t.Fatalf("refresh accepted as access: %v", err)
			}

			parsed, err := m.ParseToken(pair.AccessToken)
			if err != nil || parsed.TokenID == "" || parsed.TokenID == refresh.TokenID {
				t.Fatalf("ParseToken failed: %v, claims=%+v", err, parsed)
			}
		})
	}
}

func TestManager_RejectsForeignSignature(t *testing.T) {
	m := newHS256(t)
	other, err := NewManager(Config{
		SecretKey:          "other-secret",
		Algorithm:          HS256,
		AccessTokenExpiry:  time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "test-issuer",
		Audience:           "test-aud",
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	pair, err := other.GenerateTokens("u1", "", nil)
	if err != nil {
		t.Fatalf("GenerateTokens error: %v", err)
	}
	if _, err := m.ValidateToken(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature failure, got %v", err)
	}
}

func TestManager_RS256_GenerateAndValidate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pkcs1 := x509.MarshalPKCS1PrivateKey(key)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: pkcs1})

	m, err := NewManager(Config{
		PrivateKey:         string(pemBytes),
		Algorithm:          RS256,
		AccessTokenExpiry:  time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "iss",
		Audience:           "aud",
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	pair, err := m.GenerateTokens("rs-user", "", []string{"reader"})
	if err != nil {
		t.Fatalf("GenerateTokens error: %v", err)
	}

	claims, err := m.ValidateToken(pair.AccessToken)
	if err != nil || claims.UserID != "rs-user" || !claims.IsAccessToken() {
		t.Fatalf("validate failed: %v %+v", err, claims)
	}
}

func TestManager_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "missing algorithm",
			cfg: Config{
				SecretKey:          "test-secret",
				AccessTokenExpiry:  time.Minute,
				RefreshTokenExpiry: time.Hour,
			},
		},
		{
			name: "HS256 missing secret key",
			cfg: Config{
				Algorithm:          HS256,
				AccessTokenExpiry:  time.Minute,
				RefreshTokenExpiry: time.Hour,
			},
		},
		{
			name: "RS256 unparseable private key",
			cfg: Config{
				Algorithm:          RS256,
				PrivateKey:         "garbage",
				AccessTokenExpiry:  time.Minute,
				RefreshTokenExpiry: time.Hour,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg); err == nil {
				t.Fatalf("expected error for invalid config")
			}
		})
	}
}

func TestManager_TokenExpiry(t *testing.T) {
	m := newHS256(t)
	base := time.Now()
	m.now = func() time.Time { return base }

	pair, err := m.GenerateTokens("expiry-user", "", nil)
	if err != nil {
		t.Fatalf("GenerateTokens error: %v", err)
	}
	if _, err := m.ValidateToken(pair.AccessToken); err != nil {
		t.Fatalf("token should be valid immediately: %v", err)
	}

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := m.ValidateToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
