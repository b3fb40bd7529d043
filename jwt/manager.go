// Package jwt issues and verifies the bearer tokens that the principal
// resolver decodes.
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/synergy-framework/blogguard"
)

// Manager handles JWT token operations.
type Manager struct {
	config     Config
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	now        func() time.Time
}

// NewManager creates a new JWT manager with the given configuration.
func NewManager(config Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	manager := &Manager{config: config, now: time.Now}

	if config.Algorithm == RS256 {
		privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(config.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
		}
		manager.privateKey = privateKey

		if config.PublicKey != "" {
			publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(config.PublicKey))
			if err != nil {
				return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
			}
			manager.publicKey = publicKey
		} else {
			manager.publicKey = &privateKey.PublicKey
		}
	}

	return manager, nil
}

// GenerateTokens creates both access and refresh tokens for a user.
// Role names are embedded as a hint; the resolver prefers the role store when one is configured.
func (m *Manager) GenerateTokens(userID, username string, roles []string) (*blogguard.TokenPair, error) {
	now := m.now()

	accessClaims := &blogguard.Claims{
		UserID:    userID,
		Username:  username,
		Roles:     roles,
		TokenType: "access",
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.config.AccessTokenExpiry),
		NotBefore: now,
		Issuer:    m.config.Issuer,
		Audience:  m.config.Audience,
		Subject:   userID,
	}

	accessToken, err := m.generateToken(accessClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshClaims := &blogguard.Claims{
		UserID:    userID,
		TokenType: "refresh",
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.config.RefreshTokenExpiry),
		NotBefore: now,
		Issuer:    m.config.Issuer,
		Audience:  m.config.Audience,
		Subject:   userID,
	}

	refreshToken, err := m.generateToken(refreshClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &blogguard.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (m *Manager) ValidateToken(tokenString string) (*blogguard.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(m.config.ClockSkew),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(m.config.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, m.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, fmt.Errorf("%w: %v", ErrTokenNotYetValid, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims.toClaims(), nil
}

// ValidateAccessToken validates the token and requires it to be an access token.
func (m *Manager) ValidateAccessToken(tokenString string) (*blogguard.Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "" && !claims.IsAccessToken() {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ParseToken parses a JWT token without validation (useful for extracting claims from expired tokens).
func (m *Manager) ParseToken(tokenString string) (*blogguard.Claims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &jwtClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims.toClaims(), nil
}

// generateToken creates a JWT token with the given claims.
func (m *Manager) generateToken(claims *blogguard.Claims) (string, error) {
	var token *jwt.Token
	var signingKey interface{}
	switch m.config.Algorithm {
	case HS256:
		token = jwt.NewWithClaims(jwt.SigningMethodHS256, newJWTClaims(claims))
		signingKey = []byte(m.config.SecretKey)
	case RS256:
		token = jwt.NewWithClaims(jwt.SigningMethodRS256, newJWTClaims(claims))
		signingKey = m.privateKey
	default:
		return "", fmt.Errorf("%w: %s", errUnsupportedAlgorithm, m.config.Algorithm)
	}

	tokenString, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// keyFunc returns the key for token validation.
func (m *Manager) keyFunc(token *jwt.Token) (interface{}, error) {
	switch m.config.Algorithm {
	case HS256:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.SecretKey), nil
	case RS256:
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedAlgorithm, m.config.Algorithm)
	}
}
