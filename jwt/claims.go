package jwt

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/synergy-framework/blogguard"
)

// jwtClaims wraps blogguard.Claims for JWT compatibility.
type jwtClaims struct {
	jwt.RegisteredClaims
	UserID    string   `json:"user_id,omitempty"`
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
}

// newJWTClaims creates jwt claims from blogguard claims.
func newJWTClaims(claims *blogguard.Claims) *jwtClaims {
	c := &jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    claims.Issuer,
			Subject:   claims.Subject,
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			NotBefore: jwt.NewNumericDate(claims.NotBefore),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ID:        claims.TokenID,
		},
		UserID:    claims.UserID,
		Username:  claims.Username,
		Roles:     claims.Roles,
		TokenType: claims.TokenType,
	}
	if claims.Audience != "" {
		c.Audience = jwt.ClaimStrings{claims.Audience}
	}
	return c
}

// toClaims converts jwt claims to blogguard claims.
func (j *jwtClaims) toClaims() *blogguard.Claims {
	claims := &blogguard.Claims{
		UserID:    j.UserID,
		Username:  j.Username,
		Roles:     j.Roles,
		TokenType: j.TokenType,
		TokenID:   j.ID,
		Issuer:    j.Issuer,
		Subject:   j.Subject,
	}

	if j.ExpiresAt != nil {
		claims.ExpiresAt = j.ExpiresAt.Time
	}
	if j.NotBefore != nil {
		claims.NotBefore = j.NotBefore.Time
	}
	if j.IssuedAt != nil {
		claims.IssuedAt = j.IssuedAt.Time
	}
	if len(j.Audience) > 0 {
		claims.Audience = j.Audience[0]
	}
	// Tokens minted elsewhere may only carry "sub".
	if claims.UserID == "" {
		claims.UserID = j.Subject
	}

	return claims
}
