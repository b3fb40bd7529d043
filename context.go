package blogguard

import "context"

// contextKey is an unexported type for keys defined in this package.
type contextKey string

const (
	principalContextKey contextKey = "blogguard.principal"
	claimsContextKey    contextKey = "blogguard.claims"
)

// WithPrincipal adds the resolved principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the principal, falling back to Anonymous.
func PrincipalFromContext(ctx context.Context) Principal {
	p, ok := ctx.Value(principalContextKey).(Principal)
	if !ok {
		return Anonymous()
	}
	return p
}

// HasPrincipal reports whether a principal was placed in the context.
func HasPrincipal(ctx context.Context) bool {
	_, ok := ctx.Value(principalContextKey).(Principal)
	return ok
}

// WithClaims adds claims to the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext extracts the claims from the context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// UserIDFromContext extracts the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if p := PrincipalFromContext(ctx); !p.IsAnonymous() {
		return p.ID, true
	}
	if claims, ok := ClaimsFromContext(ctx); ok && claims.UserID != "" {
		return claims.UserID, true
	}
	return "", false
}

// IsAuthenticated checks if there's an authenticated principal in the context.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := UserIDFromContext(ctx)
	return ok
}
