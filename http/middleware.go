package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/synergy-framework/blogguard"
)

// Middleware resolves bearer credentials into principals.
type Middleware struct {
	resolver blogguard.PrincipalResolver
	config   Config
}

// claimsResolver is implemented by resolvers that also expose decoded claims.
type claimsResolver interface {
	ResolveClaims(ctx context.Context, token string) (blogguard.Principal, *blogguard.Claims)
}

// NewMiddleware creates a middleware instance with the given resolver and config.
func NewMiddleware(resolver blogguard.PrincipalResolver, config ...Config) *Middleware {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &Middleware{resolver: resolver, config: cfg}
}

// ResolvePrincipal places the request's principal in the context. A
// missing, malformed or rejected credential yields the anonymous principal;
// the request always continues.
func (m *Middleware) ResolvePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.shouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		p := blogguard.Anonymous()
		if token, err := m.extractToken(r); err == nil && m.resolver != nil {
			if cr, ok := m.resolver.(claimsResolver); ok {
				var claims *blogguard.Claims
				p, claims = cr.ResolveClaims(ctx, token)
				if claims != nil && !p.IsAnonymous() {
					ctx = blogguard.WithClaims(ctx, claims)
				}
			} else {
				p = m.resolver.Resolve(ctx, token)
			}
		}
		next.ServeHTTP(w, r.WithContext(blogguard.WithPrincipal(ctx, p)))
	})
}

// RequireAuthenticated rejects anonymous requests with 401.
// Must be used after ResolvePrincipal.
func (m *Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if blogguard.PrincipalFromContext(r.Context()).IsAnonymous() {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects principals whose highest role is below role: 401 for
// anonymous callers, 403 otherwise. Must be used after ResolvePrincipal.
func (m *Middleware) RequireRole(role blogguard.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := blogguard.PrincipalFromContext(r.Context())
			if p.Highest().AtLeast(role) {
				next.ServeHTTP(w, r)
				return
			}
			if p.IsAnonymous() {
				unauthorized(w)
				return
			}
			forbidden(w)
		})
	}
}

// extractToken extracts the authentication token from the request.
func (m *Middleware) extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get(m.config.TokenHeader)
	if authHeader == "" {
		return "", ErrMissingToken
	}

	if !strings.HasPrefix(authHeader, m.config.TokenPrefix) {
		return "", ErrInvalidTokenFormat
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, m.config.TokenPrefix))
	if token == "" {
		return "", ErrMissingToken
	}

	return token, nil
}

// shouldSkip checks if the path should skip principal resolution.
func (m *Middleware) shouldSkip(path string) bool {
	for _, skipPath := range m.config.SkipPaths {
		if path == skipPath {
			return true
		}
	}
	return false
}
