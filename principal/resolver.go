// Package principal maps bearer credentials to authorization principals.
package principal

import (
	"context"
	"errors"
	"log/slog"

	"github.com/synergy-framework/blogguard"
)

// Resolver turns a bearer token into a Principal. Token validity comes from
// the validator; roles come from the role store when one is configured, with
// the token's own role claim as a fallback.
type Resolver struct {
	validator blogguard.TokenValidator
	roles     blogguard.RoleLookup
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRoleLookup makes the resolver read roles from the store instead of trusting the token.
func WithRoleLookup(lookup blogguard.RoleLookup) Option {
	return func(r *Resolver) { r.roles = lookup }
}

// WithLogger sets the logger used for collaborator failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver builds a Resolver.
func NewResolver(validator blogguard.TokenValidator, opts ...Option) *Resolver {
	r := &Resolver{validator: validator, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails. Missing, malformed, expired or revoked tokens and
// unknown users all resolve to the anonymous principal.
func (r *Resolver) Resolve(ctx context.Context, token string) blogguard.Principal {
	p, _ := r.ResolveClaims(ctx, token)
	return p
}

// ResolveClaims is Resolve that also returns the decoded claims when the token was valid.
func (r *Resolver) ResolveClaims(ctx context.Context, token string) (blogguard.Principal, *blogguard.Claims) {
	if token == "" || r.validator == nil {
		return blogguard.Anonymous(), nil
	}

	claims, err := r.validator.ValidateToken(token)
	if err != nil || claims == nil || claims.UserID == "" {
		r.logger.DebugContext(ctx, "principal: token rejected", slog.Any("error", err))
		return blogguard.Anonymous(), nil
	}
	if claims.TokenType != "" && !claims.IsAccessToken() {
		r.logger.DebugContext(ctx, "principal: non-access token presented", slog.String("type", claims.TokenType))
		return blogguard.Anonymous(), nil
	}

	names := claims.Roles
	if r.roles != nil {
		stored, err := r.roles.GetUserRoles(ctx, claims.UserID)
		switch {
		case errors.Is(err, blogguard.ErrUserNotFound):
			return blogguard.Anonymous(), nil
		case err != nil:
			// token roles may predate a demotion; grant only the floor
			r.logger.WarnContext(ctx, "principal: role lookup failed, resolving as reader",
				slog.String("user_id", claims.UserID), slog.Any("error", err))
			names = nil
		default:
			names = stored
		}
	}

	roles := blogguard.ParseRoles(names)
	// Anonymous is never a stored role for an identified user.
	filtered := roles[:0]
	for _, role := range roles {
		if role != blogguard.RoleAnonymous {
			filtered = append(filtered, role)
		}
	}
	if len(filtered) == 0 {
		filtered = []blogguard.Role{blogguard.RoleReader}
	}

	return blogguard.Principal{ID: claims.UserID, Roles: filtered}, claims
}

var _ blogguard.PrincipalResolver = (*Resolver)(nil)
