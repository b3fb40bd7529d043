// Package blogguard provides the authorization and content-lifecycle core of a
// multi-role blog platform: principal resolution, a table-driven policy engine,
// the post draft/published lifecycle, comment thread invariants and the admin gate.
package blogguard

import (
	"context"
	"time"
)

// Policy decides whether a principal may perform an action on a resource.
// Implementations must be pure and total.
type Policy interface {
	Can(p Principal, action Action, res *Resource) Decision
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(p Principal, action Action, res *Resource) Decision

// Can calls f.
func (f PolicyFunc) Can(p Principal, action Action, res *Resource) Decision {
	return f(p, action, res)
}

// PrincipalResolver turns an opaque bearer credential into a Principal.
// It never fails; an unresolvable credential yields Anonymous().
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) Principal
}

// TokenValidator decodes and verifies a bearer credential.
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// RoleLookup returns the stored role names of a user.
// It returns ErrUserNotFound for unknown users and an empty slice for users with no assignment.
type RoleLookup interface {
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
}

// ViewRecorder receives one event per successful published-post view.
type ViewRecorder interface {
	RecordView(ctx context.Context, postID, viewerID string, at time.Time) error
}

// Authenticator handles credential checks and token management.
type Authenticator interface {
	// Authenticate validates credentials and returns user information
	Authenticate(ctx context.Context, credentials Credentials) (*User, error)

	// GenerateTokens creates new access and refresh tokens for a user
	GenerateTokens(ctx context.Context, userID string) (*TokenPair, error)

	// RefreshToken validates a refresh token and generates new tokens
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)

	// RevokeToken invalidates a token (adds to blacklist)
	RevokeToken(ctx context.Context, token string) error
}

// UserManager provides account management.
type UserManager interface {
	// CreateUser registers a new account; nil roles default to reader
	CreateUser(ctx context.Context, username, email, password string, roles []string) (*User, error)

	// GetUser retrieves a user by ID
	GetUser(ctx context.Context, userID string) (*User, error)

	// ListUsers returns a page of users ordered by creation time
	ListUsers(ctx context.Context, offset, limit int) ([]User, int, error)

	// SetUserRoles replaces the user's role set
	SetUserRoles(ctx context.Context, userID string, roles []string) error

	// DeleteUser deletes a user
	DeleteUser(ctx context.Context, userID string) error

	// ChangePassword changes a user's password
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}
