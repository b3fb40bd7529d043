// Package rbac stores which roles each user holds. The principal resolver
// reads it on every request, so role changes apply without reissuing tokens.
package rbac

import "context"

// Store defines the persistence interface for role assignments.
//
// GetUserRoles returns blogguard.ErrUserNotFound for a user the store has never
// seen and an empty slice for a known user without assignments.
type Store interface {
	// AddUser registers a user with an initial role set.
	AddUser(ctx context.Context, userID string, roles []string) error
	// RemoveUser forgets the user and all of their assignments.
	RemoveUser(ctx context.Context, userID string) error

	AssignRole(ctx context.Context, userID, roleName string) error
	RevokeRole(ctx context.Context, userID, roleName string) error
	SetRoles(ctx context.Context, userID string, roles []string) error
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
}
