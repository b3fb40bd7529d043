package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/rbac"
)

// RoleStore implements rbac.Store over the user_roles table. A user is
// known when a users row exists.
type RoleStore struct {
	pool *pgxpool.Pool
}

func userExists(ctx context.Context, q pgx.Tx, userID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 FOR SHARE)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: user lookup: %w", err)
	}
	if !exists {
		return blogguard.ErrUserNotFound
	}
	return nil
}

func insertRoles(ctx context.Context, tx pgx.Tx, userID string, roles []string) error {
	_, err := tx.Exec(ctx, `
INSERT INTO user_roles (user_id, role)
SELECT $1, unnest($2::text[])
ON CONFLICT DO NOTHING`, userID, roles)
	if err != nil {
		return fmt.Errorf("postgres: insert roles: %w", err)
	}
	return nil
}

// AddUser assigns the initial roles of a user created through Accounts.
func (s *RoleStore) AddUser(ctx context.Context, userID string, roles []string) error {
	return s.SetRoles(ctx, userID, roles)
}

// RemoveUser drops the assignments; deleting the users row does the same.
func (s *RoleStore) RemoveUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("postgres: remove roles: %w", err)
	}
	return nil
}

func (s *RoleStore) AssignRole(ctx context.Context, userID, roleName string) error {
	return WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}
		return insertRoles(ctx, tx, userID, []string{roleName})
	})
}

func (s *RoleStore) RevokeRole(ctx context.Context, userID, roleName string) error {
	return WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, userID, roleName); err != nil {
			return fmt.Errorf("postgres: revoke role: %w", err)
		}
		return nil
	})
}

func (s *RoleStore) SetRoles(ctx context.Context, userID string, roles []string) error {
	return WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return setRoles(ctx, tx, userID, roles)
	})
}

func setRoles(ctx context.Context, tx pgx.Tx, userID string, roles []string) error {
	if err := userExists(ctx, tx, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("postgres: clear roles: %w", err)
	}
	return insertRoles(ctx, tx, userID, roles)
}

// GetUserRoles returns the sorted role names of a user.
func (s *RoleStore) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	var (
		exists bool
		roles  []string
	)
	err := s.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM users WHERE id = $1),
       COALESCE((SELECT array_agg(role ORDER BY role) FROM user_roles WHERE user_id = $1), '{}')`,
		userID).Scan(&exists, &roles)
	if err != nil {
		return nil, fmt.Errorf("postgres: get roles: %w", err)
	}
	if !exists {
		return nil, blogguard.ErrUserNotFound
	}
	return roles, nil
}

var _ rbac.Store = (*RoleStore)(nil)
