package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/jwt"
	"github.com/synergy-framework/blogguard/rbac"
)

const (
	userColumns = `id, username, email, is_active, created_at, updated_at, last_login_at`

	// ValidateToken has no caller context; revocation checks are bounded by this.
	revocationLookupTimeout = 2 * time.Second
)

// Accounts implements the account, credential and token operations with
// users, roles and the token blacklist kept in PostgreSQL.
type Accounts struct {
	pool   *pgxpool.Pool
	roles  rbac.Store
	tokens *jwt.Manager
	cost   int
	now    func() time.Time
}

// UseRoles routes role reads and writes through store, typically an
// rbac.Cached over this package's RoleStore.
func (a *Accounts) UseRoles(store rbac.Store) {
	a.roles = store
}

// NewAccounts creates an account service. bcryptCost zero means bcrypt.DefaultCost.
func NewAccounts(pool *pgxpool.Pool, tokens *jwt.Manager, bcryptCost int) *Accounts {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Accounts{
		pool:   pool,
		roles:  &RoleStore{pool: pool},
		tokens: tokens,
		cost:   bcryptCost,
		now:    time.Now,
	}
}

func scanUser(row scanner) (blogguard.User, error) {
	var u blogguard.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	return u, err
}

// CreateUser registers an account. Nil roles default to reader.
func (a *Accounts) CreateUser(ctx context.Context, username, email, password string, roles []string) (*blogguard.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(roles) == 0 {
		roles = []string{blogguard.RoleReader.String()}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := a.now().UTC()
	id := uuid.NewString()
	err = WithTx(ctx, a.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO users (id, username, email, password_hash, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, TRUE, $5, $5)`, id, username, email, hash, now)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username or email already taken", blogguard.ErrUserExists)
		}
		if err != nil {
			return fmt.Errorf("postgres: create user: %w", err)
		}
		return setRoles(ctx, tx, id, roles)
	})
	if err != nil {
		return nil, err
	}
	return a.GetUser(ctx, id)
}

// GetUser retrieves a user with their roles.
func (a *Accounts) GetUser(ctx context.Context, userID string) (*blogguard.User, error) {
	return a.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

// GetUserByUsername retrieves a user by username.
func (a *Accounts) GetUserByUsername(ctx context.Context, username string) (*blogguard.User, error) {
	return a.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (a *Accounts) getUser(ctx context.Context, query string, arg string) (*blogguard.User, error) {
	u, err := scanUser(a.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, blogguard.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get user: %w", err)
	}
	if u.Roles, err = a.roles.GetUserRoles(ctx, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns a page of users ordered by creation time and the total count.
func (a *Accounts) ListUsers(ctx context.Context, offset, limit int) ([]blogguard.User, int, error) {
	var total int
	if err := a.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count users: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id OFFSET $1`
	args := []any{offset}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list users: %w", err)
	}
	users := make([]blogguard.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("postgres: scan user: %w", err)
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: list users: %w", err)
	}

	for i := range users {
		if users[i].Roles, err = a.roles.GetUserRoles(ctx, users[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

// SetUserRoles replaces the role set of a user.
func (a *Accounts) SetUserRoles(ctx context.Context, userID string, roles []string) error {
	return a.roles.SetRoles(ctx, userID, roles)
}

// DeleteUser deletes a user; role assignments cascade.
func (a *Accounts) DeleteUser(ctx context.Context, userID string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("postgres: delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return blogguard.ErrUserNotFound
	}
	// lets a caching role store drop its entry
	return a.roles.RemoveUser(ctx, userID)
}

// ChangePassword replaces the password after checking the old one.
func (a *Accounts) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return WithTx(ctx, a.pool, func(tx pgx.Tx) error {
		var hash []byte
		err := tx.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&hash)
		if errors.Is(err, pgx.ErrNoRows) {
			return blogguard.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: lock user: %w", err)
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(oldPassword)); err != nil {
			return blogguard.ErrInvalidCredentials
		}

		next, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.cost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, next, a.now().UTC())
		if err != nil {
			return fmt.Errorf("postgres: update password: %w", err)
		}
		return nil
	})
}

// Authenticate validates credentials and returns user information.
func (a *Accounts) Authenticate(ctx context.Context, credentials blogguard.Credentials) (*blogguard.User, error) {
	switch creds := credentials.(type) {
	case blogguard.PasswordCredentials:
		return a.authenticatePassword(ctx, creds)
	case blogguard.TokenCredentials:
		claims, err := a.ValidateToken(creds.Token)
		if err != nil {
			return nil, err
		}
		user, err := a.GetUser(ctx, claims.UserID)
		if errors.Is(err, blogguard.ErrUserNotFound) {
			return nil, blogguard.ErrInvalidCredentials
		}
		return user, err
	default:
		return nil, fmt.Errorf("unsupported credential type: %s", credentials.Type())
	}
}

func (a *Accounts) authenticatePassword(ctx context.Context, creds blogguard.PasswordCredentials) (*blogguard.User, error) {
	column, login := "username", creds.Username
	if strings.Contains(login, "@") {
		column, login = "email", strings.ToLower(login)
	}

	var (
		id     string
		hash   []byte
		active bool
	)
	err := a.pool.QueryRow(ctx, `SELECT id, password_hash, is_active FROM users WHERE `+column+` = $1`, login).Scan(&id, &hash, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, blogguard.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: authenticate: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)); err != nil {
		return nil, blogguard.ErrInvalidCredentials
	}
	if !active {
		return nil, blogguard.ErrUserInactive
	}

	if _, err := a.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, a.now().UTC()); err != nil {
		return nil, fmt.Errorf("postgres: record login: %w", err)
	}
	return a.GetUser(ctx, id)
}

// GenerateTokens creates new access and refresh tokens for an active user.
func (a *Accounts) GenerateTokens(ctx context.Context, userID string) (*blogguard.TokenPair, error) {
	user, err := a.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, blogguard.ErrUserInactive
	}
	return a.tokens.GenerateTokens(user.ID, user.Username, user.Roles)
}

// ValidateToken validates a token and returns the claims. Revoked tokens fail.
func (a *Accounts) ValidateToken(token string) (*blogguard.Claims, error) {
	claims, err := a.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), revocationLookupTimeout)
	defer cancel()
	var revoked bool
	err = a.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_sha = $1 AND expires_at > now())`,
		tokenDigest(token)).Scan(&revoked)
	if err != nil {
		return nil, fmt.Errorf("postgres: revocation lookup: %w", err)
	}
	if revoked {
		return nil, blogguard.ErrTokenRevoked
	}
	return claims, nil
}

// RefreshToken exchanges a refresh token for a new pair. The presented token
// is revoked in the same step, so it works once.
func (a *Accounts) RefreshToken(ctx context.Context, refreshToken string) (*blogguard.TokenPair, error) {
	claims, err := a.ValidateToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	if !claims.IsRefreshToken() {
		return nil, fmt.Errorf("%w: not a refresh token", blogguard.ErrTokenInvalid)
	}

	first, err := a.revoke(ctx, refreshToken, claims.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, blogguard.ErrTokenRevoked
	}
	return a.GenerateTokens(ctx, claims.UserID)
}

// RevokeToken blacklists a token until it would have expired.
func (a *Accounts) RevokeToken(ctx context.Context, token string) error {
	claims, err := a.tokens.ParseToken(token)
	if err != nil {
		return fmt.Errorf("%w: %v", blogguard.ErrTokenInvalid, err)
	}
	_, err = a.revoke(ctx, token, claims.ExpiresAt)
	return err
}

// revoke reports whether this call added the blacklist entry.
func (a *Accounts) revoke(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	if expiresAt.IsZero() {
		expiresAt = a.now().Add(24 * time.Hour)
	}
	var first bool
	err := WithTx(ctx, a.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= now()`); err != nil {
			return fmt.Errorf("postgres: purge revoked: %w", err)
		}
		tag, err := tx.Exec(ctx, `INSERT INTO revoked_tokens (token_sha, expires_at) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			tokenDigest(token), expiresAt)
		if err != nil {
			return fmt.Errorf("postgres: revoke token: %w", err)
		}
		first = tag.RowsAffected() == 1
		return nil
	})
	return first, err
}

// tokenDigest keeps raw bearer tokens out of the database.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var (
	_ blogguard.Authenticator  = (*Accounts)(nil)
	_ blogguard.UserManager    = (*Accounts)(nil)
	_ blogguard.TokenValidator = (*Accounts)(nil)
)
