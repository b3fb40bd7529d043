package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/synergy-framework/blogguard"
)

// Implement Authenticator interface

// Authenticate validates credentials and returns user information.
func (s *Service) Authenticate(ctx context.Context, credentials blogguard.Credentials) (*blogguard.User, error) {
	switch creds := credentials.(type) {
	case blogguard.PasswordCredentials:
		return s.authenticatePassword(ctx, creds)
	case blogguard.TokenCredentials:
		return s.authenticateToken(ctx, creds)
	default:
		return nil, fmt.Errorf("unsupported credential type: %s", credentials.Type())
	}
}

// ValidateToken validates a token and returns the claims. Revoked tokens fail.
func (s *Service) ValidateToken(token string) (*blogguard.Claims, error) {
	if s.isRevoked(token) {
		return nil, blogguard.ErrTokenRevoked
	}
	return s.jwtManager.ValidateToken(token)
}

// RefreshToken validates a refresh token and generates new tokens. The
// presented refresh token is revoked so it can be used once.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*blogguard.TokenPair, error) {
	claims, err := s.ValidateToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	if !claims.IsRefreshToken() {
		return nil, fmt.Errorf("%w: not a refresh token", blogguard.ErrTokenInvalid)
	}

	pair, err := s.GenerateTokens(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	s.revoke(refreshToken)
	return pair, nil
}

// GenerateTokens creates new access and refresh tokens for a user.
func (s *Service) GenerateTokens(ctx context.Context, userID string) (*blogguard.TokenPair, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, blogguard.ErrUserInactive
	}

	return s.jwtManager.GenerateTokens(user.ID, user.Username, user.Roles)
}

// RevokeToken invalidates a token by adding it to the blacklist.
func (s *Service) RevokeToken(_ context.Context, token string) error {
	if _, err := s.jwtManager.ParseToken(token); err != nil {
		return fmt.Errorf("%w: %v", blogguard.ErrTokenInvalid, err)
	}
	s.revoke(token)
	return nil
}

func (s *Service) revoke(token string) {
	// Entries outlive every token the manager can mint.
	ttl := s.config.RefreshTokenExpiry
	if s.config.AccessTokenExpiry > ttl {
		ttl = s.config.AccessTokenExpiry
	}
	now := s.now()

	s.blacklistMu.Lock()
	defer s.blacklistMu.Unlock()
	for t, exp := range s.blacklist {
		if now.After(exp) {
			delete(s.blacklist, t)
		}
	}
	s.blacklist[token] = now.Add(ttl)
}

func (s *Service) isRevoked(token string) bool {
	s.blacklistMu.Lock()
	defer s.blacklistMu.Unlock()
	exp, ok := s.blacklist[token]
	return ok && s.now().Before(exp)
}

// Private authentication helpers

// authenticatePassword validates username/password credentials.
func (s *Service) authenticatePassword(ctx context.Context, creds blogguard.PasswordCredentials) (*blogguard.User, error) {
	s.mu.Lock()

	// Find user by username or email
	var userID string
	var exists bool

	if strings.Contains(creds.Username, "@") {
		userID, exists = s.usersByEmail[strings.ToLower(creds.Username)]
	} else {
		userID, exists = s.usersByName[creds.Username]
	}

	if !exists {
		s.mu.Unlock()
		return nil, blogguard.ErrInvalidCredentials
	}

	acct := s.users[userID]
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(creds.Password)); err != nil {
		s.mu.Unlock()
		return nil, blogguard.ErrInvalidCredentials
	}

	if !acct.user.IsActive {
		s.mu.Unlock()
		return nil, blogguard.ErrUserInactive
	}

	now := s.now().UTC()
	acct.user.LastLoginAt = &now
	s.mu.Unlock()

	return s.GetUser(ctx, userID)
}

// authenticateToken validates token credentials.
func (s *Service) authenticateToken(ctx context.Context, creds blogguard.TokenCredentials) (*blogguard.User, error) {
	claims, err := s.ValidateToken(creds.Token)
	if err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, claims.UserID)
	if errors.Is(err, blogguard.ErrUserNotFound) {
		return nil, blogguard.ErrInvalidCredentials
	}
	return user, err
}
