package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/synergy-framework/blogguard"
)

// Implement UserManager interface

// CreateUser creates a new user with the given details. Nil roles default to reader.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, roles []string) (*blogguard.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(roles) == 0 {
		roles = []string{blogguard.RoleReader.String()}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.usersByName[username]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: username '%s' already exists", blogguard.ErrUserExists, username)
	}
	if _, exists := s.usersByEmail[email]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: email '%s' already exists", blogguard.ErrUserExists, email)
	}

	now := s.now().UTC()
	userID := uuid.NewString()
	s.users[userID] = &account{
		user: blogguard.User{
			ID:        userID,
			Username:  username,
			Email:     email,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		hash: hashedPassword,
	}
	s.usersByName[username] = userID
	s.usersByEmail[email] = userID
	s.mu.Unlock()

	if err := s.roles.AddUser(ctx, userID, roles); err != nil {
		return nil, fmt.Errorf("assign roles: %w", err)
	}
	return s.GetUser(ctx, userID)
}

// GetUser retrieves a user by ID, with roles from the role store.
func (s *Service) GetUser(ctx context.Context, userID string) (*blogguard.User, error) {
	s.mu.RLock()
	acct, exists := s.users[userID]
	var user blogguard.User
	if exists {
		user = acct.user
	}
	s.mu.RUnlock()

	if !exists {
		return nil, blogguard.ErrUserNotFound
	}

	roles, err := s.roles.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*blogguard.User, error) {
	s.mu.RLock()
	userID, exists := s.usersByName[username]
	s.mu.RUnlock()

	if !exists {
		return nil, blogguard.ErrUserNotFound
	}

	return s.GetUser(ctx, userID)
}

// ListUsers returns a page of users ordered by creation time and the total count.
func (s *Service) ListUsers(ctx context.Context, offset, limit int) ([]blogguard.User, int, error) {
	s.mu.RLock()
	all := make([]blogguard.User, 0, len(s.users))
	for _, acct := range s.users {
		all = append(all, acct.user)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	page := paginate(all, offset, limit)

	for i := range page {
		roles, err := s.roles.GetUserRoles(ctx, page[i].ID)
		if err != nil {
			return nil, 0, err
		}
		page[i].Roles = roles
	}
	return page, total, nil
}

// SetUserRoles replaces the role set of a user.
func (s *Service) SetUserRoles(ctx context.Context, userID string, roles []string) error {
	s.mu.Lock()
	acct, exists := s.users[userID]
	if exists {
		acct.user.UpdatedAt = s.now().UTC()
	}
	s.mu.Unlock()

	if !exists {
		return blogguard.ErrUserNotFound
	}
	return s.roles.SetRoles(ctx, userID, roles)
}

// SetActive enables or disables an account.
func (s *Service) SetActive(_ context.Context, userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.users[userID]
	if !exists {
		return blogguard.ErrUserNotFound
	}
	acct.user.IsActive = active
	acct.user.UpdatedAt = s.now().UTC()
	return nil
}

// DeleteUser deletes a user and their role assignments.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	acct, exists := s.users[userID]
	if !exists {
		s.mu.Unlock()
		return blogguard.ErrUserNotFound
	}
	delete(s.users, userID)
	delete(s.usersByName, acct.user.Username)
	delete(s.usersByEmail, acct.user.Email)
	s.mu.Unlock()

	return s.roles.RemoveUser(ctx, userID)
}

// ChangePassword changes a user's password.
func (s *Service) ChangePassword(_ context.Context, userID, oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.users[userID]
	if !exists {
		return blogguard.ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(oldPassword)); err != nil {
		return blogguard.ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.BCryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	acct.hash = hashedPassword
	acct.user.UpdatedAt = s.now().UTC()
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
