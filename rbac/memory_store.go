package rbac

import (
	"context"
	"sort"
	"sync"

	"github.com/synergy-framework/blogguard"
)

type memoryStore struct {
	mu sync.RWMutex

	userRoles map[string]map[string]struct{} // user -> role -> {}
}

// NewMemoryStore creates an in-memory role store.
func NewMemoryStore() Store {
	return &memoryStore{userRoles: make(map[string]map[string]struct{})}
}

func (s *memoryStore) AddUser(_ context.Context, userID string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userRoles[userID] = toSet(roles)
	return nil
}

func (s *memoryStore) RemoveUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userRoles, userID)
	return nil
}

func (s *memoryStore) AssignRole(_ context.Context, userID, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.userRoles[userID]
	if !ok {
		return blogguard.ErrUserNotFound
	}
	set[roleName] = struct{}{}
	return nil
}

func (s *memoryStore) RevokeRole(_ context.Context, userID, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.userRoles[userID]
	if !ok {
		return blogguard.ErrUserNotFound
	}
	delete(set, roleName)
	return nil
}

func (s *memoryStore) SetRoles(_ context.Context, userID string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.userRoles[userID]; !ok {
		return blogguard.ErrUserNotFound
	}
	s.userRoles[userID] = toSet(roles)
	return nil
}

func (s *memoryStore) GetUserRoles(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.userRoles[userID]
	if !ok {
		return nil, blogguard.ErrUserNotFound
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func toSet(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}
