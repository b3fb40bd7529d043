// Package memory is the in-process persistence collaborator: accounts, role
// assignments, posts, comments and taxonomies behind one lock. It backs
// development servers and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/analytics"
	"github.com/synergy-framework/blogguard/jwt"
	"github.com/synergy-framework/blogguard/rbac"
)

type account struct {
	user blogguard.User
	hash []byte
}

// Service implements the account, token and content stores in memory.
type Service struct {
	config Config

	jwtManager *jwt.Manager
	roles      rbac.Store

	// revoked token -> expiry of the blacklist entry
	blacklistMu sync.Mutex
	blacklist   map[string]time.Time

	mu           sync.RWMutex
	users        map[string]*account // userID -> account
	usersByName  map[string]string   // username -> userID
	usersByEmail map[string]string   // email -> userID
	posts        map[string]blogguard.Post
	comments     map[string]blogguard.Comment
	terms        map[string]blogguard.Term
	postTags     map[string]map[string]struct{} // postID -> tag ids

	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRoleStore replaces the built-in role store, e.g. with an rbac.Cached.
func WithRoleStore(store rbac.Store) Option {
	return func(s *Service) { s.roles = store }
}

// NewService creates a new in-memory service with the given configuration.
func NewService(config Config, opts ...Option) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	jwtManager, err := jwt.NewManager(config.JWT())
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT manager: %w", err)
	}

	s := &Service{
		config:       config,
		jwtManager:   jwtManager,
		roles:        rbac.NewMemoryStore(),
		blacklist:    make(map[string]time.Time),
		users:        make(map[string]*account),
		usersByName:  make(map[string]string),
		usersByEmail: make(map[string]string),
		posts:        make(map[string]blogguard.Post),
		comments:     make(map[string]blogguard.Comment),
		terms:        make(map[string]blogguard.Term),
		postTags:     make(map[string]map[string]struct{}),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Roles returns the role store the service writes assignments to.
func (s *Service) Roles() rbac.Store { return s.roles }

// TokenManager returns the JWT manager used to mint tokens.
func (s *Service) TokenManager() *jwt.Manager { return s.jwtManager }

// Posts returns the post store view of the service.
func (s *Service) Posts() *PostStore { return &PostStore{s: s} }

// Terms returns the category and tag store view of the service.
func (s *Service) Terms() *TermStore { return &TermStore{s: s} }

// Comments returns the comment store view of the service.
func (s *Service) Comments() *CommentStore { return &CommentStore{s: s} }

// Inventory counts stored entities for the site summary.
func (s *Service) Inventory(_ context.Context) (analytics.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv := analytics.Inventory{
		Users:    len(s.users),
		Posts:    len(s.posts),
		Comments: len(s.comments),
	}
	for _, p := range s.posts {
		if p.IsPublished() {
			inv.PublishedPosts++
		}
	}
	return inv, nil
}

var (
	_ blogguard.Authenticator  = (*Service)(nil)
	_ blogguard.UserManager    = (*Service)(nil)
	_ blogguard.TokenValidator = (*Service)(nil)
)
