// Package taxonomy manages the categories and tags posts are filed under.
//
// Terms are shared vocabulary with no owner: writers create and rename them,
// only admins delete them. Tagging a post is an edit of that post and follows
// the post's ownership rule.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/policy"
	"github.com/synergy-framework/blogguard/post"
)

var (
	// ErrEmptyName is returned when a term is created or renamed without a name.
	ErrEmptyName = errors.New("taxonomy: name is required")
	// ErrEmptySlug is returned when no slug can be derived for a term.
	ErrEmptySlug = errors.New("taxonomy: slug is required")
	// ErrUnknownKind is returned for a kind other than category or tag.
	ErrUnknownKind = errors.New("taxonomy: unknown kind")
)

// NewTerm is the input of Create.
type NewTerm struct {
	Name        string
	Slug        string
	Description string
}

// Patch carries the editable fields of a term. Nil fields are left unchanged.
type Patch struct {
	Name        *string
	Slug        *string
	Description *string
}

// Service applies taxonomy rules against a Store.
type Service struct {
	store  Store
	posts  *post.Service
	policy blogguard.Policy
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a Service. posts supplies post visibility and listings.
// A nil policy selects the default engine.
func NewService(store Store, posts *post.Service, pol blogguard.Policy, opts ...Option) *Service {
	if pol == nil {
		pol = policy.New()
	}
	s := &Service{
		store:  store,
		posts:  posts,
		policy: pol,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a term of kind. The slug defaults to one derived from the name.
func (s *Service) Create(ctx context.Context, p blogguard.Principal, kind blogguard.TermKind, in NewTerm) (blogguard.Term, error) {
	if err := s.authorize(ctx, p, "create", blogguard.ActionManageTaxonomy, nil); err != nil {
		return blogguard.Term{}, err
	}
	if !kind.Valid() {
		return blogguard.Term{}, ErrUnknownKind
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return blogguard.Term{}, ErrEmptyName
	}
	slug := in.Slug
	if slug == "" {
		slug = post.Slugify(name)
	}
	if slug == "" {
		return blogguard.Term{}, ErrEmptySlug
	}
	now := s.now().UTC()
	t := blogguard.Term{
		ID:          uuid.NewString(),
		Kind:        kind,
		Name:        name,
		Slug:        slug,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return blogguard.Term{}, fmt.Errorf("taxonomy: create %s: %w", kind, err)
	}
	return t, nil
}

// Get returns the term of kind with id. Terms are public.
func (s *Service) Get(ctx context.Context, kind blogguard.TermKind, id string) (blogguard.Term, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return blogguard.Term{}, err
	}
	if t.Kind != kind {
		return blogguard.Term{}, blogguard.ErrTermNotFound
	}
	return t, nil
}

// List returns a page of the terms of kind ordered by name.
func (s *Service) List(ctx context.Context, kind blogguard.TermKind, offset, limit int) ([]blogguard.Term, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	terms, err := s.store.List(ctx, kind, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: list %s: %w", kind, err)
	}
	return terms, nil
}

// Update renames or redescribes a term.
func (s *Service) Update(ctx context.Context, p blogguard.Principal, kind blogguard.TermKind, id string, patch Patch) (blogguard.Term, error) {
	if err := s.authorize(ctx, p, "update", blogguard.ActionManageTaxonomy, blogguard.TaxonomyResource(id)); err != nil {
		return blogguard.Term{}, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return blogguard.Term{}, ErrEmptyName
	}
	if patch.Slug != nil && *patch.Slug == "" {
		return blogguard.Term{}, ErrEmptySlug
	}
	return s.store.Update(ctx, id, func(cur blogguard.Term) (blogguard.Term, error) {
		if cur.Kind != kind {
			return cur, blogguard.ErrTermNotFound
		}
		if patch.Name != nil {
			cur.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Slug != nil {
			cur.Slug = *patch.Slug
		}
		if patch.Description != nil {
			cur.Description = *patch.Description
		}
		cur.UpdatedAt = s.now().UTC()
		return cur, nil
	})
}

// Delete removes a term and detaches it from every post.
func (s *Service) Delete(ctx context.Context, p blogguard.Principal, kind blogguard.TermKind, id string) error {
	if err := s.authorize(ctx, p, "delete", blogguard.ActionDeleteTaxonomy, blogguard.TaxonomyResource(id)); err != nil {
		return err
	}
	return s.store.Delete(ctx, id, func(cur blogguard.Term) error {
		if cur.Kind != kind {
			return blogguard.ErrTermNotFound
		}
		return nil
	})
}

// Posts returns the published posts filed under the term.
func (s *Service) Posts(ctx context.Context, kind blogguard.TermKind, id string, offset, limit int) ([]blogguard.Post, error) {
	if _, err := s.Get(ctx, kind, id); err != nil {
		return nil, err
	}
	if kind == blogguard.TermCategory {
		return s.posts.ListByCategory(ctx, id, offset, limit)
	}
	return s.posts.ListByTag(ctx, id, offset, limit)
}

// TagPost links a tag to a post p may edit. It reports whether the link is new.
func (s *Service) TagPost(ctx context.Context, p blogguard.Principal, postID, tagID string) (bool, error) {
	if err := s.canEdit(ctx, p, postID); err != nil {
		return false, err
	}
	return s.store.Tag(ctx, postID, tagID)
}

// UntagPost removes a tag from a post p may edit. It reports whether the
// post carried the tag.
func (s *Service) UntagPost(ctx context.Context, p blogguard.Principal, postID, tagID string) (bool, error) {
	if err := s.canEdit(ctx, p, postID); err != nil {
		return false, err
	}
	return s.store.Untag(ctx, postID, tagID)
}

// Tags returns the tags of a post p may see.
func (s *Service) Tags(ctx context.Context, p blogguard.Principal, postID string) ([]blogguard.Term, error) {
	if _, err := s.posts.Get(ctx, p, postID); err != nil {
		return nil, err
	}
	return s.store.TagsOf(ctx, postID)
}

func (s *Service) canEdit(ctx context.Context, p blogguard.Principal, postID string) error {
	target, err := s.posts.Get(ctx, p, postID)
	if err != nil {
		return err
	}
	return s.authorize(ctx, p, "tag", blogguard.ActionEditPost, target.Resource())
}

func (s *Service) authorize(ctx context.Context, p blogguard.Principal, op string, action blogguard.Action, res *blogguard.Resource) error {
	d := s.policy.Can(p, action, res)
	if d.Allowed {
		return nil
	}
	target := ""
	if res != nil {
		target = res.ID
	}
	s.logger.DebugContext(ctx, "taxonomy: "+op+" rejected",
		slog.String("principal", p.String()),
		slog.String("target", target),
		slog.String("reason", d.Reason.String()))
	return d.Err(action, res)
}
