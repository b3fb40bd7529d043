package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synergy-framework/blogguard"
)

// ErrEmptyTitle is returned when a post is created without a title.
var ErrEmptyTitle = errors.New("post: title is required")

const defaultViewTimeout = 2 * time.Second

// NewPost is the input of Create.
type NewPost struct {
	Title      string
	Slug       string
	Content    string
	CategoryID string
}

// Categories resolves category ids named on create and edit.
type Categories interface {
	Category(ctx context.Context, id string) (blogguard.Term, error)
}

// Service applies lifecycle transitions against a Store.
type Service struct {
	store       Store
	lifecycle   Lifecycle
	categories  Categories
	views       blogguard.ViewRecorder
	engagement  Engagement
	logger      *slog.Logger
	now         func() time.Time
	viewTimeout time.Duration

	inflight sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithViewRecorder sets the analytics collaborator that receives view events.
func WithViewRecorder(r blogguard.ViewRecorder) Option {
	return func(s *Service) { s.views = r }
}

// WithCategories rejects unknown category ids on create and edit.
func WithCategories(c Categories) Option {
	return func(s *Service) { s.categories = c }
}

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

// WithViewTimeout bounds each view recording attempt.
func WithViewTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.viewTimeout = d
		}
	}
}

// NewService builds a Service over store. A nil policy selects the default engine.
func NewService(store Store, pol blogguard.Policy, opts ...Option) *Service {
	s := &Service{
		store:       store,
		lifecycle:   NewLifecycle(pol),
		logger:      slog.Default(),
		now:         time.Now,
		viewTimeout: defaultViewTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lifecycle exposes the pure transition rules used by the service.
func (s *Service) Lifecycle() Lifecycle { return s.lifecycle }

// Create stores a new draft owned by p.
func (s *Service) Create(ctx context.Context, p blogguard.Principal, in NewPost) (blogguard.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return blogguard.Post{}, ErrEmptyTitle
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(title)
	}
	post, err := s.lifecycle.Create(p, blogguard.Post{
		ID:         uuid.NewString(),
		Title:      title,
		Slug:       slug,
		Content:    in.Content,
		CategoryID: in.CategoryID,
	}, s.now().UTC())
	if err != nil {
		s.denied(ctx, p, "create", "", err)
		return blogguard.Post{}, err
	}
	if err := s.checkCategory(ctx, post.CategoryID); err != nil {
		return blogguard.Post{}, err
	}
	if err := s.store.Create(ctx, post); err != nil {
		return blogguard.Post{}, fmt.Errorf("post: create: %w", err)
	}
	return post, nil
}

// Get returns the post if p may see it. It does not record a view.
func (s *Service) Get(ctx context.Context, p blogguard.Principal, id string) (blogguard.Post, error) {
	post, err := s.store.Get(ctx, id)
	if err != nil {
		return blogguard.Post{}, err
	}
	if err := s.lifecycle.CanView(p, post); err != nil {
		s.denied(ctx, p, "view", id, err)
		return blogguard.Post{}, err
	}
	return post, nil
}

// View is Get for a reader. Every successful view of a published post
// dispatches exactly one view event; recording failures never fail the view.
func (s *Service) View(ctx context.Context, p blogguard.Principal, id string) (blogguard.Post, error) {
	post, err := s.Get(ctx, p, id)
	if err != nil {
		return blogguard.Post{}, err
	}
	if post.IsPublished() {
		s.recordView(ctx, post.ID, p.ID)
	}
	return post, nil
}

// Publish transitions a draft to published.
func (s *Service) Publish(ctx context.Context, p blogguard.Principal, id string) (blogguard.Post, error) {
	post, err := s.store.Update(ctx, id, func(cur blogguard.Post) (blogguard.Post, error) {
		return s.lifecycle.Publish(p, cur, s.now().UTC())
	})
	if err != nil {
		s.denied(ctx, p, "publish", id, err)
		return blogguard.Post{}, err
	}
	return post, nil
}

// Unpublish transitions a published post back to draft.
func (s *Service) Unpublish(ctx context.Context, p blogguard.Principal, id string) (blogguard.Post, error) {
	post, err := s.store.Update(ctx, id, func(cur blogguard.Post) (blogguard.Post, error) {
		return s.lifecycle.Unpublish(p, cur, s.now().UTC())
	})
	if err != nil {
		s.denied(ctx, p, "unpublish", id, err)
		return blogguard.Post{}, err
	}
	return post, nil
}

// Edit applies patch.
func (s *Service) Edit(ctx context.Context, p blogguard.Principal, id string, patch Patch) (blogguard.Post, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return blogguard.Post{}, ErrEmptyTitle
	}
	if patch.CategoryID != nil && *patch.CategoryID != "" && s.categories != nil {
		// ownership is immutable; strangers are refused before the category lookup
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return blogguard.Post{}, err
		}
		if err := s.lifecycle.authorize(p, blogguard.ActionEditPost, cur.Resource()); err != nil {
			s.denied(ctx, p, "edit", id, err)
			return blogguard.Post{}, err
		}
		if err := s.checkCategory(ctx, *patch.CategoryID); err != nil {
			return blogguard.Post{}, err
		}
	}
	post, err := s.store.Update(ctx, id, func(cur blogguard.Post) (blogguard.Post, error) {
		return s.lifecycle.Edit(p, cur, patch, s.now().UTC())
	})
	if err != nil {
		s.denied(ctx, p, "edit", id, err)
		return blogguard.Post{}, err
	}
	return post, nil
}

// Delete removes the post and all of its comments.
func (s *Service) Delete(ctx context.Context, p blogguard.Principal, id string) error {
	err := s.store.Delete(ctx, id, func(cur blogguard.Post) error {
		return s.lifecycle.Delete(p, cur)
	})
	if err != nil {
		s.denied(ctx, p, "delete", id, err)
		return err
	}
	s.forget(ctx, id)
	return nil
}

// ListPublished returns published posts, visible to everyone.
func (s *Service) ListPublished(ctx context.Context, offset, limit int) ([]blogguard.Post, error) {
	posts, err := s.store.List(ctx, Filter{State: Published(), Offset: offset, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("post: list published: %w", err)
	}
	return posts, nil
}

// ListDrafts returns the drafts p may see: every draft for an admin, the
// principal's own drafts otherwise.
func (s *Service) ListDrafts(ctx context.Context, p blogguard.Principal, offset, limit int) ([]blogguard.Post, error) {
	if err := s.lifecycle.authorize(p, blogguard.ActionCreatePost, nil); err != nil {
		return nil, err
	}
	filter := Filter{State: Drafts(), Offset: offset, Limit: limit}
	if !p.HasRole(blogguard.RoleAdmin) {
		filter.AuthorID = p.ID
	}
	posts, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("post: list drafts: %w", err)
	}
	return posts, nil
}

// ListByCategory returns the published posts filed under categoryID.
func (s *Service) ListByCategory(ctx context.Context, categoryID string, offset, limit int) ([]blogguard.Post, error) {
	posts, err := s.store.List(ctx, Filter{CategoryID: categoryID, State: Published(), Offset: offset, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("post: list by category: %w", err)
	}
	return posts, nil
}

// ListByTag returns the published posts carrying tagID.
func (s *Service) ListByTag(ctx context.Context, tagID string, offset, limit int) ([]blogguard.Post, error) {
	posts, err := s.store.List(ctx, Filter{TagID: tagID, State: Published(), Offset: offset, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("post: list by tag: %w", err)
	}
	return posts, nil
}

// Wait blocks until in-flight view recordings finish.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) checkCategory(ctx context.Context, id string) error {
	if id == "" || s.categories == nil {
		return nil
	}
	if _, err := s.categories.Category(ctx, id); err != nil {
		return fmt.Errorf("post: category %s: %w", id, err)
	}
	return nil
}

func (s *Service) recordView(ctx context.Context, postID, viewerID string) {
	if s.views == nil {
		return
	}
	at := s.now().UTC()
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.viewTimeout)
		defer cancel()
		if err := s.views.RecordView(rctx, postID, viewerID, at); err != nil {
			s.logger.WarnContext(rctx, "post: view not recorded",
				slog.String("post_id", postID), slog.Any("error", err))
		}
	}()
}

func (s *Service) denied(ctx context.Context, p blogguard.Principal, op, id string, err error) {
	if blogguard.ReasonOf(err) == blogguard.ReasonNone {
		return
	}
	s.logger.DebugContext(ctx, "post: "+op+" rejected",
		slog.String("principal", p.String()),
		slog.String("post_id", id),
		slog.String("reason", blogguard.ReasonOf(err).String()))
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a title.
func Slugify(title string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
}
