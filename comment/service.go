package comment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/post"
)

// Service applies thread rules against a Store.
type Service struct {
	store  Store
	posts  PostReader
	thread Thread
	view   post.Lifecycle
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

// NewService builds a Service. A nil policy selects the default engine.
func NewService(store Store, posts PostReader, pol blogguard.Policy, opts ...Option) *Service {
	s := &Service{
		store:  store,
		posts:  posts,
		thread: NewThread(pol),
		view:   post.NewLifecycle(pol),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoot adds a top-level comment to a published post.
func (s *Service) CreateRoot(ctx context.Context, p blogguard.Principal, postID, content string) (blogguard.Comment, error) {
	c, err := s.insert(ctx, postID, func(target blogguard.Post) (blogguard.Comment, error) {
		return s.thread.CreateRoot(p, target, content, s.now().UTC())
	})
	if err != nil {
		s.denied(ctx, p, "create", postID, err)
		return blogguard.Comment{}, err
	}
	return c, nil
}

// Reply adds a reply under parentID. An empty postID inherits the parent's.
func (s *Service) Reply(ctx context.Context, p blogguard.Principal, parentID, postID, content string) (blogguard.Comment, error) {
	var parent *blogguard.Comment
	found, err := s.store.Get(ctx, parentID)
	switch {
	case err == nil:
		parent = &found
	case !blogguard.IsNotFound(err):
		return blogguard.Comment{}, fmt.Errorf("comment: load parent: %w", err)
	}
	c, err := s.thread.Reply(p, parent, postID, content, s.now().UTC())
	if err != nil {
		s.denied(ctx, p, "reply", parentID, err)
		return blogguard.Comment{}, err
	}
	return s.insert(ctx, c.PostID, func(blogguard.Post) (blogguard.Comment, error) {
		return c, nil
	})
}

// Edit replaces the content of a comment.
func (s *Service) Edit(ctx context.Context, p blogguard.Principal, id, content string) (blogguard.Comment, error) {
	c, err := s.store.Update(ctx, id, func(cur blogguard.Comment) (blogguard.Comment, error) {
		return s.thread.Edit(p, cur, content, s.now().UTC())
	})
	if err != nil {
		s.denied(ctx, p, "edit", id, err)
		return blogguard.Comment{}, err
	}
	return c, nil
}

// Delete removes the comment and its whole reply subtree, returning how many
// comments were removed.
func (s *Service) Delete(ctx context.Context, p blogguard.Principal, id string) (int, error) {
	n, err := s.store.DeleteTree(ctx, id, func(root blogguard.Comment, thread []blogguard.Comment) ([]string, error) {
		return s.thread.Delete(p, root, thread)
	})
	if err != nil {
		s.denied(ctx, p, "delete", id, err)
		return 0, err
	}
	return n, nil
}

// List returns the comments of a post the principal may see.
func (s *Service) List(ctx context.Context, p blogguard.Principal, postID string) ([]blogguard.Comment, error) {
	if err := s.visible(ctx, p, postID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("comment: list: %w", err)
	}
	return comments, nil
}

// Replies returns the direct replies of a comment.
func (s *Service) Replies(ctx context.Context, p blogguard.Principal, id string) ([]blogguard.Comment, error) {
	parent, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := s.List(ctx, p, parent.PostID)
	if err != nil {
		return nil, err
	}
	out := make([]blogguard.Comment, 0)
	for _, c := range all {
		if c.ParentID == id {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) visible(ctx context.Context, p blogguard.Principal, postID string) error {
	target, err := s.posts.Get(ctx, postID)
	if err != nil {
		return err
	}
	return s.view.CanView(p, target)
}

func (s *Service) insert(ctx context.Context, postID string, build func(blogguard.Post) (blogguard.Comment, error)) (blogguard.Comment, error) {
	return s.store.Create(ctx, postID, func(target blogguard.Post) (blogguard.Comment, error) {
		c, err := build(target)
		if err != nil {
			return blogguard.Comment{}, err
		}
		c.ID = uuid.NewString()
		return c, nil
	})
}

func (s *Service) denied(ctx context.Context, p blogguard.Principal, op, id string, err error) {
	reason := blogguard.ReasonOf(err)
	if reason == blogguard.ReasonNone {
		return
	}
	s.logger.DebugContext(ctx, "comment: "+op+" rejected",
		slog.String("principal", p.String()),
		slog.String("target", id),
		slog.String("reason", reason.String()))
}
