package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/analytics"
)

// ErrEngagementUnavailable is returned by Like, Unlike and Stats on a
// service built without an engagement store.
var ErrEngagementUnavailable = errors.New("post: engagement store not configured")

// Engagement is the per-post counter store behind likes and public stats.
type Engagement interface {
	Like(ctx context.Context, postID, userID string) (bool, error)
	Unlike(ctx context.Context, postID, userID string) (bool, error)
	PostStats(ctx context.Context, postID string) (analytics.PostStats, error)
	Forget(ctx context.Context, postID string) error
}

// WithEngagement sets the store used for likes and post stats.
func WithEngagement(e Engagement) Option {
	return func(s *Service) { s.engagement = e }
}

// Like records p's like of a published post. It reports false when p had
// already liked it.
func (s *Service) Like(ctx context.Context, p blogguard.Principal, id string) (bool, error) {
	post, err := s.engageable(ctx, p, id, "like")
	if err != nil {
		return false, err
	}
	added, err := s.engagement.Like(ctx, post.ID, p.ID)
	if err != nil {
		return false, fmt.Errorf("post: like: %w", err)
	}
	return added, nil
}

// Unlike withdraws p's like. It reports false when there was none.
func (s *Service) Unlike(ctx context.Context, p blogguard.Principal, id string) (bool, error) {
	post, err := s.engageable(ctx, p, id, "unlike")
	if err != nil {
		return false, err
	}
	removed, err := s.engagement.Unlike(ctx, post.ID, p.ID)
	if err != nil {
		return false, fmt.Errorf("post: unlike: %w", err)
	}
	return removed, nil
}

// Stats returns the view and like counters of a post p may see.
func (s *Service) Stats(ctx context.Context, p blogguard.Principal, id string) (analytics.PostStats, error) {
	if s.engagement == nil {
		return analytics.PostStats{}, ErrEngagementUnavailable
	}
	post, err := s.Get(ctx, p, id)
	if err != nil {
		return analytics.PostStats{}, err
	}
	stats, err := s.engagement.PostStats(ctx, post.ID)
	if err != nil {
		return analytics.PostStats{}, fmt.Errorf("post: stats: %w", err)
	}
	return stats, nil
}

func (s *Service) engageable(ctx context.Context, p blogguard.Principal, id, op string) (blogguard.Post, error) {
	if s.engagement == nil {
		return blogguard.Post{}, ErrEngagementUnavailable
	}
	post, err := s.store.Get(ctx, id)
	if err != nil {
		return blogguard.Post{}, err
	}
	if err := s.lifecycle.Engage(p, post); err != nil {
		s.denied(ctx, p, op, id, err)
		return blogguard.Post{}, err
	}
	return post, nil
}

// forget drops the counters of a deleted post. Failures leave stale
// counters behind and are only logged.
func (s *Service) forget(ctx context.Context, id string) {
	if s.engagement == nil {
		return
	}
	if err := s.engagement.Forget(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "post: counters not dropped",
			slog.String("post_id", id), slog.Any("error", err))
	}
}
