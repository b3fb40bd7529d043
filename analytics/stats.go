package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// Stats answers aggregate queries over a Store and an InventorySource.
// Concurrent identical queries share one computation.
type Stats struct {
	store     Store
	inventory InventorySource
	group     singleflight.Group
}

// NewStats builds Stats. inventory may be nil, leaving the counts at zero.
func NewStats(store Store, inventory InventorySource) *Stats {
	return &Stats{store: store, inventory: inventory}
}

func (s *Stats) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// SiteSummary combines entity counts with view and like totals.
func (s *Stats) SiteSummary(ctx context.Context) (Summary, error) {
	v, err := s.shared(ctx, "summary", func(ctx context.Context) (interface{}, error) {
		var sum Summary
		if s.inventory != nil {
			inv, err := s.inventory.Inventory(ctx)
			if err != nil {
				return nil, fmt.Errorf("analytics: inventory: %w", err)
			}
			sum.Inventory = inv
		}
		views, likes, err := s.store.Totals(ctx)
		if err != nil {
			return nil, err
		}
		sum.TotalViews, sum.TotalLikes = views, likes
		return sum, nil
	})
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

// TopPosts returns the limit most viewed posts.
func (s *Stats) TopPosts(ctx context.Context, limit int) ([]PostViews, error) {
	v, err := s.shared(ctx, "top:"+strconv.Itoa(limit), func(ctx context.Context) (interface{}, error) {
		return s.store.TopPosts(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]PostViews), nil
}

// ViewsOverTime returns the daily view totals between from and to.
func (s *Stats) ViewsOverTime(ctx context.Context, from, to time.Time) ([]DailyViews, error) {
	if to.Before(from) {
		from, to = to, from
	}
	key := "daily:" + from.UTC().Format(DayLayout) + ":" + to.UTC().Format(DayLayout)
	v, err := s.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.store.ViewsOverTime(ctx, from, to)
	})
	if err != nil {
		return nil, err
	}
	return v.([]DailyViews), nil
}

// PostStats returns the counters of one post.
func (s *Stats) PostStats(ctx context.Context, postID string) (PostStats, error) {
	return s.store.PostStats(ctx, postID)
}
