// Package analytics is the statistics collaborator: it receives view events,
// keeps like sets and answers the aggregate queries that the admin gate and
// the public post stats expose. It makes no authorization decisions.
package analytics

import (
	"context"
	"time"
)

// DayLayout formats daily view buckets.
const DayLayout = "2006-01-02"

// Inventory counts stored entities; it comes from the persistence layer.
type Inventory struct {
	Users          int `json:"users"`
	Posts          int `json:"posts"`
	PublishedPosts int `json:"published_posts"`
	Comments       int `json:"comments"`
}

// Summary is the site-wide admin summary.
type Summary struct {
	Inventory
	TotalViews int64 `json:"total_views"`
	TotalLikes int64 `json:"total_likes"`
}

// PostViews is one entry of the top posts ranking.
type PostViews struct {
	PostID string `json:"post_id"`
	Views  int64  `json:"views"`
}

// DailyViews is the view total of one UTC day.
type DailyViews struct {
	Day   string `json:"day"`
	Views int64  `json:"views"`
}

// PostStats are the public counters of one post.
type PostStats struct {
	PostID string `json:"post_id"`
	Views  int64  `json:"views"`
	Likes  int64  `json:"likes"`
}

// InventorySource reports entity counts.
type InventorySource interface {
	Inventory(ctx context.Context) (Inventory, error)
}

// Store keeps the counters. Implementations must be safe for concurrent use.
type Store interface {
	RecordView(ctx context.Context, postID, viewerID string, at time.Time) error
	// Like adds userID to the post's like set and reports whether it was new.
	Like(ctx context.Context, postID, userID string) (bool, error)
	// Unlike removes userID from the like set and reports whether it was present.
	Unlike(ctx context.Context, postID, userID string) (bool, error)
	PostStats(ctx context.Context, postID string) (PostStats, error)
	Totals(ctx context.Context) (views, likes int64, err error)
	TopPosts(ctx context.Context, limit int) ([]PostViews, error)
	ViewsOverTime(ctx context.Context, from, to time.Time) ([]DailyViews, error)
	// Forget drops every counter of a deleted post.
	Forget(ctx context.Context, postID string) error
}

// days lists the UTC day keys from..to inclusive, capped at one year.
func days(from, to time.Time) []string {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	out := make([]string, 0)
	for d := from; !d.After(to) && len(out) < 366; d = d.Add(24 * time.Hour) {
		out = append(out, d.Format(DayLayout))
	}
	return out
}
