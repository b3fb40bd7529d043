package post

import (
	"context"

	"github.com/synergy-framework/blogguard"
)

// Store is the persistence collaborator for posts.
//
// Update and Delete hold an exclusive boundary on the post (a lock or a
// row-locking transaction) across read, fn and write. If fn returns an error
// nothing is written.
type Store interface {
	Create(ctx context.Context, post blogguard.Post) error
	Get(ctx context.Context, id string) (blogguard.Post, error)
	List(ctx context.Context, filter Filter) ([]blogguard.Post, error)
	Update(ctx context.Context, id string, fn func(blogguard.Post) (blogguard.Post, error)) (blogguard.Post, error)
	// Delete removes the post, every comment on it and its tag links as one unit.
	Delete(ctx context.Context, id string, check func(blogguard.Post) error) error
}

// Filter selects posts for List. Results are ordered newest first.
type Filter struct {
	AuthorID   string
	CategoryID string
	// TagID keeps posts carrying the tag. Stores resolve it against their
	// post-tag links; Matches ignores it.
	TagID  string
	State  *blogguard.PostState
	Offset int
	Limit  int
}

// Matches reports whether post passes the author, category and state conditions.
func (f Filter) Matches(post blogguard.Post) bool {
	if f.AuthorID != "" && post.AuthorID != f.AuthorID {
		return false
	}
	if f.CategoryID != "" && post.CategoryID != f.CategoryID {
		return false
	}
	if f.State != nil && post.State != *f.State {
		return false
	}
	return true
}

// Published selects published posts.
func Published() *blogguard.PostState {
	s := blogguard.StatePublished
	return &s
}

// Drafts selects draft posts.
func Drafts() *blogguard.PostState {
	s := blogguard.StateDraft
	return &s
}
