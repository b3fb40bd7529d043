package taxonomy

import (
	"context"

	"github.com/synergy-framework/blogguard"
)

// Store is the persistence collaborator for categories, tags and post-tag
// links.
//
// Create and Update return blogguard.ErrTermExists when another term of the
// same kind already uses the name or slug. Update and Delete hold the term
// across fn and the write; if fn returns an error nothing is written.
type Store interface {
	Create(ctx context.Context, term blogguard.Term) error
	Get(ctx context.Context, id string) (blogguard.Term, error)
	// List returns the terms of kind ordered by name.
	List(ctx context.Context, kind blogguard.TermKind, offset, limit int) ([]blogguard.Term, error)
	Update(ctx context.Context, id string, fn func(blogguard.Term) (blogguard.Term, error)) (blogguard.Term, error)
	// Delete removes the term and detaches it from every post: a deleted
	// category is cleared from the posts filed under it and a deleted tag
	// loses its links.
	Delete(ctx context.Context, id string, check func(blogguard.Term) error) error

	// Tag links the post to the tag and reports whether the link is new.
	// It returns blogguard.ErrTermNotFound when tagID is not a tag.
	Tag(ctx context.Context, postID, tagID string) (bool, error)
	// Untag removes the link and reports whether one existed.
	Untag(ctx context.Context, postID, tagID string) (bool, error)
	// TagsOf returns the tags of the post ordered by name.
	TagsOf(ctx context.Context, postID string) ([]blogguard.Term, error)
}

// Categories adapts a Store to post.Categories.
type Categories struct {
	Store Store
}

// Category returns the category with id. A tag id is reported as missing.
func (c Categories) Category(ctx context.Context, id string) (blogguard.Term, error) {
	t, err := c.Store.Get(ctx, id)
	if err != nil {
		return blogguard.Term{}, err
	}
	if t.Kind != blogguard.TermCategory {
		return blogguard.Term{}, blogguard.ErrTermNotFound
	}
	return t, nil
}
