package comment

import (
	"context"

	"github.com/synergy-framework/blogguard"
)

// Store is the persistence collaborator for comments.
type Store interface {
	// Create holds the post across fn and the insert, so the comment fn
	// builds from the post's state lands before that state can change. The
	// stored comment belongs to postID; a reply's parent must still exist.
	Create(ctx context.Context, postID string, fn func(blogguard.Post) (blogguard.Comment, error)) (blogguard.Comment, error)
	Get(ctx context.Context, id string) (blogguard.Comment, error)
	// ListByPost returns every comment of a post, oldest first.
	ListByPost(ctx context.Context, postID string) ([]blogguard.Comment, error)
	// Update holds the comment exclusively across read, fn and write.
	Update(ctx context.Context, id string, fn func(blogguard.Comment) (blogguard.Comment, error)) (blogguard.Comment, error)
	// DeleteTree loads the comment and every comment of its post under one
	// boundary, asks fn which ids to remove, and removes all of them or none.
	DeleteTree(ctx context.Context, id string, fn func(root blogguard.Comment, thread []blogguard.Comment) ([]string, error)) (int, error)
}

// PostReader is the read side of the post store.
type PostReader interface {
	Get(ctx context.Context, id string) (blogguard.Post, error)
}
