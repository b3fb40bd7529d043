package memory

import (
	"context"
	"sort"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/comment"
)

// CommentStore is the comment.Store of a Service.
type CommentStore struct {
	s *Service
}

func (c *CommentStore) Create(_ context.Context, postID string, fn func(blogguard.Post) (blogguard.Comment, error)) (blogguard.Comment, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	target, ok := c.s.posts[postID]
	if !ok {
		return blogguard.Comment{}, blogguard.ErrPostNotFound
	}
	nc, err := fn(target)
	if err != nil {
		return blogguard.Comment{}, err
	}
	nc.PostID = target.ID
	if nc.ParentID != "" {
		if _, ok := c.s.comments[nc.ParentID]; !ok {
			return blogguard.Comment{}, blogguard.ErrCommentNotFound
		}
	}
	c.s.comments[nc.ID] = nc
	return nc, nil
}

func (c *CommentStore) Get(_ context.Context, id string) (blogguard.Comment, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	found, ok := c.s.comments[id]
	if !ok {
		return blogguard.Comment{}, blogguard.ErrCommentNotFound
	}
	return found, nil
}

func (c *CommentStore) ListByPost(_ context.Context, postID string) ([]blogguard.Comment, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.byPost(postID), nil
}

func (c *CommentStore) Update(_ context.Context, id string, fn func(blogguard.Comment) (blogguard.Comment, error)) (blogguard.Comment, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cur, ok := c.s.comments[id]
	if !ok {
		return blogguard.Comment{}, blogguard.ErrCommentNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return blogguard.Comment{}, err
	}
	// identity and placement are immutable
	next.ID, next.PostID, next.ParentID = cur.ID, cur.PostID, cur.ParentID
	c.s.comments[id] = next
	return next, nil
}

func (c *CommentStore) DeleteTree(_ context.Context, id string, fn func(root blogguard.Comment, thread []blogguard.Comment) ([]string, error)) (int, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	root, ok := c.s.comments[id]
	if !ok {
		return 0, blogguard.ErrCommentNotFound
	}
	ids, err := fn(root, c.byPost(root.PostID))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, cid := range ids {
		if _, ok := c.s.comments[cid]; ok {
			delete(c.s.comments, cid)
			n++
		}
	}
	return n, nil
}

// byPost must be called with the lock held.
func (c *CommentStore) byPost(postID string) []blogguard.Comment {
	out := make([]blogguard.Comment, 0)
	for _, cm := range c.s.comments {
		if cm.PostID == postID {
			out = append(out, cm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

var _ comment.Store = (*CommentStore)(nil)
