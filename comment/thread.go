// Package comment maintains comment trees: root comments on published posts,
// same-post replies, owner-gated edits and subtree-cascading deletes.
package comment

import (
	"errors"
	"strings"
	"time"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/policy"
)

// ErrEmptyContent is returned for a comment without text.
var ErrEmptyContent = errors.New("comment: content is required")

// Thread evaluates comment mutations without touching storage.
type Thread struct {
	policy blogguard.Policy
}

// NewThread builds a Thread on pol; nil selects the default policy engine.
func NewThread(pol blogguard.Policy) Thread {
	if pol == nil {
		pol = policy.New()
	}
	return Thread{policy: pol}
}

func (t Thread) authorize(p blogguard.Principal, action blogguard.Action, res *blogguard.Resource) error {
	return t.policy.Can(p, action, res).Err(action, res)
}

// CreateRoot builds a root comment on post. Drafts take no comments.
func (t Thread) CreateRoot(p blogguard.Principal, post blogguard.Post, content string, now time.Time) (blogguard.Comment, error) {
	res := post.Resource()
	if err := t.authorize(p, blogguard.ActionCreateComment, res); err != nil {
		return blogguard.Comment{}, err
	}
	if !post.IsPublished() {
		return blogguard.Comment{}, blogguard.NewError(blogguard.ReasonPostNotCommentable, blogguard.ActionCreateComment, res)
	}
	if strings.TrimSpace(content) == "" {
		return blogguard.Comment{}, ErrEmptyContent
	}
	return blogguard.Comment{
		PostID:    post.ID,
		AuthorID:  p.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Reply builds a reply to parent. postID may be empty, in which case the
// reply inherits the parent's post; a different post is rejected as
// CrossPostReply before any authorization runs.
func (t Thread) Reply(p blogguard.Principal, parent *blogguard.Comment, postID, content string, now time.Time) (blogguard.Comment, error) {
	if parent == nil {
		return blogguard.Comment{}, blogguard.ErrCommentNotFound
	}
	if postID != "" && postID != parent.PostID {
		return blogguard.Comment{}, blogguard.NewError(blogguard.ReasonCrossPostReply, blogguard.ActionReplyToComment,
			blogguard.CommentResource(parent.ID, parent.AuthorID))
	}
	res := &blogguard.Resource{Kind: blogguard.KindPost, ID: parent.PostID}
	if err := t.authorize(p, blogguard.ActionReplyToComment, res); err != nil {
		return blogguard.Comment{}, err
	}
	if strings.TrimSpace(content) == "" {
		return blogguard.Comment{}, ErrEmptyContent
	}
	return blogguard.Comment{
		PostID:    parent.PostID,
		AuthorID:  p.ID,
		ParentID:  parent.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Edit replaces the content of c. Only the owner or an admin may edit.
func (t Thread) Edit(p blogguard.Principal, c blogguard.Comment, content string, now time.Time) (blogguard.Comment, error) {
	if err := t.authorize(p, blogguard.ActionEditComment, c.Resource()); err != nil {
		return c, err
	}
	if strings.TrimSpace(content) == "" {
		return c, ErrEmptyContent
	}
	c.Content = content
	c.UpdatedAt = now
	return c, nil
}

// Delete authorizes removal of root and returns the ids of root and all of
// its descendants found in thread.
func (t Thread) Delete(p blogguard.Principal, root blogguard.Comment, thread []blogguard.Comment) ([]string, error) {
	if err := t.authorize(p, blogguard.ActionDeleteComment, root.Resource()); err != nil {
		return nil, err
	}
	return Subtree(thread, root.ID), nil
}

// Subtree returns rootID followed by every descendant of it in all, found by
// breadth-first scan over a parent index. Cycles cannot loop.
func Subtree(all []blogguard.Comment, rootID string) []string {
	children := make(map[string][]string, len(all))
	for _, c := range all {
		if c.ParentID != "" {
			children[c.ParentID] = append(children[c.ParentID], c.ID)
		}
	}

	seen := map[string]bool{rootID: true}
	out := []string{rootID}
	for i := 0; i < len(out); i++ {
		for _, child := range children[out[i]] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
		}
	}
	return out
}
