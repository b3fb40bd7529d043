// Package post governs the draft/published lifecycle of posts.
//
// Lifecycle holds the pure authorize-then-transition rules. Service applies
// them against a Store, which supplies the per-post mutual exclusion.
package post

import (
	"time"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/policy"
)

// Patch carries the editable fields of a post. Nil fields are left unchanged.
type Patch struct {
	Title      *string
	Slug       *string
	Content    *string
	CategoryID *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Slug == nil && p.Content == nil && p.CategoryID == nil
}

// Lifecycle evaluates post transitions. It never touches storage.
type Lifecycle struct {
	policy blogguard.Policy
}

// NewLifecycle builds a Lifecycle on pol; nil selects the default policy engine.
func NewLifecycle(pol blogguard.Policy) Lifecycle {
	if pol == nil {
		pol = policy.New()
	}
	return Lifecycle{policy: pol}
}

func (l Lifecycle) authorize(p blogguard.Principal, action blogguard.Action, res *blogguard.Resource) error {
	return l.policy.Can(p, action, res).Err(action, res)
}

// Create authorizes a new post and returns it in the Draft state, owned by p.
func (l Lifecycle) Create(p blogguard.Principal, draft blogguard.Post, now time.Time) (blogguard.Post, error) {
	if err := l.authorize(p, blogguard.ActionCreatePost, nil); err != nil {
		return blogguard.Post{}, err
	}
	draft.AuthorID = p.ID
	draft.State = blogguard.StateDraft
	draft.PublishedAt = nil
	draft.CreatedAt = now
	draft.UpdatedAt = now
	return draft, nil
}

// Publish moves a Draft post to Published.
func (l Lifecycle) Publish(p blogguard.Principal, post blogguard.Post, now time.Time) (blogguard.Post, error) {
	res := post.Resource()
	if err := l.authorize(p, blogguard.ActionPublishPost, res); err != nil {
		return post, err
	}
	if post.State == blogguard.StatePublished {
		return post, blogguard.NewError(blogguard.ReasonAlreadyPublished, blogguard.ActionPublishPost, res)
	}
	post.State = blogguard.StatePublished
	post.PublishedAt = &now
	post.UpdatedAt = now
	return post, nil
}

// Unpublish moves a Published post back to Draft.
func (l Lifecycle) Unpublish(p blogguard.Principal, post blogguard.Post, now time.Time) (blogguard.Post, error) {
	res := post.Resource()
	if err := l.authorize(p, blogguard.ActionUnpublishPost, res); err != nil {
		return post, err
	}
	if post.State != blogguard.StatePublished {
		return post, blogguard.NewError(blogguard.ReasonNotPublished, blogguard.ActionUnpublishPost, res)
	}
	post.State = blogguard.StateDraft
	post.PublishedAt = nil
	post.UpdatedAt = now
	return post, nil
}

// Edit applies patch in either state. The state is never changed.
func (l Lifecycle) Edit(p blogguard.Principal, post blogguard.Post, patch Patch, now time.Time) (blogguard.Post, error) {
	if err := l.authorize(p, blogguard.ActionEditPost, post.Resource()); err != nil {
		return post, err
	}
	if patch.Title != nil {
		post.Title = *patch.Title
	}
	if patch.Slug != nil {
		post.Slug = *patch.Slug
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}
	if patch.CategoryID != nil {
		post.CategoryID = *patch.CategoryID
	}
	post.UpdatedAt = now
	return post, nil
}

// Delete authorizes removal of post in either state.
func (l Lifecycle) Delete(p blogguard.Principal, post blogguard.Post) error {
	return l.authorize(p, blogguard.ActionDeletePost, post.Resource())
}

// CanView returns nil when p may see post. Published posts are visible to
// everyone; drafts only to those who may edit them.
func (l Lifecycle) CanView(p blogguard.Principal, post blogguard.Post) error {
	if post.State == blogguard.StatePublished {
		return l.authorize(p, blogguard.ActionReadPost, post.Resource())
	}
	return l.authorize(p, blogguard.ActionEditPost, post.Resource())
}

// Engage authorizes a like or unlike of post. It takes the commenting role
// and, like comments, only published posts.
func (l Lifecycle) Engage(p blogguard.Principal, post blogguard.Post) error {
	res := post.Resource()
	if err := l.authorize(p, blogguard.ActionCreateComment, res); err != nil {
		return err
	}
	if !post.IsPublished() {
		return blogguard.NewError(blogguard.ReasonPostNotCommentable, blogguard.ActionCreateComment, res)
	}
	return nil
}
