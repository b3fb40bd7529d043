// Package admin gates the admin-only reads and writes of the platform. It
// performs no aggregation itself: statistics come from the analytics
// collaborator once the gate allows the call.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/analytics"
	"github.com/synergy-framework/blogguard/comment"
	"github.com/synergy-framework/blogguard/policy"
	"github.com/synergy-framework/blogguard/post"
)

// ErrUnknownRole is returned when a role assignment names no known role.
var ErrUnknownRole = errors.New("admin: unknown role")

// Stats is the query side of the analytics collaborator.
type Stats interface {
	SiteSummary(ctx context.Context) (analytics.Summary, error)
	TopPosts(ctx context.Context, limit int) ([]analytics.PostViews, error)
	ViewsOverTime(ctx context.Context, from, to time.Time) ([]analytics.DailyViews, error)
}

// Users is the account collaborator.
type Users interface {
	ListUsers(ctx context.Context, offset, limit int) ([]blogguard.User, int, error)
	SetUserRoles(ctx context.Context, userID string, roles []string) error
	DeleteUser(ctx context.Context, userID string) error
}

// Counters drops the analytics of removed posts.
type Counters interface {
	Forget(ctx context.Context, postID string) error
}

// Gate is the admin permission checkpoint.
type Gate struct {
	policy   blogguard.Policy
	stats    Stats
	counters Counters
	users    Users
	posts    post.Store
	comments comment.Store
	logger   *slog.Logger
}

// Deps are the collaborators behind the gate. Nil collaborators make the
// matching operations unavailable.
type Deps struct {
	Policy   blogguard.Policy
	Stats    Stats
	Counters Counters
	Users    Users
	Posts    post.Store
	Comments comment.Store
	Logger   *slog.Logger
}

// ErrUnavailable is returned by an operation whose collaborator is not configured.
var ErrUnavailable = errors.New("admin: operation not configured")

// New builds a Gate.
func New(d Deps) *Gate {
	g := &Gate{
		policy:   d.Policy,
		stats:    d.Stats,
		counters: d.Counters,
		users:    d.Users,
		posts:    d.Posts,
		comments: d.Comments,
		logger:   d.Logger,
	}
	if g.policy == nil {
		g.policy = policy.New()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

func (g *Gate) check(ctx context.Context, p blogguard.Principal, action blogguard.Action, res *blogguard.Resource) error {
	err := g.policy.Can(p, action, res).Err(action, res)
	if err != nil {
		g.logger.DebugContext(ctx, "admin: rejected",
			slog.String("principal", p.String()),
			slog.String("action", action.String()),
			slog.String("reason", blogguard.ReasonOf(err).String()))
	}
	return err
}

// SiteSummary returns the site-wide counters.
func (g *Gate) SiteSummary(ctx context.Context, p blogguard.Principal) (analytics.Summary, error) {
	if err := g.check(ctx, p, blogguard.ActionViewAdminStats, nil); err != nil {
		return analytics.Summary{}, err
	}
	if g.stats == nil {
		return analytics.Summary{}, ErrUnavailable
	}
	return g.stats.SiteSummary(ctx)
}

// TopPosts returns the most viewed posts.
func (g *Gate) TopPosts(ctx context.Context, p blogguard.Principal, limit int) ([]analytics.PostViews, error) {
	if err := g.check(ctx, p, blogguard.ActionViewAdminStats, nil); err != nil {
		return nil, err
	}
	if g.stats == nil {
		return nil, ErrUnavailable
	}
	return g.stats.TopPosts(ctx, limit)
}

// ViewsOverTime returns daily view totals between from and to inclusive.
func (g *Gate) ViewsOverTime(ctx context.Context, p blogguard.Principal, from, to time.Time) ([]analytics.DailyViews, error) {
	if err := g.check(ctx, p, blogguard.ActionViewAdminStats, nil); err != nil {
		return nil, err
	}
	if g.stats == nil {
		return nil, ErrUnavailable
	}
	return g.stats.ViewsOverTime(ctx, from, to)
}

// ListUsers returns a page of accounts and the total count.
func (g *Gate) ListUsers(ctx context.Context, p blogguard.Principal, offset, limit int) ([]blogguard.User, int, error) {
	if err := g.check(ctx, p, blogguard.ActionManageUsers, nil); err != nil {
		return nil, 0, err
	}
	if g.users == nil {
		return nil, 0, ErrUnavailable
	}
	return g.users.ListUsers(ctx, offset, limit)
}

// SetUserRoles replaces the role set of a user.
func (g *Gate) SetUserRoles(ctx context.Context, p blogguard.Principal, userID string, roles []string) error {
	if err := g.check(ctx, p, blogguard.ActionManageUsers, blogguard.UserResource(userID)); err != nil {
		return err
	}
	for _, name := range roles {
		r, ok := blogguard.ParseRole(name)
		if !ok || r == blogguard.RoleAnonymous {
			return fmt.Errorf("%w: %q", ErrUnknownRole, name)
		}
	}
	if g.users == nil {
		return ErrUnavailable
	}
	return g.users.SetUserRoles(ctx, userID, blogguard.RoleNames(blogguard.ParseRoles(roles)))
}

// DeleteUser removes an account. An admin may never delete their own
// account through this path.
func (g *Gate) DeleteUser(ctx context.Context, p blogguard.Principal, userID string) error {
	res := blogguard.UserResource(userID)
	if err := g.check(ctx, p, blogguard.ActionManageUsers, res); err != nil {
		return err
	}
	if res.ID == p.ID {
		g.logger.DebugContext(ctx, "admin: self deletion refused", slog.String("principal", p.String()))
		return blogguard.NewError(blogguard.ReasonSelfDeletionForbidden, blogguard.ActionManageUsers, res)
	}
	if g.users == nil {
		return ErrUnavailable
	}
	return g.users.DeleteUser(ctx, userID)
}

// DeletePost force-deletes any post together with its comments.
func (g *Gate) DeletePost(ctx context.Context, p blogguard.Principal, postID string) error {
	if err := g.check(ctx, p, blogguard.ActionManageUsers, nil); err != nil {
		return err
	}
	if g.posts == nil {
		return ErrUnavailable
	}
	if err := g.posts.Delete(ctx, postID, func(blogguard.Post) error { return nil }); err != nil {
		return err
	}
	if g.counters != nil {
		if err := g.counters.Forget(ctx, postID); err != nil {
			g.logger.WarnContext(ctx, "admin: counters not dropped",
				slog.String("post_id", postID), slog.Any("error", err))
		}
	}
	return nil
}

// DeleteComment force-deletes any comment together with its replies and
// returns the number removed.
func (g *Gate) DeleteComment(ctx context.Context, p blogguard.Principal, commentID string) (int, error) {
	if err := g.check(ctx, p, blogguard.ActionManageUsers, nil); err != nil {
		return 0, err
	}
	if g.comments == nil {
		return 0, ErrUnavailable
	}
	return g.comments.DeleteTree(ctx, commentID, func(root blogguard.Comment, thread []blogguard.Comment) ([]string, error) {
		return comment.Subtree(thread, root.ID), nil
	})
}
