package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/post"
)

func TestPostStore(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	posts := svc.Posts()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = posts.Create(ctx, blogguard.Post{ID: "p1", AuthorID: "u1", CreatedAt: base})
	_ = posts.Create(ctx, blogguard.Post{ID: "p2", AuthorID: "u2", CreatedAt: base.Add(time.Hour), State: blogguard.StatePublished})
	_ = posts.Create(ctx, blogguard.Post{ID: "p3", AuthorID: "u1", CreatedAt: base.Add(2 * time.Hour)})

	got, _ := posts.List(ctx, post.Filter{AuthorID: "u1"})
	if len(got) != 2 || got[0].ID != "p3" {
		t.Fatalf("list by author newest first: %+v", got)
	}
	got, _ = posts.List(ctx, post.Filter{State: post.Published()})
	if len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("list published: %+v", got)
	}
	got, _ = posts.List(ctx, post.Filter{Offset: 1, Limit: 1})
	if len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("paginate: %+v", got)
	}

	boom := errors.New("boom")
	if _, err := posts.Update(ctx, "p1", func(p blogguard.Post) (blogguard.Post, error) {
		p.Title = "changed"
		return p, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("update error passthrough: %v", err)
	}
	if p, _ := posts.Get(ctx, "p1"); p.Title != "" {
		t.Fatalf("failed update must not write")
	}
	if _, err := posts.Update(ctx, "nope", nil); !errors.Is(err, blogguard.ErrPostNotFound) {
		t.Fatalf("update missing: %v", err)
	}
}

func TestPostStore_DeleteCascadesComments(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	posts, comments := svc.Posts(), svc.Comments()

	_ = posts.Create(ctx, blogguard.Post{ID: "p1"})
	_ = posts.Create(ctx, blogguard.Post{ID: "p2"})
	seedComment(t, comments, blogguard.Comment{ID: "c1", PostID: "p1"})
	seedComment(t, comments, blogguard.Comment{ID: "c2", PostID: "p1", ParentID: "c1"})
	seedComment(t, comments, blogguard.Comment{ID: "c3", PostID: "p2"})

	denied := errors.New("denied")
	if err := posts.Delete(ctx, "p1", func(blogguard.Post) error { return denied }); !errors.Is(err, denied) {
		t.Fatalf("check error: %v", err)
	}
	if left, _ := comments.ListByPost(ctx, "p1"); len(left) != 2 {
		t.Fatalf("rejected delete must leave comments: %d", len(left))
	}

	if err := posts.Delete(ctx, "p1", func(blogguard.Post) error { return nil }); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if left, _ := comments.ListByPost(ctx, "p1"); len(left) != 0 {
		t.Fatalf("comments left after post delete: %d", len(left))
	}
	if left, _ := comments.ListByPost(ctx, "p2"); len(left) != 1 {
		t.Fatalf("other post's comments touched")
	}

	inv, _ := svc.Inventory(ctx)
	if inv.Posts != 1 || inv.Comments != 1 {
		t.Fatalf("inventory: %+v", inv)
	}
}

func TestCommentStore(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	comments := svc.Comments()
	_ = svc.Posts().Create(ctx, blogguard.Post{ID: "p1"})

	if _, err := comments.Create(ctx, "missing", nil); !errors.Is(err, blogguard.ErrPostNotFound) {
		t.Fatalf("orphan comment: %v", err)
	}
	if _, err := comments.Create(ctx, "p1", func(blogguard.Post) (blogguard.Comment, error) {
		return blogguard.Comment{ID: "c0", ParentID: "missing"}, nil
	}); !errors.Is(err, blogguard.ErrCommentNotFound) {
		t.Fatalf("dangling parent: %v", err)
	}
	closed := errors.New("closed")
	if _, err := comments.Create(ctx, "p1", func(target blogguard.Post) (blogguard.Comment, error) {
		if target.ID != "p1" {
			t.Fatalf("fn saw %+v", target)
		}
		return blogguard.Comment{}, closed
	}); !errors.Is(err, closed) {
		t.Fatalf("check error passthrough: %v", err)
	}
	stored, err := comments.Create(ctx, "p1", func(blogguard.Post) (blogguard.Comment, error) {
		return blogguard.Comment{ID: "c9", PostID: "elsewhere"}, nil
	})
	if err != nil || stored.PostID != "p1" {
		t.Fatalf("comment must land on the locked post: %v %+v", err, stored)
	}
	if left, _ := comments.ListByPost(ctx, "p1"); len(left) != 1 {
		t.Fatalf("failed creates must not write: %d", len(left))
	}
	if _, err := comments.DeleteTree(ctx, "c9", func(blogguard.Comment, []blogguard.Comment) ([]string, error) {
		return []string{"c9"}, nil
	}); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	seedComment(t, comments, blogguard.Comment{ID: "c1", PostID: "p1", Content: "a"})
	updated, err := comments.Update(ctx, "c1", func(c blogguard.Comment) (blogguard.Comment, error) {
		c.Content = "b"
		c.PostID = "elsewhere"
		return c, nil
	})
	if err != nil || updated.Content != "b" || updated.PostID != "p1" {
		t.Fatalf("update: %v %+v", err, updated)
	}

	seedComment(t, comments, blogguard.Comment{ID: "c2", PostID: "p1", ParentID: "c1"})
	n, err := comments.DeleteTree(ctx, "c1", func(root blogguard.Comment, thread []blogguard.Comment) ([]string, error) {
		if root.ID != "c1" || len(thread) != 2 {
			t.Fatalf("unexpected tree input: %+v %d", root, len(thread))
		}
		return []string{"c1", "c2"}, nil
	})
	if err != nil || n != 2 {
		t.Fatalf("delete tree: %d %v", n, err)
	}
	if _, err := comments.DeleteTree(ctx, "c1", nil); !errors.Is(err, blogguard.ErrCommentNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
}

func seedComment(t *testing.T, comments *CommentStore, c blogguard.Comment) {
	t.Helper()
	_, err := comments.Create(context.Background(), c.PostID, func(blogguard.Post) (blogguard.Comment, error) {
		return c, nil
	})
	if err != nil {
		t.Fatalf("seed %s: %v", c.ID, err)
	}
}
