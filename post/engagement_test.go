package post_test

import (
	"context"
	"errors"
	"testing"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/analytics"
	"github.com/synergy-framework/blogguard/post"
)

func TestService_Likes(t *testing.T) {
	ctx := context.Background()
	counters := analytics.NewMemoryStore()
	svc, _ := setup(t, post.WithEngagement(counters))
	reader := blogguard.Principal{ID: "r1", Roles: []blogguard.Role{blogguard.RoleReader}}

	p, err := svc.Create(ctx, u7, post.NewPost{Title: "Likes"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Like(ctx, reader, p.ID); !errors.Is(err, blogguard.ErrPostNotCommentable) {
		t.Fatalf("like on draft: want PostNotCommentable, got %v", err)
	}

	if _, err := svc.Publish(ctx, u7, p.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := svc.Like(ctx, blogguard.Anonymous(), p.ID); !errors.Is(err, blogguard.ErrInsufficientRole) {
		t.Fatalf("anonymous like: want InsufficientRole, got %v", err)
	}

	added, err := svc.Like(ctx, reader, p.ID)
	if err != nil || !added {
		t.Fatalf("first like: %v %v", added, err)
	}
	if added, _ := svc.Like(ctx, reader, p.ID); added {
		t.Fatalf("second like must not count")
	}
	if _, err := svc.Like(ctx, u8, p.ID); err != nil {
		t.Fatalf("like by u8: %v", err)
	}

	stats, err := svc.Stats(ctx, blogguard.Anonymous(), p.ID)
	if err != nil || stats.Likes != 2 {
		t.Fatalf("stats: %+v %v", stats, err)
	}

	if removed, _ := svc.Unlike(ctx, reader, p.ID); !removed {
		t.Fatalf("unlike should remove")
	}
	if removed, _ := svc.Unlike(ctx, reader, p.ID); removed {
		t.Fatalf("second unlike should be a no-op")
	}
}

func TestService_StatsHidesDrafts(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, post.WithEngagement(analytics.NewMemoryStore()))

	p, _ := svc.Create(ctx, u7, post.NewPost{Title: "Hidden"})
	if _, err := svc.Stats(ctx, u8, p.ID); !errors.Is(err, blogguard.ErrNotOwner) {
		t.Fatalf("stats of foreign draft: want NotOwner, got %v", err)
	}
	if _, err := svc.Stats(ctx, u7, p.ID); err != nil {
		t.Fatalf("owner stats: %v", err)
	}
}

func TestService_EngagementUnavailable(t *testing.T) {
	svc, _ := setup(t)
	if _, err := svc.Like(context.Background(), u7, "x"); !errors.Is(err, post.ErrEngagementUnavailable) {
		t.Fatalf("want ErrEngagementUnavailable, got %v", err)
	}
}
