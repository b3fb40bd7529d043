package comment

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/synergy-framework/blogguard"
)

var (
	now    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reader = blogguard.Principal{ID: "u9", Roles: []blogguard.Role{blogguard.RoleReader}}
	writer = blogguard.Principal{ID: "u7", Roles: []blogguard.Role{blogguard.RoleWriter}}
	admin  = blogguard.Principal{ID: "u1", Roles: []blogguard.Role{blogguard.RoleAdmin}}
	roles  = []blogguard.Principal{blogguard.Anonymous(), reader, writer, admin}
)

func TestThread_CreateRoot(t *testing.T) {
	th := NewThread(nil)
	published := blogguard.Post{ID: "p1", AuthorID: "u7", State: blogguard.StatePublished}
	draft := blogguard.Post{ID: "p2", AuthorID: "u7", State: blogguard.StateDraft}

	c, err := th.CreateRoot(reader, published, "hi", now)
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	if !c.IsRoot() || c.PostID != "p1" || c.AuthorID != "u9" {
		t.Fatalf("unexpected root: %+v", c)
	}

	if _, err := th.CreateRoot(reader, draft, "hi", now); !errors.Is(err, blogguard.ErrPostNotCommentable) {
		t.Fatalf("draft comment: %v", err)
	}
	if _, err := th.CreateRoot(admin, draft, "hi", now); !errors.Is(err, blogguard.ErrPostNotCommentable) {
		t.Fatalf("admin on draft should still be a lifecycle conflict: %v", err)
	}
	if _, err := th.CreateRoot(blogguard.Anonymous(), published, "hi", now); !errors.Is(err, blogguard.ErrInsufficientRole) {
		t.Fatalf("anonymous comment: %v", err)
	}
	if _, err := th.CreateRoot(reader, published, "  ", now); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("empty content: %v", err)
	}
}

func TestThread_Reply(t *testing.T) {
	th := NewThread(nil)
	parent := &blogguard.Comment{ID: "c5", PostID: "p1", AuthorID: "u7"}

	tests := []struct {
		name   string
		p      blogguard.Principal
		parent *blogguard.Comment
		postID string
		want   error
	}{
		{"inherit post", reader, parent, "", nil},
		{"same post", reader, parent, "p1", nil},
		{"missing parent", reader, nil, "p1", blogguard.ErrCommentNotFound},
		{"anonymous", blogguard.Anonymous(), parent, "p1", blogguard.ErrInsufficientRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := th.Reply(tt.p, tt.parent, tt.postID, "re", now)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("err=%v want %v", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("reply: %v", err)
			}
			if got.PostID != "p1" || got.ParentID != "c5" || got.AuthorID != tt.p.ID {
				t.Fatalf("unexpected reply: %+v", got)
			}
		})
	}
}

// A reply naming a different post than its parent is always rejected as a
// structural violation, whatever the principal's role.
func TestThread_CrossPostReply(t *testing.T) {
	th := NewThread(nil)
	parent := &blogguard.Comment{ID: "c1", PostID: "A", AuthorID: "u7"}

	for _, p := range roles {
		_, err := th.Reply(p, parent, "B", "re", now)
		if !errors.Is(err, blogguard.ErrCrossPostReply) {
			t.Fatalf("%v: expected cross-post reply, got %v", p, err)
		}
		if blogguard.ReasonOf(err).Kind() != blogguard.KindStructuralViolation {
			t.Fatalf("cross-post reply should be structural")
		}
	}
}

func TestThread_Edit(t *testing.T) {
	th := NewThread(nil)
	c := blogguard.Comment{ID: "c1", PostID: "p1", AuthorID: "u9", Content: "old"}

	got, err := th.Edit(reader, c, "new", now)
	if err != nil || got.Content != "new" {
		t.Fatalf("owner edit: %v %+v", err, got)
	}
	if _, err := th.Edit(writer, c, "new", now); !errors.Is(err, blogguard.ErrNotOwner) {
		t.Fatalf("writer should not edit another user's comment: %v", err)
	}
	if _, err := th.Edit(admin, c, "new", now); err != nil {
		t.Fatalf("admin edit: %v", err)
	}
}

func TestThread_DeleteReturnsSubtree(t *testing.T) {
	th := NewThread(nil)
	thread := []blogguard.Comment{
		{ID: "c5", PostID: "p1", AuthorID: "u9"},
		{ID: "c9", PostID: "p1", AuthorID: "u7", ParentID: "c5"},
		{ID: "c10", PostID: "p1", AuthorID: "u8", ParentID: "c9"},
		{ID: "c11", PostID: "p1", AuthorID: "u8"},
	}

	ids, err := th.Delete(reader, thread[0], thread)
	if err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if fmt.Sprint(ids) != "[c5 c9 c10]" {
		t.Fatalf("subtree: %v", ids)
	}
	if _, err := th.Delete(writer, thread[0], thread); !errors.Is(err, blogguard.ErrNotOwner) {
		t.Fatalf("foreign delete: %v", err)
	}
}

// Deleting a root with N descendants removes exactly N+1 comments.
func TestSubtree_Completeness(t *testing.T) {
	for _, n := range []int{0, 1, 5, 50} {
		var all []blogguard.Comment
		all = append(all, blogguard.Comment{ID: "root"})
		// mix of a chain and fan-out
		for i := 0; i < n; i++ {
			parent := "root"
			if i > 0 && i%2 == 0 {
				parent = fmt.Sprintf("r%d", i-1)
			}
			all = append(all, blogguard.Comment{ID: fmt.Sprintf("r%d", i), ParentID: parent})
		}
		all = append(all, blogguard.Comment{ID: "other-root"}, blogguard.Comment{ID: "other-child", ParentID: "other-root"})

		if got := len(Subtree(all, "root")); got != n+1 {
			t.Fatalf("n=%d: subtree size %d", n, got)
		}
	}

	cyclic := []blogguard.Comment{{ID: "a", ParentID: "b"}, {ID: "b", ParentID: "a"}}
	if got := Subtree(cyclic, "a"); len(got) != 2 {
		t.Fatalf("cycle: %v", got)
	}
}
