package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synergy-framework/blogguard/admin"
	"github.com/synergy-framework/blogguard/analytics"
	"github.com/synergy-framework/blogguard/comment"
	"github.com/synergy-framework/blogguard/post"
	"github.com/synergy-framework/blogguard/principal"
	"github.com/synergy-framework/blogguard/taxonomy"
)

type testServer struct {
	handler http.Handler
	posts   *post.Service
	tokens  map[string]string
	ids     map[string]string
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	svc := withAuthService(t)
	counters := analytics.NewMemoryStore()
	categories := taxonomy.Categories{Store: svc.Terms()}
	posts := post.NewService(svc.Posts(), nil,
		post.WithViewRecorder(counters),
		post.WithEngagement(counters),
		post.WithCategories(categories))
	comments := comment.NewService(svc.Comments(), svc.Posts(), nil)
	gate := admin.New(admin.Deps{
		Stats:    analytics.NewStats(counters, svc),
		Counters: counters,
		Users:    svc,
		Posts:    svc.Posts(),
		Comments: svc.Comments(),
	})

	srv, err := NewServer(Deps{
		Resolver: principal.NewResolver(svc, principal.WithRoleLookup(svc.Roles())),
		Accounts: svc,
		Posts:    posts,
		Comments: comments,
		Taxonomy: taxonomy.NewService(svc.Terms(), posts, nil),
		Admin:    gate,
		Config:   cfg,
	})
	require.NoError(t, err)

	ts := &testServer{handler: srv.Routes(), posts: posts, tokens: map[string]string{}, ids: map[string]string{}}
	for name, role := range map[string]string{"root": "admin", "u7": "writer", "u8": "writer", "u9": "reader"} {
		ts.ids[name], ts.tokens[name] = tokenFor(t, svc, name, role)
	}
	return ts
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimit = 0
	return cfg
}

func (ts *testServer) do(t *testing.T, method, path, user string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[user])
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	out := map[string]any{}
	if rr.Body.Len() > 0 && rr.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	}
	return rr.Code, out
}

func (ts *testServer) list(t *testing.T, path, user string) []map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[user])
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func (ts *testServer) draft(t *testing.T, owner, title string) string {
	t.Helper()
	code, body := ts.do(t, http.MethodPost, "/api/v1/posts", owner, map[string]any{"title": title, "content": "body"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "draft", body["state"])
	return body["id"].(string)
}

func TestServer_PostLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig())
	id := ts.draft(t, "u7", "Hello World")

	// anonymous edit is a missing sign-in, not a forbidden action
	code, body := ts.do(t, http.MethodPatch, "/api/v1/posts/"+id, "", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "insufficient_role", body["reason"])

	code, body = ts.do(t, http.MethodPatch, "/api/v1/posts/"+id, "u8", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_owner", body["reason"])

	code, _ = ts.do(t, http.MethodGet, "/api/v1/posts/"+id, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code, "drafts are hidden from anonymous readers")

	code, body = ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/publish", "u7", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "published", body["state"])

	code, body = ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/publish", "u7", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_published", body["reason"])
	assert.Equal(t, "lifecycle_conflict", body["kind"])

	code, body = ts.do(t, http.MethodGet, "/api/v1/posts/"+id, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hello-world", body["slug"])
	ts.posts.Wait()

	code, body = ts.do(t, http.MethodGet, "/api/v1/posts/"+id+"/stats", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["views"])

	code, _ = ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/unpublish", "u7", nil)
	require.Equal(t, http.StatusOK, code)
	code, body = ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/unpublish", "u7", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_published", body["reason"])

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/posts/"+id, "u7", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = ts.do(t, http.MethodGet, "/api/v1/posts/"+id, "u7", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Taxonomy(t *testing.T) {
	ts := newTestServer(t, testConfig())

	code, body := ts.do(t, http.MethodPost, "/api/v1/categories", "u9", map[string]any{"name": "News"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "insufficient_role", body["reason"])

	code, body = ts.do(t, http.MethodPost, "/api/v1/categories", "u7", map[string]any{"name": "News"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "category", body["kind"])
	assert.Equal(t, "news", body["slug"])
	catID := body["id"].(string)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/categories", "u8", map[string]any{"name": "news"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = ts.do(t, http.MethodPost, "/api/v1/tags", "u7", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodPost, "/api/v1/tags", "u7", map[string]any{"name": "Go"})
	require.Equal(t, http.StatusCreated, code)
	tagID := body["id"].(string)
	code, _ = ts.do(t, http.MethodGet, "/api/v1/categories/"+tagID, "", nil)
	assert.Equal(t, http.StatusNotFound, code, "a tag is not a category")

	code, body = ts.do(t, http.MethodPost, "/api/v1/posts", "u7", map[string]any{"title": "filed", "category_id": catID})
	require.Equal(t, http.StatusCreated, code)
	postID := body["id"].(string)
	code, _ = ts.do(t, http.MethodPost, "/api/v1/posts", "u7", map[string]any{"title": "lost", "category_id": "nope"})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = ts.do(t, http.MethodPut, "/api/v1/posts/"+postID+"/tags/"+tagID, "u8", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_owner", body["reason"])
	code, body = ts.do(t, http.MethodPut, "/api/v1/posts/"+postID+"/tags/"+tagID, "u7", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["changed"])

	assert.Empty(t, ts.list(t, "/api/v1/tags/"+tagID+"/posts", ""), "drafts are not listed")
	code, _ = ts.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/publish", "u7", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, ts.list(t, "/api/v1/tags/"+tagID+"/posts", ""), 1)
	assert.Len(t, ts.list(t, "/api/v1/categories/"+catID+"/posts", ""), 1)
	tags := ts.list(t, "/api/v1/posts/"+postID+"/tags", "")
	require.Len(t, tags, 1)
	assert.Equal(t, "Go", tags[0]["name"])

	code, body = ts.do(t, http.MethodPatch, "/api/v1/tags/"+tagID, "u8", map[string]any{"name": "Golang"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Golang", body["name"])

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/categories/"+catID, "u7", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(t, http.MethodDelete, "/api/v1/categories/"+catID, "root", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, body = ts.do(t, http.MethodGet, "/api/v1/posts/"+postID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["category_id"], "deleted category is cleared from its posts")
	assert.Empty(t, ts.list(t, "/api/v1/categories", ""))

	code, body = ts.do(t, http.MethodDelete, "/api/v1/posts/"+postID+"/tags/"+tagID, "u7", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["changed"])
}

func TestServer_Comments(t *testing.T) {
	ts := newTestServer(t, testConfig())
	id := ts.draft(t, "u7", "Thread")

	code, body := ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/comments", "u9", map[string]any{"content": "early"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "post_not_commentable", body["reason"])

	ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/publish", "u7", nil)
	other := ts.draft(t, "u7", "Other")

	code, body = ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/comments", "u9", map[string]any{"content": "first"})
	require.Equal(t, http.StatusCreated, code)
	c5 := body["id"].(string)

	code, body = ts.do(t, http.MethodPost, "/api/v1/comments/"+c5+"/replies", "u8", map[string]any{"content": "reply"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, id, body["post_id"])
	assert.Equal(t, c5, body["parent_comment_id"])

	code, body = ts.do(t, http.MethodPost, "/api/v1/comments/"+c5+"/replies", "root", map[string]any{"post_id": other, "content": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "cross_post_reply", body["reason"])

	code, body = ts.do(t, http.MethodPatch, "/api/v1/comments/"+c5, "u7", map[string]any{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_owner", body["reason"])

	code, body = ts.do(t, http.MethodDelete, "/api/v1/comments/"+c5, "u9", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["deleted"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/"+id+"/comments", nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestServer_Likes(t *testing.T) {
	ts := newTestServer(t, testConfig())
	id := ts.draft(t, "u7", "Liked")
	ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/publish", "u7", nil)

	code, _ := ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/like", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/like", "u9", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["changed"])
	_, body = ts.do(t, http.MethodPost, "/api/v1/posts/"+id+"/like", "u9", nil)
	assert.Equal(t, false, body["changed"])

	_, body = ts.do(t, http.MethodGet, "/api/v1/posts/"+id+"/stats", "", nil)
	assert.Equal(t, float64(1), body["likes"])

	_, body = ts.do(t, http.MethodDelete, "/api/v1/posts/"+id+"/like", "u9", nil)
	assert.Equal(t, true, body["changed"])
}

func TestServer_Admin(t *testing.T) {
	ts := newTestServer(t, testConfig())

	code, body := ts.do(t, http.MethodDelete, "/api/v1/admin/users/"+ts.ids["root"], "root", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "self_deletion_forbidden", body["reason"])
	assert.Equal(t, "administrative_rule", body["kind"])

	code, _ = ts.do(t, http.MethodGet, "/api/v1/admin/stats/summary", "u7", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(t, http.MethodGet, "/api/v1/admin/stats/summary", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = ts.do(t, http.MethodGet, "/api/v1/admin/stats/summary", "root", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(4), body["users"])

	code, body = ts.do(t, http.MethodGet, "/api/v1/admin/users?limit=2", "root", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(4), body["total"])
	assert.Len(t, body["users"], 2)

	code, _ = ts.do(t, http.MethodGet, "/api/v1/admin/stats/views?from=2024-01-01&to=2024-01-03", "root", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodGet, "/api/v1/admin/stats/views?from=yesterday", "root", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPut, "/api/v1/admin/users/"+ts.ids["u9"]+"/roles", "root", map[string]any{"roles": []string{"writer"}})
	require.Equal(t, http.StatusNoContent, code)
	// the role store is read per request, so the existing token now carries writer rights
	code, _ = ts.do(t, http.MethodPost, "/api/v1/posts", "u9", map[string]any{"title": "Promoted"})
	assert.Equal(t, http.StatusCreated, code)

	code, _ = ts.do(t, http.MethodPut, "/api/v1/admin/users/"+ts.ids["u9"]+"/roles", "root", map[string]any{"roles": []string{"owner"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/admin/users/"+ts.ids["u8"], "root", nil)
	assert.Equal(t, http.StatusNoContent, code)
	// deleted accounts resolve to anonymous
	code, _ = ts.do(t, http.MethodPost, "/api/v1/posts", "u8", map[string]any{"title": "Ghost"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestServer_AuthFlow(t *testing.T) {
	ts := newTestServer(t, testConfig())

	code, _ := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{"username": "ann", "email": "bad", "password": "password1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{"username": "ann", "email": "ann@example.com", "password": "password1"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, []any{"reader"}, body["roles"])

	code, _ = ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{"username": "ann", "email": "ann2@example.com", "password": "password1"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"username": "ann", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"username": "ann", "password": "password1"})
	require.Equal(t, http.StatusOK, code)
	ts.tokens["ann"] = body["access_token"].(string)
	refresh := body["refresh_token"].(string)

	code, body = ts.do(t, http.MethodGet, "/api/v1/auth/me", "ann", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ann", body["username"])

	code, body = ts.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["access_token"])
	code, _ = ts.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, code, "refresh tokens are single use")

	code, _ = ts.do(t, http.MethodPost, "/api/v1/auth/logout", "ann", nil)
	require.Equal(t, http.StatusNoContent, code)
	code, _ = ts.do(t, http.MethodGet, "/api/v1/auth/me", "ann", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestServer_Ambient(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 2
	ts := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var roles []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &roles))
	assert.Len(t, roles, 3)

	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestNewServer_InvalidConfig(t *testing.T) {
	_, err := NewServer(Deps{Config: Config{TokenHeader: "Authorization", RateLimit: -1}})
	assert.Error(t, err)
}
