package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/post"
)

type createPostRequest struct {
	Title      string `json:"title" validate:"required,max=200"`
	Slug       string `json:"slug" validate:"omitempty,max=200"`
	Content    string `json:"content"`
	CategoryID string `json:"category_id"`
}

type editPostRequest struct {
	Title      *string `json:"title" validate:"omitempty,max=200"`
	Slug       *string `json:"slug" validate:"omitempty,max=200"`
	Content    *string `json:"content"`
	CategoryID *string `json:"category_id"`
}

type likeResponse struct {
	Changed bool `json:"changed"`
}

func (s *Server) mountPosts(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", s.handleListPublished)
		r.Get("/drafts", s.handleListDrafts)
		r.Post("/", s.handleCreatePost)
		r.Route("/{postID}", func(r chi.Router) {
			r.Get("/", s.handleViewPost)
			r.Patch("/", s.handleEditPost)
			r.Delete("/", s.handleDeletePost)
			r.Post("/publish", s.handlePublish)
			r.Post("/unpublish", s.handleUnpublish)
			r.Post("/like", s.handleLike)
			r.Delete("/like", s.handleUnlike)
			r.Get("/stats", s.handlePostStats)
			if s.taxonomy != nil {
				r.Get("/tags", s.handlePostTags)
				r.Put("/tags/{tagID}", s.handleTagPost)
				r.Delete("/tags/{tagID}", s.handleUntagPost)
			}
		})
	})
}

func (s *Server) handleListPublished(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	posts, err := s.posts.ListPublished(r.Context(), offset, limit)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	posts, err := s.posts.ListDrafts(r.Context(), PrincipalFrom(r), offset, limit)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	p, err := s.posts.Create(r.Context(), PrincipalFrom(r), post.NewPost{
		Title:      req.Title,
		Slug:       req.Slug,
		Content:    req.Content,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleViewPost returns the post and, when it is published, emits one view event.
func (s *Server) handleViewPost(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.View(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request) {
	var req editPostRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	p, err := s.posts.Edit(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"), post.Patch{
		Title:      req.Title,
		Slug:       req.Slug,
		Content:    req.Content,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.posts.Delete(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID")); err != nil {
		s.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.posts.Publish)
}

func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.posts.Unpublish)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, blogguard.Principal, string) (blogguard.Post, error)) {
	p, err := fn(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.engage(w, r, s.posts.Like)
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	s.engage(w, r, s.posts.Unlike)
}

func (s *Server) engage(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, blogguard.Principal, string) (bool, error)) {
	changed, err := fn(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Changed: changed})
}

func (s *Server) handlePostStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.posts.Stats(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
