package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/synergy-framework/blogguard/analytics"
)

type rolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,required"`
}

type usersResponse struct {
	Users  any `json:"users"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func (s *Server) mountAdmin(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats/summary", s.handleSiteSummary)
		r.Get("/stats/top", s.handleTopPosts)
		r.Get("/stats/views", s.handleViewsOverTime)
		r.Get("/users", s.handleListUsers)
		r.Put("/users/{userID}/roles", s.handleSetRoles)
		r.Delete("/users/{userID}", s.handleDeleteUser)
		r.Delete("/posts/{postID}", s.handleForceDeletePost)
		r.Delete("/comments/{commentID}", s.handleForceDeleteComment)
	})
}

func (s *Server) handleSiteSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.admin.SiteSummary(r.Context(), PrincipalFrom(r))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleTopPosts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	top, err := s.admin.TopPosts(r.Context(), PrincipalFrom(r), limit)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// handleViewsOverTime reads from and to as YYYY-MM-DD; the default window is the last 30 days.
func (s *Server) handleViewsOverTime(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -29)
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(analytics.DayLayout, v); err != nil {
			s.WriteError(w, r, fmt.Errorf("%w: from: %v", ErrBadRequest, err))
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(analytics.DayLayout, v); err != nil {
			s.WriteError(w, r, fmt.Errorf("%w: to: %v", ErrBadRequest, err))
			return
		}
	}
	days, err := s.admin.ViewsOverTime(r.Context(), PrincipalFrom(r), from, to)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	users, total, err := s.admin.ListUsers(r.Context(), PrincipalFrom(r), offset, limit)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users, Total: total, Offset: offset, Limit: limit})
}

func (s *Server) handleSetRoles(w http.ResponseWriter, r *http.Request) {
	var req rolesRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	if err := s.admin.SetUserRoles(r.Context(), PrincipalFrom(r), chi.URLParam(r, "userID"), req.Roles); err != nil {
		s.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteUser(r.Context(), PrincipalFrom(r), chi.URLParam(r, "userID")); err != nil {
		s.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForceDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeletePost(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID")); err != nil {
		s.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForceDeleteComment(w http.ResponseWriter, r *http.Request) {
	n, err := s.admin.DeleteComment(r.Context(), PrincipalFrom(r), chi.URLParam(r, "commentID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}
