package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type commentRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

type replyRequest struct {
	// PostID is optional; when set it must match the parent's post.
	PostID  string `json:"post_id"`
	Content string `json:"content" validate:"required,max=10000"`
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}

func (s *Server) mountComments(r chi.Router) {
	r.Get("/posts/{postID}/comments", s.handleListComments)
	r.Post("/posts/{postID}/comments", s.handleCreateComment)
	r.Route("/comments/{commentID}", func(r chi.Router) {
		r.Get("/replies", s.handleListReplies)
		r.Post("/replies", s.handleReply)
		r.Patch("/", s.handleEditComment)
		r.Delete("/", s.handleDeleteComment)
	})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.comments.List(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	c, err := s.comments.CreateRoot(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"), req.Content)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := s.comments.Replies(r.Context(), PrincipalFrom(r), chi.URLParam(r, "commentID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replies)
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	c, err := s.comments.Reply(r.Context(), PrincipalFrom(r), chi.URLParam(r, "commentID"), req.PostID, req.Content)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleEditComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	c, err := s.comments.Edit(r.Context(), PrincipalFrom(r), chi.URLParam(r, "commentID"), req.Content)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	n, err := s.comments.Delete(r.Context(), PrincipalFrom(r), chi.URLParam(r, "commentID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}
