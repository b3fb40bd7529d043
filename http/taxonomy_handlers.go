package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/taxonomy"
)

type createTermRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type editTermRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type tagResponse struct {
	Changed bool `json:"changed"`
}

func (s *Server) mountTaxonomy(r chi.Router) {
	r.Route("/categories", s.termRoutes(blogguard.TermCategory))
	r.Route("/tags", s.termRoutes(blogguard.TermTag))
}

func (s *Server) termRoutes(kind blogguard.TermKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			offset, limit := page(r)
			terms, err := s.taxonomy.List(r.Context(), kind, offset, limit)
			if err != nil {
				s.WriteError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, terms)
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req createTermRequest
			if err := s.decode(w, r, &req); err != nil {
				s.WriteError(w, r, err)
				return
			}
			t, err := s.taxonomy.Create(r.Context(), PrincipalFrom(r), kind, taxonomy.NewTerm{
				Name:        req.Name,
				Slug:        req.Slug,
				Description: req.Description,
			})
			if err != nil {
				s.WriteError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, t)
		})
		r.Route("/{termID}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				t, err := s.taxonomy.Get(r.Context(), kind, chi.URLParam(r, "termID"))
				if err != nil {
					s.WriteError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, t)
			})
			r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
				var req editTermRequest
				if err := s.decode(w, r, &req); err != nil {
					s.WriteError(w, r, err)
					return
				}
				t, err := s.taxonomy.Update(r.Context(), PrincipalFrom(r), kind, chi.URLParam(r, "termID"), taxonomy.Patch{
					Name:        req.Name,
					Slug:        req.Slug,
					Description: req.Description,
				})
				if err != nil {
					s.WriteError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, t)
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				if err := s.taxonomy.Delete(r.Context(), PrincipalFrom(r), kind, chi.URLParam(r, "termID")); err != nil {
					s.WriteError(w, r, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
			r.Get("/posts", func(w http.ResponseWriter, r *http.Request) {
				offset, limit := page(r)
				posts, err := s.taxonomy.Posts(r.Context(), kind, chi.URLParam(r, "termID"), offset, limit)
				if err != nil {
					s.WriteError(w, r, err)
					return
				}
				writeJSON(w, http.StatusOK, posts)
			})
		})
	}
}

func (s *Server) handlePostTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.taxonomy.Tags(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleTagPost(w http.ResponseWriter, r *http.Request) {
	added, err := s.taxonomy.TagPost(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"), chi.URLParam(r, "tagID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tagResponse{Changed: added})
}

func (s *Server) handleUntagPost(w http.ResponseWriter, r *http.Request) {
	removed, err := s.taxonomy.UntagPost(r.Context(), PrincipalFrom(r), chi.URLParam(r, "postID"), chi.URLParam(r, "tagID"))
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tagResponse{Changed: removed})
}
