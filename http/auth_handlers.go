package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/rbac"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (s *Server) mountAuth(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Group(func(r chi.Router) {
			r.Use(s.mw.RequireAuthenticated)
			r.Post("/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
			r.Put("/password", s.handleChangePassword)
		})
	})
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rbac.Catalog())
}

// handleRegister creates a reader account; roles are only granted by admins.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	user, err := s.accounts.CreateUser(r.Context(), req.Username, req.Email, req.Password, nil)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	user, err := s.accounts.Authenticate(r.Context(), blogguard.PasswordCredentials{Username: req.Username, Password: req.Password})
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	pair, err := s.accounts.GenerateTokens(r.Context(), user.ID)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	pair, err := s.accounts.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := ExtractBearerToken(r)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	if err := s.accounts.RevokeToken(r.Context(), token); err != nil {
		s.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.GetUser(r.Context(), PrincipalFrom(r).ID)
	if err != nil {
		s.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := s.decode(w, r, &req); err != nil {
		s.WriteError(w, r, err)
		return
	}
	if err := s.accounts.ChangePassword(r.Context(), PrincipalFrom(r).ID, req.OldPassword, req.NewPassword); err != nil {
		s.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
