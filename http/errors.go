package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/admin"
	"github.com/synergy-framework/blogguard/comment"
	"github.com/synergy-framework/blogguard/post"
	"github.com/synergy-framework/blogguard/taxonomy"
)

// Middleware-specific errors
var (
	// ErrMissingToken indicates no authentication token was provided
	ErrMissingToken = errors.New("missing authentication token")

	// ErrInvalidTokenFormat indicates the token format is invalid
	ErrInvalidTokenFormat = errors.New("invalid token format")

	// ErrBadRequest wraps malformed request bodies and parameters.
	ErrBadRequest = errors.New("bad request")
)

// Problem is an RFC 7807 problem detail. Reason carries the denial reason
// when the error came from the authorization core.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Reason string `json:"reason,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// StatusFor maps err to an HTTP status. An insufficient role is reported as
// 401 to an anonymous caller, who may fix it by signing in.
func StatusFor(err error, p blogguard.Principal) int {
	switch blogguard.ReasonOf(err) {
	case blogguard.ReasonInsufficientRole:
		if p.IsAnonymous() {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case blogguard.ReasonNotOwner:
		return http.StatusForbidden
	case blogguard.ReasonMissingResource, blogguard.ReasonSelfDeletionForbidden:
		return http.StatusBadRequest
	case blogguard.ReasonAlreadyPublished, blogguard.ReasonNotPublished, blogguard.ReasonPostNotCommentable:
		return http.StatusConflict
	case blogguard.ReasonCrossPostReply:
		return http.StatusUnprocessableEntity
	}

	var verrs validator.ValidationErrors
	switch {
	case blogguard.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, blogguard.ErrUserExists), errors.Is(err, blogguard.ErrTermExists):
		return http.StatusConflict
	case errors.Is(err, blogguard.ErrInvalidCredentials),
		errors.Is(err, blogguard.ErrTokenInvalid),
		errors.Is(err, blogguard.ErrTokenRevoked),
		errors.Is(err, blogguard.ErrUserInactive),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidTokenFormat):
		return http.StatusUnauthorized
	case errors.Is(err, ErrBadRequest),
		errors.As(err, &verrs),
		errors.Is(err, post.ErrEmptyTitle),
		errors.Is(err, comment.ErrEmptyContent),
		errors.Is(err, admin.ErrUnknownRole),
		errors.Is(err, taxonomy.ErrEmptyName),
		errors.Is(err, taxonomy.ErrEmptySlug),
		errors.Is(err, taxonomy.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, admin.ErrUnavailable), errors.Is(err, post.ErrEngagementUnavailable):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// WriteError writes err as a problem document. Internal errors are logged
// and their text is withheld from the client.
func (s *Server) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	p := blogguard.PrincipalFromContext(r.Context())
	status := StatusFor(err, p)
	prob := Problem{Title: http.StatusText(status), Status: status}
	if reason := blogguard.ReasonOf(err); reason != blogguard.ReasonNone {
		prob.Reason = reason.String()
		prob.Kind = reason.Kind().String()
	}
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "http: request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	} else {
		prob.Detail = err.Error()
	}
	writeProblem(w, prob)
}

func writeProblem(w http.ResponseWriter, prob Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(prob.Status)
	_ = json.NewEncoder(w).Encode(prob)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func unauthorized(w http.ResponseWriter) {
	writeProblem(w, Problem{
		Title:  http.StatusText(http.StatusUnauthorized),
		Status: http.StatusUnauthorized,
		Detail: "authentication required",
	})
}

func forbidden(w http.ResponseWriter) {
	writeProblem(w, Problem{
		Title:  http.StatusText(http.StatusForbidden),
		Status: http.StatusForbidden,
		Detail: "insufficient role",
		Reason: blogguard.ReasonInsufficientRole.String(),
		Kind:   blogguard.KindPolicyDenial.String(),
	})
}
