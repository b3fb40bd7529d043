package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/unrolled/secure"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/admin"
	"github.com/synergy-framework/blogguard/comment"
	"github.com/synergy-framework/blogguard/post"
	"github.com/synergy-framework/blogguard/taxonomy"
)

// Accounts is the account collaborator behind the auth endpoints.
type Accounts interface {
	blogguard.Authenticator
	CreateUser(ctx context.Context, username, email, password string, roles []string) (*blogguard.User, error)
	GetUser(ctx context.Context, userID string) (*blogguard.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

// Deps are the collaborators served by the router. Nil collaborators leave
// their routes unmounted.
type Deps struct {
	Resolver blogguard.PrincipalResolver
	Accounts Accounts
	Posts    *post.Service
	Comments *comment.Service
	Taxonomy *taxonomy.Service
	Admin    *admin.Gate
	Metrics  http.Handler
	Logger   *slog.Logger
	Config   Config
}

// Server holds the HTTP handlers.
type Server struct {
	resolver  blogguard.PrincipalResolver
	accounts  Accounts
	posts     *post.Service
	comments  *comment.Service
	taxonomy  *taxonomy.Service
	admin     *admin.Gate
	metrics   http.Handler
	logger    *slog.Logger
	config    Config
	mw        *Middleware
	validator *validator.Validate
}

// NewServer builds a Server. A zero Config selects DefaultConfig.
func NewServer(d Deps) (*Server, error) {
	cfg := d.Config
	if cfg.TokenHeader == "" {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		resolver:  d.Resolver,
		accounts:  d.Accounts,
		posts:     d.Posts,
		comments:  d.Comments,
		taxonomy:  d.Taxonomy,
		admin:     d.Admin,
		metrics:   d.Metrics,
		logger:    logger,
		config:    cfg,
		mw:        NewMiddleware(d.Resolver, cfg),
		validator: validator.New(),
	}, nil
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.secureHeaders())
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}
	r.Use(s.mw.ResolvePrincipal)
	r.Use(s.logRequests)
	if s.config.RateLimit > 0 {
		r.Use(httprate.Limit(s.config.RateLimit, time.Minute,
			httprate.WithKeyFuncs(rateLimitKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeProblem(w, Problem{
					Title:  http.StatusText(http.StatusTooManyRequests),
					Status: http.StatusTooManyRequests,
				})
			}),
		))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/roles", s.handleRoles)
		if s.accounts != nil {
			s.mountAuth(r)
		}
		if s.posts != nil {
			s.mountPosts(r)
		}
		if s.comments != nil {
			s.mountComments(r)
		}
		if s.taxonomy != nil {
			s.mountTaxonomy(r)
		}
		if s.admin != nil {
			s.mountAdmin(r)
		}
	})
	return r
}

func (s *Server) secureHeaders() func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           s.config.Production,
		STSSeconds:            stsSeconds(s.config.Production),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !s.config.Production,
	})
	return sm.Handler
}

func stsSeconds(production bool) int64 {
	if production {
		return 31536000
	}
	return 0
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("principal", PrincipalFrom(r).String()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Duration("duration", time.Since(start)))
	})
}

// rateLimitKey limits authenticated callers by principal and others by IP.
func rateLimitKey(r *http.Request) (string, error) {
	if p := PrincipalFrom(r); !p.IsAnonymous() {
		return "user:" + p.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return s.validator.Struct(dst)
}
