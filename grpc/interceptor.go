// Package grpc provides gRPC interceptors that resolve bearer credentials
// into principals and translate authorization errors into status codes.
package grpc

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/synergy-framework/blogguard"
)

// Interceptor resolves principals for gRPC calls.
type Interceptor struct {
	resolver blogguard.PrincipalResolver
	config   Config
}

// Config holds interceptor configuration.
type Config struct {
	// MetadataKey is the metadata key for token extraction (default: "authorization")
	MetadataKey string

	// TokenPrefix is the prefix for token extraction (default: "bearer ")
	TokenPrefix string

	// SkipMethods are full method names to skip resolution (e.g., ["/grpc.health.v1.Health/Check"])
	SkipMethods []string

	// Logger receives internal errors masked from clients
	Logger *slog.Logger
}

// DefaultConfig returns a default interceptor configuration.
func DefaultConfig() Config {
	return Config{
		MetadataKey: "authorization",
		TokenPrefix: "bearer ",
		SkipMethods: []string{"/grpc.health.v1.Health/Check", "/grpc.health.v1.Health/Watch"},
		Logger:      slog.Default(),
	}
}

// New creates a new gRPC interceptor with the given resolver and config.
func New(resolver blogguard.PrincipalResolver, config ...Config) *Interceptor {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Interceptor{
		resolver: resolver,
		config:   cfg,
	}
}

// resolve places the call's principal in ctx. It never fails.
func (i *Interceptor) resolve(ctx context.Context) context.Context {
	p := blogguard.Anonymous()
	if token, err := i.extractToken(ctx); err == nil && i.resolver != nil {
		if cr, ok := i.resolver.(interface {
			ResolveClaims(context.Context, string) (blogguard.Principal, *blogguard.Claims)
		}); ok {
			var claims *blogguard.Claims
			p, claims = cr.ResolveClaims(ctx, token)
			if claims != nil && !p.IsAnonymous() {
				ctx = blogguard.WithClaims(ctx, claims)
			}
		} else {
			p = i.resolver.Resolve(ctx, token)
		}
	}
	return blogguard.WithPrincipal(ctx, p)
}

// UnaryPrincipalInterceptor resolves the principal and maps errors returned
// by the handler to status codes.
func (i *Interceptor) UnaryPrincipalInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if i.shouldSkip(info.FullMethod) {
			return handler(ctx, req)
		}

		ctx = i.resolve(ctx)
		resp, err := handler(ctx, req)
		return resp, i.translate(ctx, info.FullMethod, err)
	}
}

// StreamPrincipalInterceptor is UnaryPrincipalInterceptor for streams.
func (i *Interceptor) StreamPrincipalInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if i.shouldSkip(info.FullMethod) {
			return handler(srv, ss)
		}

		ctx := i.resolve(ss.Context())
		err := handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
		return i.translate(ctx, info.FullMethod, err)
	}
}

// UnaryRoleInterceptor requires the principal's highest role to reach role.
// Must run after UnaryPrincipalInterceptor.
func (i *Interceptor) UnaryRoleInterceptor(role blogguard.Role) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := requireRole(ctx, role); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamRoleInterceptor is UnaryRoleInterceptor for streams.
func (i *Interceptor) StreamRoleInterceptor(role blogguard.Role) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := requireRole(ss.Context(), role); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func requireRole(ctx context.Context, role blogguard.Role) error {
	p := blogguard.PrincipalFromContext(ctx)
	if p.Highest().AtLeast(role) {
		return nil
	}
	if p.IsAnonymous() {
		return status.Error(codes.Unauthenticated, "authentication required")
	}
	return status.Errorf(codes.PermissionDenied, "%s: requires %s", blogguard.ReasonInsufficientRole, role)
}

func (i *Interceptor) translate(ctx context.Context, method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	p := blogguard.PrincipalFromContext(ctx)
	out := StatusFromError(err, p)
	if status.Code(out) == codes.Internal {
		i.config.Logger.ErrorContext(ctx, "grpc: call failed",
			slog.String("method", method),
			slog.String("principal", p.String()),
			slog.Any("error", err))
	}
	return out
}

// extractToken extracts the authentication token from gRPC metadata.
func (i *Interceptor) extractToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrMissingMetadata
	}

	// Get authorization metadata (keys are always lowercase in gRPC)
	authValues := md[i.config.MetadataKey]
	if len(authValues) == 0 {
		return "", ErrMissingToken
	}

	authValue := authValues[0]

	// Check for the correct prefix (case-insensitive)
	if !strings.HasPrefix(strings.ToLower(authValue), strings.ToLower(i.config.TokenPrefix)) {
		return "", ErrInvalidTokenFormat
	}

	token := strings.TrimSpace(authValue[len(i.config.TokenPrefix):])
	if token == "" {
		return "", ErrMissingToken
	}

	return token, nil
}

// shouldSkip checks if the method should skip resolution.
func (i *Interceptor) shouldSkip(fullMethod string) bool {
	for _, skipMethod := range i.config.SkipMethods {
		if fullMethod == skipMethod {
			return true
		}
	}
	return false
}

// contextStream wraps grpc.ServerStream to provide a custom context.
type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the custom context.
func (s *contextStream) Context() context.Context {
	return s.ctx
}
