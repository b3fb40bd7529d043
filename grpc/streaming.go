package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/synergy-framework/blogguard"
)

// StreamingAuthConfig configures re-resolution on long-lived streams.
type StreamingAuthConfig struct {
	// ReauthInterval is how often the stream's token is resolved again (default: 1 minute)
	ReauthInterval time.Duration

	// MinRole is the role the caller must keep for the stream to stay open
	MinRole blogguard.Role

	// OnAuthFailure is called before the stream is cancelled
	OnAuthFailure func(ctx context.Context, p blogguard.Principal)
}

// DefaultStreamingAuthConfig returns default streaming auth configuration.
func DefaultStreamingAuthConfig() StreamingAuthConfig {
	return StreamingAuthConfig{
		ReauthInterval: time.Minute,
		MinRole:        blogguard.RoleReader,
	}
}

// StreamingAuthWrapper wraps a streaming handler so the stream is cancelled
// once its token stops resolving to a principal holding config.MinRole.
// Revoked tokens, expired tokens, deleted users and demotions all end the stream.
func (i *Interceptor) StreamingAuthWrapper(config StreamingAuthConfig) func(grpc.StreamHandler) grpc.StreamHandler {
	if config.ReauthInterval <= 0 {
		config.ReauthInterval = time.Minute
	}
	if config.OnAuthFailure == nil {
		logger := i.config.Logger
		config.OnAuthFailure = func(ctx context.Context, p blogguard.Principal) {
			logger.InfoContext(ctx, "grpc: stream credentials lapsed", slog.String("principal", p.String()))
		}
	}

	return func(handler grpc.StreamHandler) grpc.StreamHandler {
		return func(srv interface{}, stream grpc.ServerStream) error {
			ctx := stream.Context()

			p := blogguard.PrincipalFromContext(ctx)
			if p.IsAnonymous() {
				return status.Error(codes.Unauthenticated, "authentication required")
			}
			if !p.Highest().AtLeast(config.MinRole) {
				return status.Errorf(codes.PermissionDenied, "%s: requires %s", blogguard.ReasonInsufficientRole, config.MinRole)
			}

			token, err := i.extractToken(ctx)
			if err != nil {
				return status.Error(codes.Unauthenticated, err.Error())
			}

			streamCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			go i.periodicAuthCheck(streamCtx, token, config, cancel)

			return handler(srv, &contextStream{ServerStream: stream, ctx: streamCtx})
		}
	}
}

func (i *Interceptor) periodicAuthCheck(ctx context.Context, token string, config StreamingAuthConfig, cancel context.CancelFunc) {
	ticker := time.NewTicker(config.ReauthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p := i.resolver.Resolve(ctx, token)
			if p.IsAnonymous() || !p.Highest().AtLeast(config.MinRole) {
				config.OnAuthFailure(ctx, p)
				cancel()
				return
			}
		}
	}
}
