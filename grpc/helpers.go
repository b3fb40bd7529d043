package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/synergy-framework/blogguard"
)

const roleAdmin = blogguard.RoleAdmin

// ExtractBearerToken extracts a Bearer token from gRPC metadata.
// This is a standalone helper that can be used outside of interceptors.
func ExtractBearerToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrMissingMetadata
	}

	authValues := md["authorization"]
	if len(authValues) == 0 {
		return "", ErrMissingToken
	}

	authValue := authValues[0]
	if len(authValue) < 7 || !strings.EqualFold(authValue[:7], "Bearer ") {
		return "", ErrInvalidTokenFormat
	}

	token := strings.TrimSpace(authValue[7:])
	if token == "" {
		return "", ErrMissingToken
	}

	return token, nil
}

// ChainUnaryInterceptors chains multiple unary interceptors together.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, next)
			}
		}

		return chained(ctx, req)
	}
}

// ChainStreamInterceptors chains multiple stream interceptors together.
func ChainStreamInterceptors(interceptors ...grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(currentSrv interface{}, currentSs grpc.ServerStream) error {
				return interceptor(currentSrv, currentSs, info, next)
			}
		}

		return chained(srv, ss)
	}
}

// ServerOptions returns the options installing the principal interceptors on a server.
func (i *Interceptor) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(i.UnaryPrincipalInterceptor()),
		grpc.ChainStreamInterceptor(i.StreamPrincipalInterceptor()),
	}
}

// AdminOnly resolves the principal and requires the admin role.
func (i *Interceptor) AdminOnly() grpc.UnaryServerInterceptor {
	return ChainUnaryInterceptors(
		i.UnaryPrincipalInterceptor(),
		i.UnaryRoleInterceptor(roleAdmin),
	)
}

// StreamAdminOnly is AdminOnly for streams.
func (i *Interceptor) StreamAdminOnly() grpc.StreamServerInterceptor {
	return ChainStreamInterceptors(
		i.StreamPrincipalInterceptor(),
		i.StreamRoleInterceptor(roleAdmin),
	)
}
