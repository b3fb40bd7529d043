package grpc

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/synergy-framework/blogguard"
	mem "github.com/synergy-framework/blogguard/memory"
	"github.com/synergy-framework/blogguard/principal"
)

// mockServerStream implements grpc.ServerStream for testing
type mockServerStream struct {
	ctx context.Context
}

func (m *mockServerStream) Context() context.Context {
	return m.ctx
}

func (m *mockServerStream) SendMsg(msg interface{}) error {
	return nil
}

func (m *mockServerStream) RecvMsg(msg interface{}) error {
	return nil
}

func (m *mockServerStream) SetHeader(metadata.MD) error {
	return nil
}

func (m *mockServerStream) SendHeader(metadata.MD) error {
	return nil
}

func (m *mockServerStream) SetTrailer(metadata.MD) {
}

func newService(t *testing.T) *mem.Service {
	t.Helper()
	cfg := mem.DefaultConfig()
	cfg.BCryptCost = bcrypt.MinCost
	svc, err := mem.NewService(cfg)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func newInterceptor(svc *mem.Service) *Interceptor {
	return New(principal.NewResolver(svc, principal.WithRoleLookup(svc.Roles())))
}

func tokenFor(t *testing.T, svc *mem.Service, username string, roles ...string) (string, string) {
	t.Helper()
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, username, username+"@example.com", "password1", roles)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	pair, err := svc.GenerateTokens(ctx, user.ID)
	if err != nil {
		t.Fatalf("GenerateTokens error: %v", err)
	}
	return user.ID, pair.AccessToken
}

func incoming(header string) context.Context {
	if header == "" {
		return context.Background()
	}
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", header))
}

func TestUnaryPrincipalInterceptor(t *testing.T) {
	svc := newService(t)
	id, token := tokenFor(t, svc, "kate", "writer")
	unary := newInterceptor(svc).UnaryPrincipalInterceptor()

	tests := []struct {
		name   string
		header string
		wantID string
	}{
		{name: "valid", header: "bearer " + token, wantID: id},
		{name: "mixed case prefix", header: "Bearer " + token, wantID: id},
		{name: "missing", header: ""},
		{name: "bad prefix", header: "token " + token},
		{name: "garbage", header: "bearer nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got blogguard.Principal
			_, err := unary(incoming(tt.header), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}, func(c context.Context, r interface{}) (interface{}, error) {
				got = blogguard.PrincipalFromContext(c)
				if !blogguard.HasPrincipal(c) {
					t.Fatalf("principal not placed in context")
				}
				return nil, nil
			})
			if err != nil {
				t.Fatalf("resolution must not fail the call: %v", err)
			}
			if got.ID != tt.wantID {
				t.Fatalf("principal id = %q, want %q", got.ID, tt.wantID)
			}
			if tt.wantID == "" && !got.IsAnonymous() {
				t.Fatalf("expected anonymous, got %v", got)
			}
		})
	}
}

func TestUnaryPrincipalInterceptor_TranslatesErrors(t *testing.T) {
	svc := newService(t)
	_, token := tokenFor(t, svc, "kate", "reader")
	unary := newInterceptor(svc).UnaryPrincipalInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/blog.Posts/Publish"}

	tests := []struct {
		name   string
		header string
		err    error
		want   codes.Code
	}{
		{name: "anonymous below role", err: blogguard.ErrInsufficientRole, want: codes.Unauthenticated},
		{name: "reader below role", header: "bearer " + token, err: blogguard.ErrInsufficientRole, want: codes.PermissionDenied},
		{name: "conflict", header: "bearer " + token, err: blogguard.ErrAlreadyPublished, want: codes.FailedPrecondition},
		{name: "not found", header: "bearer " + token, err: blogguard.ErrPostNotFound, want: codes.NotFound},
		{name: "internal", header: "bearer " + token, err: errors.New("disk on fire"), want: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unary(incoming(tt.header), nil, info, func(context.Context, interface{}) (interface{}, error) {
				return nil, tt.err
			})
			if status.Code(err) != tt.want {
				t.Fatalf("code = %v, want %v (%v)", status.Code(err), tt.want, err)
			}
		})
	}
}

func TestStreamPrincipalInterceptor(t *testing.T) {
	svc := newService(t)
	id, token := tokenFor(t, svc, "kate", "reader")
	stream := newInterceptor(svc).StreamPrincipalInterceptor()

	ss := &mockServerStream{ctx: incoming("bearer " + token)}
	err := stream(nil, ss, &grpc.StreamServerInfo{FullMethod: "/svc/Stream"}, func(srv interface{}, s grpc.ServerStream) error {
		if p := blogguard.PrincipalFromContext(s.Context()); p.ID != id {
			t.Fatalf("stream principal = %v", p)
		}
		if _, ok := blogguard.ClaimsFromContext(s.Context()); !ok {
			t.Fatalf("claims not in stream context")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}

	err = stream(nil, &mockServerStream{ctx: context.Background()}, &grpc.StreamServerInfo{FullMethod: "/svc/Stream"}, func(srv interface{}, s grpc.ServerStream) error {
		return blogguard.ErrNotOwner
	})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestInterceptor_SkipMethods(t *testing.T) {
	svc := newService(t)
	unary := newInterceptor(svc).UnaryPrincipalInterceptor()

	_, err := unary(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, func(c context.Context, r interface{}) (interface{}, error) {
		if blogguard.HasPrincipal(c) {
			t.Fatalf("skipped method should not resolve a principal")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("skip method error: %v", err)
	}
}

func TestUnaryRoleInterceptor(t *testing.T) {
	svc := newService(t)
	_, reader := tokenFor(t, svc, "rita", "reader")
	_, writer := tokenFor(t, svc, "will", "writer")
	i := newInterceptor(svc)
	chain := ChainUnaryInterceptors(i.UnaryPrincipalInterceptor(), i.UnaryRoleInterceptor(blogguard.RoleWriter))

	tests := []struct {
		name   string
		header string
		want   codes.Code
	}{
		{name: "anonymous", want: codes.Unauthenticated},
		{name: "reader", header: "bearer " + reader, want: codes.PermissionDenied},
		{name: "writer", header: "bearer " + writer, want: codes.OK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chain(incoming(tt.header), nil, &grpc.UnaryServerInfo{FullMethod: "/blog.Posts/Create"}, func(context.Context, interface{}) (interface{}, error) {
				return "ok", nil
			})
			if status.Code(err) != tt.want {
				t.Fatalf("code = %v, want %v", status.Code(err), tt.want)
			}
		})
	}
}

func TestRoleFollowsStore(t *testing.T) {
	svc := newService(t)
	id, token := tokenFor(t, svc, "will", "writer")
	i := newInterceptor(svc)
	chain := ChainUnaryInterceptors(i.UnaryPrincipalInterceptor(), i.UnaryRoleInterceptor(blogguard.RoleWriter))
	call := func() error {
		_, err := chain(incoming("bearer "+token), nil, &grpc.UnaryServerInfo{FullMethod: "/blog.Posts/Create"}, func(context.Context, interface{}) (interface{}, error) {
			return nil, nil
		})
		return err
	}

	if err := call(); err != nil {
		t.Fatalf("writer call: %v", err)
	}
	if err := svc.SetUserRoles(context.Background(), id, []string{"reader"}); err != nil {
		t.Fatalf("SetUserRoles: %v", err)
	}
	if err := call(); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("demoted caller: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MetadataKey != "authorization" {
		t.Errorf("expected MetadataKey to be 'authorization', got %s", config.MetadataKey)
	}

	if config.TokenPrefix != "bearer " {
		t.Errorf("expected TokenPrefix to be 'bearer ', got %s", config.TokenPrefix)
	}

	if len(config.SkipMethods) != 2 {
		t.Errorf("expected health methods to be skipped, got %v", config.SkipMethods)
	}
}

func TestNew_WithConfig(t *testing.T) {
	svc := newService(t)
	customConfig := Config{
		MetadataKey: "x-auth",
		TokenPrefix: "token ",
	}

	i := New(principal.NewResolver(svc), customConfig)
	if i.config.MetadataKey != "x-auth" {
		t.Errorf("expected custom MetadataKey")
	}
	if i.config.Logger == nil {
		t.Errorf("expected logger default")
	}

	_, token := tokenFor(t, svc, "kate", "reader")
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-auth", "token "+token))
	if p := i.resolve(ctx); blogguard.PrincipalFromContext(p).IsAnonymous() {
		t.Fatalf("custom header not honoured")
	}
}

func TestContextStream(t *testing.T) {
	baseCtx := context.Background()
	type ctxKey struct{}
	customCtx := context.WithValue(baseCtx, ctxKey{}, "value")

	stream := &contextStream{
		ServerStream: &mockServerStream{ctx: baseCtx},
		ctx:          customCtx,
	}

	if stream.Context() != customCtx {
		t.Error("expected custom context to be returned")
	}
}
