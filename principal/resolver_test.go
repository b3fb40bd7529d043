package principal

import (
	"context"
	"errors"
	"testing"

	"github.com/synergy-framework/blogguard"
)

type stubValidator map[string]*blogguard.Claims

func (s stubValidator) ValidateToken(token string) (*blogguard.Claims, error) {
	c, ok := s[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return c, nil
}

type stubRoles struct {
	roles map[string][]string
	err   error
}

func (s stubRoles) GetUserRoles(_ context.Context, userID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.roles[userID]
	if !ok {
		return nil, blogguard.ErrUserNotFound
	}
	return r, nil
}

func TestResolver_Resolve(t *testing.T) {
	validator := stubValidator{
		"writer":   {UserID: "u7", Roles: []string{"writer"}, TokenType: "access"},
		"noroles":  {UserID: "u8", TokenType: "access"},
		"refresh":  {UserID: "u7", TokenType: "refresh"},
		"nouser":   {TokenType: "access"},
		"bogus":    {UserID: "u9", Roles: []string{"moderator", "anonymous"}},
		"admin":    {UserID: "u1", Roles: []string{"reader", "admin"}},
		"stranger": {UserID: "ghost", Roles: []string{"admin"}},
	}
	r := NewResolver(validator)

	tests := []struct {
		name    string
		token   string
		wantID  string
		highest blogguard.Role
	}{
		{name: "absent credential", token: "", highest: blogguard.RoleAnonymous},
		{name: "invalid credential", token: "garbage", highest: blogguard.RoleAnonymous},
		{name: "refresh token", token: "refresh", highest: blogguard.RoleAnonymous},
		{name: "no subject", token: "nouser", highest: blogguard.RoleAnonymous},
		{name: "writer", token: "writer", wantID: "u7", highest: blogguard.RoleWriter},
		{name: "no roles defaults to reader", token: "noroles", wantID: "u8", highest: blogguard.RoleReader},
		{name: "unknown roles default to reader", token: "bogus", wantID: "u9", highest: blogguard.RoleReader},
		{name: "admin", token: "admin", wantID: "u1", highest: blogguard.RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := r.Resolve(context.Background(), tt.token)
			if p.ID != tt.wantID || p.Highest() != tt.highest {
				t.Fatalf("got %+v, want id=%q highest=%s", p, tt.wantID, tt.highest)
			}
			if tt.wantID == "" && !p.IsAnonymous() {
				t.Fatalf("expected anonymous, got %v", p)
			}
		})
	}
}

func TestResolver_RoleLookup(t *testing.T) {
	validator := stubValidator{
		"a": {UserID: "u1", Roles: []string{"admin"}},
		"b": {UserID: "u2", Roles: []string{"writer"}},
		"c": {UserID: "ghost", Roles: []string{"admin"}},
	}
	store := stubRoles{roles: map[string][]string{
		"u1": {"reader"}, // demoted since the token was issued
		"u2": {},
	}}
	r := NewResolver(validator, WithRoleLookup(store))

	if p := r.Resolve(context.Background(), "a"); p.Highest() != blogguard.RoleReader {
		t.Fatalf("store roles should win: %v", p)
	}
	if p := r.Resolve(context.Background(), "b"); p.ID != "u2" || p.Highest() != blogguard.RoleReader {
		t.Fatalf("empty assignment should default to reader: %v", p)
	}
	if p := r.Resolve(context.Background(), "c"); !p.IsAnonymous() {
		t.Fatalf("deleted user should resolve anonymous: %v", p)
	}
}

func TestResolver_RoleLookupFailureResolvesAsReader(t *testing.T) {
	validator := stubValidator{"a": {UserID: "u1", Roles: []string{"admin"}}}
	r := NewResolver(validator, WithRoleLookup(stubRoles{err: errors.New("db down")}))

	p := r.Resolve(context.Background(), "a")
	if p.ID != "u1" || p.Highest() != blogguard.RoleReader {
		t.Fatalf("token roles must not outlive a failed lookup, got %v", p)
	}
}
