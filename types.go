package blogguard

import (
	"fmt"
	"strings"
	"time"
)

// Role is a position in the permission hierarchy.
// Higher roles implicitly hold every capability of lower roles.
type Role int

const (
	// RoleAnonymous is the implicit role of an unauthenticated request.
	RoleAnonymous Role = iota
	// RoleReader may comment and reply.
	RoleReader
	// RoleWriter may author and publish posts.
	RoleWriter
	// RoleAdmin may do everything.
	RoleAdmin
)

var roleNames = [...]string{
	RoleAnonymous: "anonymous",
	RoleReader:    "reader",
	RoleWriter:    "writer",
	RoleAdmin:     "admin",
}

func (r Role) String() string {
	if r < RoleAnonymous || r > RoleAdmin {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleAnonymous && r <= RoleAdmin
}

// AtLeast reports whether r sits at or above min in the hierarchy.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// ParseRole maps a stored role name (case-insensitive) to a Role.
func ParseRole(name string) (Role, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range roleNames {
		if n == name {
			return Role(i), true
		}
	}
	return RoleAnonymous, false
}

// ParseRoles converts role names, dropping unknown entries and duplicates.
func ParseRoles(names []string) []Role {
	seen := make(map[Role]struct{}, len(names))
	out := make([]Role, 0, len(names))
	for _, n := range names {
		r, ok := ParseRole(n)
		if !ok {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// RoleNames is the inverse of ParseRoles.
func RoleNames(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.String())
	}
	return out
}

// Principal is the resolved actor of a single request. It is never persisted.
type Principal struct {
	ID    string
	Roles []Role
}

// Anonymous returns the principal used when no credential resolves.
func Anonymous() Principal {
	return Principal{Roles: []Role{RoleAnonymous}}
}

// IsAnonymous reports whether the principal carries no identity.
func (p Principal) IsAnonymous() bool {
	return p.ID == "" || p.Highest() == RoleAnonymous
}

// Highest returns the top role held by the principal.
func (p Principal) Highest() Role {
	top := RoleAnonymous
	for _, r := range p.Roles {
		if r > top {
			top = r
		}
	}
	return top
}

// HasRole reports whether the principal holds a role at or above min.
func (p Principal) HasRole(min Role) bool {
	return p.Highest().AtLeast(min)
}

func (p Principal) String() string {
	if p.IsAnonymous() {
		return "anonymous"
	}
	return p.ID + "(" + p.Highest().String() + ")"
}

// ResourceKind names the kind of entity an action targets.
type ResourceKind int

const (
	KindPost ResourceKind = iota + 1
	KindComment
	KindUser
	KindTaxonomy
)

func (k ResourceKind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindComment:
		return "comment"
	case KindUser:
		return "user"
	case KindTaxonomy:
		return "taxonomy"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Resource is a snapshot reference to the entity being acted upon.
// OwnerID is empty when the resource has no owner.
type Resource struct {
	Kind    ResourceKind
	ID      string
	OwnerID string
}

// PostResource builds the reference for a post.
func PostResource(id, ownerID string) *Resource {
	return &Resource{Kind: KindPost, ID: id, OwnerID: ownerID}
}

// CommentResource builds the reference for a comment.
func CommentResource(id, ownerID string) *Resource {
	return &Resource{Kind: KindComment, ID: id, OwnerID: ownerID}
}

// UserResource builds the reference for a user account. A user owns itself.
func UserResource(id string) *Resource {
	return &Resource{Kind: KindUser, ID: id, OwnerID: id}
}

// TaxonomyResource builds the reference for a category or tag. Terms are
// shared and have no owner.
func TaxonomyResource(id string) *Resource {
	return &Resource{Kind: KindTaxonomy, ID: id}
}

// Action is an operation subject to authorization.
type Action int

const (
	ActionReadPost Action = iota
	ActionCreatePost
	ActionEditPost
	ActionPublishPost
	ActionUnpublishPost
	ActionDeletePost
	ActionCreateComment
	ActionEditComment
	ActionDeleteComment
	ActionReplyToComment
	ActionManageUsers
	ActionViewAdminStats
	ActionManageTaxonomy
	ActionDeleteTaxonomy
)

var actionNames = map[Action]string{
	ActionReadPost:       "read_post",
	ActionCreatePost:     "create_post",
	ActionEditPost:       "edit_post",
	ActionPublishPost:    "publish_post",
	ActionUnpublishPost:  "unpublish_post",
	ActionDeletePost:     "delete_post",
	ActionCreateComment:  "create_comment",
	ActionEditComment:    "edit_comment",
	ActionDeleteComment:  "delete_comment",
	ActionReplyToComment: "reply_to_comment",
	ActionManageUsers:    "manage_users",
	ActionViewAdminStats: "view_admin_stats",
	ActionManageTaxonomy: "manage_taxonomy",
	ActionDeleteTaxonomy: "delete_taxonomy",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Actions lists every declared action in declaration order.
func Actions() []Action {
	out := make([]Action, 0, len(actionNames))
	for a := ActionReadPost; a <= ActionDeleteTaxonomy; a++ {
		out = append(out, a)
	}
	return out
}

// Decision is the outcome of one policy evaluation. It is never stored.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow is the granting decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny builds a denial with the given reason.
func Deny(reason Reason) Decision { return Decision{Reason: reason} }

// Err converts a denial into an *Error for action on res, or nil when allowed.
func (d Decision) Err(action Action, res *Resource) error {
	if d.Allowed {
		return nil
	}
	return NewError(d.Reason, action, res)
}

// PostState is the lifecycle state of a post.
type PostState int

const (
	StateDraft PostState = iota
	StatePublished
)

func (s PostState) String() string {
	if s == StatePublished {
		return "published"
	}
	return "draft"
}

// MarshalText encodes the state by name.
func (s PostState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts "draft" or "published".
func (s *PostState) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "draft":
		*s = StateDraft
	case "published":
		*s = StatePublished
	default:
		return fmt.Errorf("unknown post state %q", b)
	}
	return nil
}

// Post is a blog post with its lifecycle state.
type Post struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id"`
	CategoryID  string     `json:"category_id,omitempty"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	State       PostState  `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Resource returns the policy reference for the post.
func (p Post) Resource() *Resource {
	return PostResource(p.ID, p.AuthorID)
}

// IsPublished reports whether the post is publicly visible.
func (p Post) IsPublished() bool {
	return p.State == StatePublished
}

// Comment is one node of a post's comment thread. ParentID is empty for root comments.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	ParentID  string    `json:"parent_comment_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resource returns the policy reference for the comment.
func (c Comment) Resource() *Resource {
	return CommentResource(c.ID, c.AuthorID)
}

// IsRoot reports whether the comment has no parent.
func (c Comment) IsRoot() bool {
	return c.ParentID == ""
}

// TermKind separates the two taxonomies.
type TermKind int

const (
	TermCategory TermKind = iota + 1
	TermTag
)

func (k TermKind) String() string {
	switch k {
	case TermCategory:
		return "category"
	case TermTag:
		return "tag"
	default:
		return fmt.Sprintf("term(%d)", int(k))
	}
}

// Valid reports whether k is a declared taxonomy.
func (k TermKind) Valid() bool {
	return k == TermCategory || k == TermTag
}

// MarshalText encodes the kind by name.
func (k TermKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts "category" or "tag".
func (k *TermKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "category":
		*k = TermCategory
	case "tag":
		*k = TermTag
	default:
		return fmt.Errorf("unknown term kind %q", b)
	}
	return nil
}

// Term is a category or a tag. A post has at most one category and any
// number of tags. Name and Slug are unique within a kind.
type Term struct {
	ID          string    `json:"id"`
	Kind        TermKind  `json:"kind"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Resource returns the policy reference for the term.
func (t Term) Resource() *Resource {
	return TaxonomyResource(t.ID)
}

// User is a registered account.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	Roles       []string   `json:"roles,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// HasRole checks if the user has a specific role name.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Claims represents decoded token claims.
type Claims struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	TokenType string    `json:"token_type,omitempty"` // "access" or "refresh"
	TokenID   string    `json:"token_id,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	NotBefore time.Time `json:"nbf,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	Audience  string    `json:"aud,omitempty"`
	Subject   string    `json:"sub,omitempty"`
}

// IsExpired checks if the token is expired.
func (c *Claims) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// IsAccessToken checks if this is an access token.
func (c *Claims) IsAccessToken() bool {
	return c.TokenType == "access"
}

// IsRefreshToken checks if this is a refresh token.
func (c *Claims) IsRefreshToken() bool {
	return c.TokenType == "refresh"
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"` // Usually "Bearer"
	ExpiresIn    int64     `json:"expires_in"` // Seconds until access token expires
	IssuedAt     time.Time `json:"issued_at"`
}
