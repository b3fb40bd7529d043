package blogguard

import (
	"errors"
	"fmt"
)

// Reason is the closed set of denial and conflict causes.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInsufficientRole
	ReasonNotOwner
	ReasonMissingResource
	ReasonAlreadyPublished
	ReasonNotPublished
	ReasonPostNotCommentable
	ReasonCrossPostReply
	ReasonSelfDeletionForbidden
)

var reasonNames = [...]string{
	ReasonNone:                  "none",
	ReasonInsufficientRole:      "insufficient_role",
	ReasonNotOwner:              "not_owner",
	ReasonMissingResource:       "missing_resource",
	ReasonAlreadyPublished:      "already_published",
	ReasonNotPublished:          "not_published",
	ReasonPostNotCommentable:    "post_not_commentable",
	ReasonCrossPostReply:        "cross_post_reply",
	ReasonSelfDeletionForbidden: "self_deletion_forbidden",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// ReasonKind groups reasons by how callers should surface them.
type ReasonKind int

const (
	KindNone ReasonKind = iota
	// KindPolicyDenial: the actor is not allowed. Recoverable with another principal.
	KindPolicyDenial
	// KindLifecycleConflict: the actor was allowed but the current state rejects the transition.
	KindLifecycleConflict
	// KindStructuralViolation: the input breaks a data invariant; a caller bug.
	KindStructuralViolation
	// KindAdministrativeRule: a named business rule.
	KindAdministrativeRule
)

func (k ReasonKind) String() string {
	switch k {
	case KindPolicyDenial:
		return "policy_denial"
	case KindLifecycleConflict:
		return "lifecycle_conflict"
	case KindStructuralViolation:
		return "structural_violation"
	case KindAdministrativeRule:
		return "administrative_rule"
	default:
		return "none"
	}
}

// Kind classifies the reason.
func (r Reason) Kind() ReasonKind {
	switch r {
	case ReasonInsufficientRole, ReasonNotOwner, ReasonMissingResource:
		return KindPolicyDenial
	case ReasonAlreadyPublished, ReasonNotPublished, ReasonPostNotCommentable:
		return KindLifecycleConflict
	case ReasonCrossPostReply:
		return KindStructuralViolation
	case ReasonSelfDeletionForbidden:
		return KindAdministrativeRule
	default:
		return KindNone
	}
}

// Reason sentinels. Every *Error matches the sentinel of its reason with errors.Is.
var (
	ErrInsufficientRole      = &Error{Reason: ReasonInsufficientRole}
	ErrNotOwner              = &Error{Reason: ReasonNotOwner}
	ErrMissingResource       = &Error{Reason: ReasonMissingResource}
	ErrAlreadyPublished      = &Error{Reason: ReasonAlreadyPublished}
	ErrNotPublished          = &Error{Reason: ReasonNotPublished}
	ErrPostNotCommentable    = &Error{Reason: ReasonPostNotCommentable}
	ErrCrossPostReply        = &Error{Reason: ReasonCrossPostReply}
	ErrSelfDeletionForbidden = &Error{Reason: ReasonSelfDeletionForbidden}
)

// Lookup and account errors.
var (
	// ErrPostNotFound indicates the post does not exist
	ErrPostNotFound = errors.New("post not found")

	// ErrCommentNotFound indicates the comment does not exist
	ErrCommentNotFound = errors.New("comment not found")

	// ErrTermNotFound indicates the category or tag does not exist
	ErrTermNotFound = errors.New("term not found")

	// ErrTermExists indicates a term of the same kind already uses the name or slug
	ErrTermExists = errors.New("term already exists")

	// ErrUserNotFound indicates the user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates a user with the same username/email already exists
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates invalid login credentials
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserInactive indicates the account is disabled
	ErrUserInactive = errors.New("user account is inactive")

	// ErrTokenInvalid indicates the token is invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenRevoked indicates the token has been revoked
	ErrTokenRevoked = errors.New("token revoked")
)

// Error is a typed denial or conflict carrying its Reason.
type Error struct {
	Reason   Reason
	Action   Action
	Resource *Resource
}

// NewError builds an *Error for action on res.
func NewError(reason Reason, action Action, res *Resource) *Error {
	return &Error{Reason: reason, Action: action, Resource: res}
}

func (e *Error) Error() string {
	if e.Resource == nil {
		return fmt.Sprintf("%s: %s", e.Reason, e.Action)
	}
	return fmt.Sprintf("%s: %s on %s %s", e.Reason, e.Action, e.Resource.Kind, e.Resource.ID)
}

// Is matches any *Error with the same Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

// ReasonOf extracts the Reason from err, or ReasonNone.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonNone
}

// IsNotFound reports whether err is one of the lookup errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound) || errors.Is(err, ErrCommentNotFound) ||
		errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrTermNotFound)
}
