package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/admin"
	"github.com/synergy-framework/blogguard/comment"
	"github.com/synergy-framework/blogguard/post"
)

// gRPC interceptor-specific errors
var (
	// ErrMissingMetadata indicates no metadata was found in the context
	ErrMissingMetadata = errors.New("missing metadata")

	// ErrMissingToken indicates no authentication token was provided
	ErrMissingToken = errors.New("missing authentication token")

	// ErrInvalidTokenFormat indicates the token format is invalid
	ErrInvalidTokenFormat = errors.New("invalid token format")
)

// CodeFor maps err to a status code. An insufficient role is reported as
// Unauthenticated to an anonymous caller.
func CodeFor(err error, p blogguard.Principal) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	switch blogguard.ReasonOf(err) {
	case blogguard.ReasonInsufficientRole:
		if p.IsAnonymous() {
			return codes.Unauthenticated
		}
		return codes.PermissionDenied
	case blogguard.ReasonNotOwner:
		return codes.PermissionDenied
	case blogguard.ReasonMissingResource, blogguard.ReasonCrossPostReply, blogguard.ReasonSelfDeletionForbidden:
		return codes.InvalidArgument
	case blogguard.ReasonAlreadyPublished, blogguard.ReasonNotPublished, blogguard.ReasonPostNotCommentable:
		return codes.FailedPrecondition
	}
	switch {
	case blogguard.IsNotFound(err):
		return codes.NotFound
	case errors.Is(err, blogguard.ErrUserExists), errors.Is(err, blogguard.ErrTermExists):
		return codes.AlreadyExists
	case errors.Is(err, blogguard.ErrInvalidCredentials),
		errors.Is(err, blogguard.ErrTokenInvalid),
		errors.Is(err, blogguard.ErrTokenRevoked),
		errors.Is(err, blogguard.ErrUserInactive),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrMissingMetadata),
		errors.Is(err, ErrInvalidTokenFormat):
		return codes.Unauthenticated
	case errors.Is(err, post.ErrEmptyTitle),
		errors.Is(err, comment.ErrEmptyContent),
		errors.Is(err, admin.ErrUnknownRole):
		return codes.InvalidArgument
	case errors.Is(err, admin.ErrUnavailable), errors.Is(err, post.ErrEngagementUnavailable):
		return codes.Unimplemented
	}
	return codes.Internal
}

// StatusFromError converts err into a status error. Denials carry their
// reason as the message prefix; internal errors are masked.
func StatusFromError(err error, p blogguard.Principal) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := CodeFor(err, p)
	if code == codes.Internal {
		return status.Error(codes.Internal, "internal error")
	}
	if reason := blogguard.ReasonOf(err); reason != blogguard.ReasonNone {
		return status.Errorf(code, "%s: %v", reason, err)
	}
	return status.Error(code, err.Error())
}
