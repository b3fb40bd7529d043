package jwt

import (
	"errors"
	"fmt"

	"github.com/synergy-framework/blogguard"
)

// JWT-specific errors. Each matches blogguard.ErrTokenInvalid.
var (
	// ErrInvalidToken indicates the token is invalid
	ErrInvalidToken = fmt.Errorf("%w: malformed or unverifiable", blogguard.ErrTokenInvalid)
	// ErrTokenExpired indicates the token has expired
	ErrTokenExpired = fmt.Errorf("%w: expired", blogguard.ErrTokenInvalid)
	// ErrTokenNotYetValid indicates the token is not yet valid
	ErrTokenNotYetValid = fmt.Errorf("%w: not yet valid", blogguard.ErrTokenInvalid)
	// ErrWrongTokenType indicates a refresh token was presented as an access token or vice versa
	ErrWrongTokenType = fmt.Errorf("%w: wrong token type", blogguard.ErrTokenInvalid)
)

var errUnsupportedAlgorithm = errors.New("unsupported algorithm")
