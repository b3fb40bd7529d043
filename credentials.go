package blogguard

// Credentials represents authentication credentials.
type Credentials interface {
	// Type returns the credential type (e.g., "password", "token")
	Type() string
}

// PasswordCredentials represents username-or-email/password authentication.
type PasswordCredentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (p PasswordCredentials) Type() string {
	return "password"
}

// TokenCredentials represents bearer token authentication.
type TokenCredentials struct {
	Token string `json:"token" validate:"required"`
}

func (t TokenCredentials) Type() string {
	return "token"
}
