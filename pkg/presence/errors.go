package presence

import "errors"

var (
	// ErrNotConfigured means a credential, identity or base URL is missing.
	// It is re-checked on every tick and never fatal.
	ErrNotConfigured = errors.New("not configured")

	// ErrUnauthorized means the remote store rejected the credential.
	// Retrying will not help until the token is changed.
	ErrUnauthorized = errors.New("unauthorized")
)
