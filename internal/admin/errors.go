package admin

import "errors"

var (
	ErrMissingCredentials = errors.New("username and password required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrStorage            = errors.New("credential store unavailable")
)
