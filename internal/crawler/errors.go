package crawler

import "errors"

var (
	// ErrMissingLocation is returned when a 301 response has no Location header.
	ErrMissingLocation = errors.New("redirect without Location header")

	// ErrNoStartPath is returned when the engine has no path to start from.
	ErrNoStartPath = errors.New("start path is empty")

	// ErrNoCredentials is returned when there is neither a username nor a
	// pre-seeded session cookie.
	ErrNoCredentials = errors.New("no credentials and no session cookie")
)
