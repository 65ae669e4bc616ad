package session

import "errors"

var (
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrSessionChanged is returned when the token changed while a profile request was in flight;
	// the response is discarded.
	ErrSessionChanged = errors.New("session changed during request")
)
