package shared

import "errors"

var (
	// ErrSessionMissing indicates the request carried no session token.
	ErrSessionMissing = errors.New("session missing")
	// ErrSessionInvalid indicates the session payload is unusable.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrInvalidDateRange occurs when the requested date range cannot be used.
	ErrInvalidDateRange = errors.New("invalid date range")
)
