package domain

import "errors"

// Sentinel errors returned by the engine. The HTTP layer maps them onto
// the wire error taxonomy.
var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidTransition = errors.New("status transition not permitted")
	ErrNoApprovers       = errors.New("no admin or manager available to approve")
)
