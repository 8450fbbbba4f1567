package domain

import "errors"

var (
	// ErrNotFound is returned when a session id does not reference a stored session.
	ErrNotFound = errors.New("session not found")
	// ErrInvariantViolation is returned when stored state breaks a structural rule,
	// such as a dangling current-session pointer.
	ErrInvariantViolation = errors.New("invariant violation")
)
