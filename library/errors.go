package library

import "errors"

// Sentinel errors returned by catalog, directory and lending operations.
// Callers match them with errors.Is; messages carry the offending ids.
var (
	// ErrNotFound is returned for an unknown book or member id.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an id or a reservation entry already exists.
	ErrDuplicate = errors.New("already exists")

	// ErrInvalidState is returned when a transition does not apply to the current state,
	// e.g. returning a book without a matching open borrow record.
	ErrInvalidState = errors.New("invalid state")

	// ErrIOFailure is returned when the persistence gateway cannot read or write.
	ErrIOFailure = errors.New("persistence failure")

	// ErrParseFailure marks a malformed persisted line.
	ErrParseFailure = errors.New("malformed record")

	// ErrUnauthorized is returned when operator credentials do not match.
	ErrUnauthorized = errors.New("invalid username or password")
)
