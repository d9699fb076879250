package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreFull is returned by local store backends that hit their capacity.
	ErrStoreFull = errors.New("local store full")
	// ErrStoreDisabled is returned when the local store backend is unavailable.
	ErrStoreDisabled = errors.New("local store disabled")
)
