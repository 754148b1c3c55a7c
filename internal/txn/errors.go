package txn

import "errors"

var (
	// ErrInvalidState is returned for any operation on a closed transaction.
	ErrInvalidState = errors.New("transaction is closed")
	// ErrSchema is returned when no entity is registered for a requested type.
	ErrSchema = errors.New("no entity info registered")
	// ErrResource wraps failures to construct a cursor.
	ErrResource = errors.New("could not create cursor")
	// ErrTypeMismatch is returned when a cursor is not of the requested Go type.
	ErrTypeMismatch = errors.New("cursor type mismatch")
	// ErrInvalidID is returned for the reserved id 0.
	ErrInvalidID = errors.New("invalid entity id")
)
