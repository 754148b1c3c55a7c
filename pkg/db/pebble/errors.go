package pebble

import "errors"

var (
	ErrEngineClosed    = errors.New("engine: database is closed")
	ErrNotFound        = errors.New("engine: key not found")
	ErrTxDestroyed     = errors.New("engine: transaction handle destroyed")
	ErrTxNotActive     = errors.New("engine: transaction is not active")
	ErrReadOnly        = errors.New("engine: write in a read-only transaction")
	ErrNotReadTx       = errors.New("engine: operation requires a read transaction")
	ErrCursorInvalid   = errors.New("engine: cursor is no longer valid")
	ErrCursorClosed    = errors.New("engine: cursor is closed")
	ErrIteratorInvalid = errors.New("engine: cursor is not positioned")
	ErrSchemaMismatch  = errors.New("engine: entity name is bound to a different type id")
	ErrEmptyEntityName = errors.New("engine: empty entity name")
)

const (
	ErrInIteratorCreation = "failed to create iterator: %w"
	ErrIteratorValue      = "failed to get iterator value: %w"
)
