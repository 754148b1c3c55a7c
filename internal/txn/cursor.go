package txn

import "fmt"

// Cursor is bound to one transaction and one entity type. It is only
// usable while its transaction is open and active.
type Cursor interface {
	Tx() *Transaction
	Entity() EntityType
	Close() error
}

// CursorAs creates a cursor for entity and asserts its concrete type.
func CursorAs[C Cursor](tx *Transaction, entity EntityType) (C, error) {
	var zero C
	c, err := tx.CreateCursor(entity)
	if err != nil {
		return zero, err
	}
	typed, ok := c.(C)
	if !ok {
		_ = c.Close()
		return zero, fmt.Errorf("%w: entity type %d has cursor %T, want %T", ErrTypeMismatch, entity, c, zero)
	}
	return typed, nil
}
