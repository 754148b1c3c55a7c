package txn

import "github.com/eigerco/boxtx/pkg/db"

// EntityType identifies an entity type. The engine reports written entity
// types by this id on commit.
type EntityType uint32

// CursorType identifies a cursor implementation. Recipes are cached per
// cursor type for the lifetime of the process.
type CursorType string

// Recipe constructs a cursor bound to a transaction and a native cursor
// handle. Recipes are shared by every entity of a cursor type, so anything
// specific to one registration arrives through config.
type Recipe func(tx *Transaction, entity EntityType, native db.Cursor, config any) (Cursor, error)

// CursorFactory describes how to obtain the recipe for a cursor type.
// Derive may be expensive; its result is cached by cursor type, so every
// factory using the same Type must derive an equivalent recipe.
type CursorFactory struct {
	Type CursorType
	// Config is handed to the recipe on every construction.
	Config any
	Derive func() (Recipe, error)
}

// Store is the counterpart a Transaction reports to. Implementations
// serialize their own bookkeeping.
type Store interface {
	// RegisterTransaction is called by the store itself before a
	// transaction is handed out.
	RegisterTransaction(tx *Transaction)
	UnregisterTransaction(tx *Transaction)
	// IsClosed reports whether the engine has been shut down.
	IsClosed() bool
	// CommitCount is the global number of successful write commits.
	CommitCount() int64
	// TxCommitted is told which entity types a commit wrote to.
	TxCommitted(tx *Transaction, affected []EntityType)
	EntityCursorFactory(entity EntityType) (CursorFactory, bool)
	EntityStorageName(entity EntityType) string
}
