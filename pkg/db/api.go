package db

// Engine is the native storage engine. It hands out native transaction
// handles and owns every engine-side resource they reference.
type Engine interface {
	BeginTx(readOnly bool) (NativeTx, error)
	Close() error
}

// NativeTx is an opaque engine transaction handle. A handle is exclusively
// owned by one caller and must not be used after Destroy.
type NativeTx interface {
	// ID identifies the handle for diagnostics.
	ID() uint64
	Destroy() error
	// Commit makes the writes durable and returns the ids of the entity
	// types that were written to.
	Commit() ([]uint32, error)
	Abort() error
	Reset() error
	Recycle() error
	Renew() error
	CreateKeyValueCursor() (KVCursor, error)
	CreateCursor(entityName string, entityTypeID uint32) (Cursor, error)
	IsActive() bool
	IsRecycled() bool
	IsReadOnly() bool
}

// Cursor provides access to the records of one entity type, keyed by id.
// A cursor is only valid while the transaction that created it stays active.
type Cursor interface {
	Get(id uint64) ([]byte, error)
	Put(id uint64, value []byte) error
	Delete(id uint64) error
	// First, Next and Seek position the cursor and report whether it
	// points at a record.
	First() (bool, error)
	Next() (bool, error)
	Seek(id uint64) (bool, error)
	ID() uint64
	Value() ([]byte, error)
	// MaxID returns the highest stored id, or 0 for an empty entity.
	MaxID() (uint64, error)
	Count() (uint64, error)
	Close() error
}

// KVCursor provides raw key/value access not tied to an entity schema.
type KVCursor interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	First() (bool, error)
	Next() (bool, error)
	Seek(key []byte) (bool, error)
	Key() []byte
	Value() ([]byte, error)
	Close() error
}
