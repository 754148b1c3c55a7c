// Package txn wraps native engine transactions. A Transaction owns exactly
// one native handle, reports commits to its Store and releases the handle at
// most once on Close.
//
// A Transaction is not safe for concurrent use apart from Close, which may
// race with itself from any number of goroutines.
package txn

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/eigerco/boxtx/internal/registry"
	"github.com/eigerco/boxtx/pkg/db"
	"github.com/eigerco/boxtx/pkg/log"
)

// cursorRecipes is shared by all transactions of the process.
var cursorRecipes = registry.New[CursorType, Recipe]()

type Option func(*Transaction)

// WithCreationStack records the creating goroutine's stack so that leaked
// transactions can be traced back to where they were opened.
func WithCreationStack() Option {
	return func(t *Transaction) {
		t.creationStack = debug.Stack()
	}
}

type Transaction struct {
	native        db.NativeTx
	store         Store
	readOnly      bool
	creationStack []byte

	initialCommitCount atomic.Int64

	closeMu sync.Mutex
	closed  atomic.Bool
}

// New binds a Transaction to an already opened native handle. It does not
// register with the store.
func New(store Store, native db.NativeTx, initialCommitCount int64, opts ...Option) *Transaction {
	t := &Transaction{
		native:   native,
		store:    store,
		readOnly: native.IsReadOnly(),
	}
	t.initialCommitCount.Store(initialCommitCount)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transaction) checkOpen() error {
	if t.closed.Load() {
		return ErrInvalidState
	}
	return nil
}

// Close unregisters the transaction and destroys the native handle. Only
// the first call has an effect. When the store's engine is already shut
// down the handle is left alone; the engine released it on shutdown.
func (t *Transaction) Close() {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()

	if t.closed.Load() {
		return
	}
	t.closed.Store(true)
	t.store.UnregisterTransaction(t)

	if t.store.IsClosed() {
		log.Tx.Debug().Stringer("tx", t).Msg("store closed, native transaction not destroyed")
		return
	}
	if err := t.native.Destroy(); err != nil {
		log.Tx.Error().Err(err).Stringer("tx", t).Msg("destroy native transaction")
	}
}

// Commit makes the transaction's writes durable. The transaction stays open.
func (t *Transaction) Commit() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	ids, err := t.native.Commit()
	if err != nil {
		return err
	}
	affected := make([]EntityType, len(ids))
	for i, id := range ids {
		affected[i] = EntityType(id)
	}
	t.store.TxCommitted(t, affected)
	return nil
}

// CommitAndClose commits and then closes. If the commit fails the
// transaction is left open for the caller to abort or close.
func (t *Transaction) CommitAndClose() error {
	if err := t.Commit(); err != nil {
		return err
	}
	t.Close()
	return nil
}

// Abort discards all writes since the transaction began. The transaction stays open.
func (t *Transaction) Abort() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.native.Abort()
}

// Reset releases the read snapshot and rebaselines obsolescence. Cursors
// created before are invalid; Renew reactivates the transaction.
func (t *Transaction) Reset() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.initialCommitCount.Store(t.store.CommitCount())
	return t.native.Reset()
}

// Recycle releases the read snapshot but keeps the handle for Renew.
func (t *Transaction) Recycle() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.native.Recycle()
}

// Renew takes a fresh snapshot and rebaselines obsolescence.
func (t *Transaction) Renew() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.initialCommitCount.Store(t.store.CommitCount())
	return t.native.Renew()
}

func (t *Transaction) CreateKeyValueCursor() (*KeyValueCursor, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	native, err := t.native.CreateKeyValueCursor()
	if err != nil {
		return nil, err
	}
	return &KeyValueCursor{tx: t, native: native}, nil
}

// CreateCursor creates a cursor for entity using the recipe of the
// entity's cursor type.
func (t *Transaction) CreateCursor(entity EntityType) (Cursor, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	factory, ok := t.store.EntityCursorFactory(entity)
	if !ok || factory.Derive == nil {
		return nil, fmt.Errorf("%w: entity type %d", ErrSchema, entity)
	}
	name := t.store.EntityStorageName(entity)

	recipe, err := cursorRecipes.GetOrBuild(factory.Type, factory.Derive)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResource, factory.Type, err)
	}

	native, err := t.native.CreateCursor(name, uint32(entity))
	if err != nil {
		return nil, err
	}
	c, err := construct(recipe, t, entity, native, factory.Config)
	if err != nil {
		if cerr := native.Close(); cerr != nil {
			log.Tx.Warn().Err(cerr).Stringer("tx", t).Msg("close native cursor")
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrResource, factory.Type, err)
	}
	return c, nil
}

func construct(recipe Recipe, t *Transaction, entity EntityType, native db.Cursor, config any) (c Cursor, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("recipe panicked: %v", r)
		}
	}()
	c, err = recipe(t, entity, native, config)
	if err == nil && c == nil {
		err = errors.New("recipe returned no cursor")
	}
	return c, err
}

func (t *Transaction) IsActive() (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	}
	return t.native.IsActive(), nil
}

func (t *Transaction) IsRecycled() (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	}
	return t.native.IsRecycled(), nil
}

func (t *Transaction) IsClosed() bool {
	return t.closed.Load()
}

func (t *Transaction) IsReadOnly() bool {
	return t.readOnly
}

// IsObsolete reports whether another write transaction committed after
// this transaction was created or last reset or renewed.
func (t *Transaction) IsObsolete() bool {
	return t.initialCommitCount.Load() != t.store.CommitCount()
}

// InitialCommitCount is the store commit count IsObsolete compares against.
func (t *Transaction) InitialCommitCount() int64 {
	return t.initialCommitCount.Load()
}

func (t *Transaction) Store() Store {
	return t.store
}

// CreationStack is the stack captured by WithCreationStack, nil otherwise.
func (t *Transaction) CreationStack() []byte {
	return t.creationStack
}

func (t *Transaction) NativeID() uint64 {
	return t.native.ID()
}

func (t *Transaction) String() string {
	mode := "write"
	if t.readOnly {
		mode = "read-only"
	}
	return fmt.Sprintf("TX %x (%s, initialCommitCount=%d)", t.native.ID(), mode, t.initialCommitCount.Load())
}
