package pebble

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/eigerco/boxtx/pkg/db"
)

// reader is the read view of a transaction: a snapshot for read
// transactions, the indexed batch for the writer.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// Tx is a native transaction handle.
type Tx struct {
	engine   *Engine
	id       uint64
	readOnly bool

	mu          sync.Mutex
	snap        *pebble.Snapshot
	batch       *pebble.Batch
	holdsWriter bool
	active      bool
	recycled    bool
	destroyed   bool
	// generation is bumped whenever previously created cursors become invalid.
	generation uint64
	affected   map[uint32]struct{}
	cursors    map[*iterCursor]struct{}
}

var _ db.NativeTx = (*Tx)(nil)

func (t *Tx) ID() uint64 {
	return t.id
}

func (t *Tx) IsReadOnly() bool {
	return t.readOnly
}

func (t *Tx) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active && !t.destroyed
}

func (t *Tx) IsRecycled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recycled
}

// Commit writes the batch durably. For a read transaction it only ends the
// snapshot. Either way the transaction is no longer active afterwards.
func (t *Tx) Commit() ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkActive(); err != nil {
		return nil, err
	}
	if t.readOnly {
		t.invalidateCursors()
		t.releaseSnapshot()
		t.active = false
		return nil, nil
	}

	t.invalidateCursors()
	if err := t.batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	affected := make([]uint32, 0, len(t.affected))
	for id := range t.affected {
		affected = append(affected, id)
	}
	slices.Sort(affected)
	clear(t.affected)

	err := t.releaseBatch()
	t.active = false
	return affected, err
}

// Abort discards all writes made since the transaction began.
func (t *Tx) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkActive(); err != nil {
		return err
	}
	t.invalidateCursors()
	t.active = false
	if t.readOnly {
		t.releaseSnapshot()
		return nil
	}
	clear(t.affected)
	return t.releaseBatch()
}

// Reset releases the read snapshot. The transaction stays inactive until renewed.
func (t *Tx) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkRead(); err != nil {
		return err
	}
	t.invalidateCursors()
	t.releaseSnapshot()
	t.active = false
	return nil
}

// Recycle releases the read snapshot but keeps the handle for a later Renew.
func (t *Tx) Recycle() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkRead(); err != nil {
		return err
	}
	t.invalidateCursors()
	t.releaseSnapshot()
	t.active = false
	t.recycled = true
	return nil
}

// Renew takes a fresh snapshot of the current engine state.
func (t *Tx) Renew() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkRead(); err != nil {
		return err
	}
	if t.engine.closed.Load() {
		return ErrEngineClosed
	}
	t.invalidateCursors()
	t.releaseSnapshot()
	t.snap = t.engine.db.NewSnapshot()
	t.active = true
	t.recycled = false
	return nil
}

// Destroy releases every engine resource held by the handle. It is safe
// to call more than once.
func (t *Tx) Destroy() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return nil
	}
	t.destroyed = true
	t.active = false
	t.invalidateCursors()
	t.releaseSnapshot()
	err := t.releaseBatch()
	t.engine.release(t)
	return err
}

func (t *Tx) CreateKeyValueCursor() (db.KVCursor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkActive(); err != nil {
		return nil, err
	}
	c := t.newIterCursor([]byte{prefixKeyValue}, []byte{prefixKeyValue + 1})
	return &KVCursor{c: c}, nil
}

func (t *Tx) CreateCursor(entityName string, entityTypeID uint32) (db.Cursor, error) {
	if err := t.engine.bindEntity(entityName, entityTypeID); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkActive(); err != nil {
		return nil, err
	}
	c := t.newIterCursor(entityPrefix(entityTypeID), entityUpperBound(entityTypeID))
	return &EntityCursor{c: c, name: entityName, typeID: entityTypeID}, nil
}

func (t *Tx) String() string {
	mode := "write"
	if t.readOnly {
		mode = "read-only"
	}
	return fmt.Sprintf("native tx %x (%s)", t.id, mode)
}

// checkActive must be called with t.mu held.
func (t *Tx) checkActive() error {
	if t.destroyed {
		return ErrTxDestroyed
	}
	if !t.active {
		return ErrTxNotActive
	}
	return nil
}

func (t *Tx) checkRead() error {
	if t.destroyed {
		return ErrTxDestroyed
	}
	if !t.readOnly {
		return ErrNotReadTx
	}
	return nil
}

func (t *Tx) reader() reader {
	if t.readOnly {
		return t.snap
	}
	return t.batch
}

func (t *Tx) get(key []byte) ([]byte, error) {
	value, closer, err := t.reader().Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (t *Tx) set(key, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	return t.batch.Set(key, value, nil)
}

func (t *Tx) delete(key []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	return t.batch.Delete(key, nil)
}

func (t *Tx) markAffected(typeID uint32) {
	if t.affected != nil {
		t.affected[typeID] = struct{}{}
	}
}

func (t *Tx) newIterCursor(lower, upper []byte) *iterCursor {
	c := &iterCursor{tx: t, generation: t.generation, lower: lower, upper: upper}
	t.cursors[c] = struct{}{}
	return c
}

func (t *Tx) invalidateCursors() {
	t.generation++
	for c := range t.cursors {
		c.closeIter()
	}
	clear(t.cursors)
}

func (t *Tx) releaseSnapshot() {
	if t.snap == nil {
		return
	}
	if err := t.snap.Close(); err != nil {
		t.engine.logError(err, t.id, "close snapshot")
	}
	t.snap = nil
}

func (t *Tx) releaseBatch() error {
	var err error
	if t.batch != nil {
		err = t.batch.Close()
		t.batch = nil
	}
	if t.holdsWriter {
		t.holdsWriter = false
		<-t.engine.writer
	}
	return err
}
