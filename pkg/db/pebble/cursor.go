package pebble

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/eigerco/boxtx/pkg/db"
)

// iterCursor is the positioning core shared by entity and key/value
// cursors. All methods except close expect tx.mu to be held.
type iterCursor struct {
	tx           *Tx
	generation   uint64
	lower, upper []byte

	iter       *pebble.Iterator
	positioned bool
	// stale is set when the transaction wrote since iter was created;
	// batch iterators do not observe later mutations.
	stale  bool
	closed bool
}

func (c *iterCursor) check() error {
	if c.closed {
		return ErrCursorClosed
	}
	if c.tx.destroyed || !c.tx.active || c.generation != c.tx.generation {
		return ErrCursorInvalid
	}
	return nil
}

// openIter (re)creates the iterator and returns the key it pointed at, if any.
func (c *iterCursor) openIter() ([]byte, error) {
	var pos []byte
	if c.iter != nil {
		if c.positioned && c.iter.Valid() {
			pos = bytes.Clone(c.iter.Key())
		}
		if err := c.iter.Close(); err != nil {
			return nil, err
		}
		c.iter = nil
	}
	iter, err := c.tx.reader().NewIter(&pebble.IterOptions{
		LowerBound: c.lower,
		UpperBound: c.upper,
	})
	if err != nil {
		return nil, fmt.Errorf(ErrInIteratorCreation, err)
	}
	c.iter = iter
	c.stale = false
	return pos, nil
}

func (c *iterCursor) first() (bool, error) {
	if _, err := c.openIter(); err != nil {
		return false, err
	}
	c.positioned = true
	return c.iter.First(), c.iter.Error()
}

func (c *iterCursor) next() (bool, error) {
	if c.iter == nil || !c.positioned {
		return c.first()
	}
	if !c.stale {
		return c.iter.Next(), c.iter.Error()
	}

	pos, err := c.openIter()
	if err != nil {
		return false, err
	}
	if pos == nil {
		return false, nil
	}
	valid := c.iter.SeekGE(pos)
	if valid && bytes.Equal(c.iter.Key(), pos) {
		valid = c.iter.Next()
	}
	return valid, c.iter.Error()
}

func (c *iterCursor) seek(key []byte) (bool, error) {
	if c.iter == nil || c.stale {
		if _, err := c.openIter(); err != nil {
			return false, err
		}
	}
	c.positioned = true
	return c.iter.SeekGE(key), c.iter.Error()
}

func (c *iterCursor) key() []byte {
	if c.iter == nil || !c.positioned || !c.iter.Valid() {
		return nil
	}
	return bytes.Clone(c.iter.Key())
}

func (c *iterCursor) value() ([]byte, error) {
	if c.iter == nil || !c.positioned || !c.iter.Valid() {
		return nil, ErrIteratorInvalid
	}
	val, err := c.iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf(ErrIteratorValue, err)
	}
	return bytes.Clone(val), nil
}

// scan walks a throwaway iterator over the cursor's range.
func (c *iterCursor) scan(fn func(iter *pebble.Iterator)) error {
	iter, err := c.tx.reader().NewIter(&pebble.IterOptions{
		LowerBound: c.lower,
		UpperBound: c.upper,
	})
	if err != nil {
		return fmt.Errorf(ErrInIteratorCreation, err)
	}
	fn(iter)
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return err
	}
	return iter.Close()
}

func (c *iterCursor) markWritten() {
	for other := range c.tx.cursors {
		other.stale = true
	}
}

func (c *iterCursor) closeIter() {
	if c.iter != nil {
		if err := c.iter.Close(); err != nil {
			c.tx.engine.logError(err, c.tx.id, "close iterator")
		}
		c.iter = nil
	}
	c.positioned = false
}

func (c *iterCursor) close() error {
	c.tx.mu.Lock()
	defer c.tx.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	var err error
	if c.iter != nil {
		err = c.iter.Close()
		c.iter = nil
	}
	delete(c.tx.cursors, c)
	return err
}

// EntityCursor addresses the records of one entity type by id.
type EntityCursor struct {
	c      *iterCursor
	name   string
	typeID uint32
}

var _ db.Cursor = (*EntityCursor)(nil)

func (e *EntityCursor) Get(id uint64) ([]byte, error) {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if err := e.c.check(); err != nil {
		return nil, err
	}
	return e.c.tx.get(entityKey(e.typeID, id))
}

func (e *EntityCursor) Put(id uint64, value []byte) error {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if err := e.c.check(); err != nil {
		return err
	}
	if err := e.c.tx.set(entityKey(e.typeID, id), value); err != nil {
		return err
	}
	e.c.tx.markAffected(e.typeID)
	e.c.markWritten()
	return nil
}

func (e *EntityCursor) Delete(id uint64) error {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if err := e.c.check(); err != nil {
		return err
	}
	if err := e.c.tx.delete(entityKey(e.typeID, id)); err != nil {
		return err
	}
	e.c.tx.markAffected(e.typeID)
	e.c.markWritten()
	return nil
}

func (e *EntityCursor) First() (bool, error) {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if err := e.c.check(); err != nil {
		return false, err
	}
	return e.c.first()
}

func (e *EntityCursor) Next() (bool, error) {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if err := e.c.check(); err != nil {
		return false, err
	}
	return e.c.next()
}

func (e *EntityCursor) Seek(id uint64) (bool, error) {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if err := e.c.check(); err != nil {
		return false, err
	}
	return e.c.seek(entityKey(e.typeID, id))
}

// ID returns the id of the current record, 0 when not positioned.
func (e *EntityCursor) ID() uint64 {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if e.c.check() != nil {
		return 0
	}
	return entityIDFromKey(e.c.key())
}

func (e *EntityCursor) Value() ([]byte, error) {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if err := e.c.check(); err != nil {
		return nil, err
	}
	return e.c.value()
}

func (e *EntityCursor) MaxID() (uint64, error) {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if err := e.c.check(); err != nil {
		return 0, err
	}
	var maxID uint64
	err := e.c.scan(func(iter *pebble.Iterator) {
		if iter.Last() {
			maxID = entityIDFromKey(iter.Key())
		}
	})
	return maxID, err
}

func (e *EntityCursor) Count() (uint64, error) {
	e.c.tx.mu.Lock()
	defer e.c.tx.mu.Unlock()

	if err := e.c.check(); err != nil {
		return 0, err
	}
	var n uint64
	err := e.c.scan(func(iter *pebble.Iterator) {
		for valid := iter.First(); valid; valid = iter.Next() {
			n++
		}
	})
	return n, err
}

func (e *EntityCursor) Close() error {
	return e.c.close()
}

func (e *EntityCursor) String() string {
	return fmt.Sprintf("cursor %s (type %d)", e.name, e.typeID)
}

// KVCursor gives raw key/value access inside a transaction.
type KVCursor struct {
	c *iterCursor
}

var _ db.KVCursor = (*KVCursor)(nil)

func (k *KVCursor) Get(key []byte) ([]byte, error) {
	k.c.tx.mu.Lock()
	defer k.c.tx.mu.Unlock()

	if err := k.c.check(); err != nil {
		return nil, err
	}
	return k.c.tx.get(kvKey(key))
}

func (k *KVCursor) Put(key, value []byte) error {
	k.c.tx.mu.Lock()
	defer k.c.tx.mu.Unlock()

	if err := k.c.check(); err != nil {
		return err
	}
	if err := k.c.tx.set(kvKey(key), value); err != nil {
		return err
	}
	k.c.markWritten()
	return nil
}

func (k *KVCursor) Delete(key []byte) error {
	k.c.tx.mu.Lock()
	defer k.c.tx.mu.Unlock()

	if err := k.c.check(); err != nil {
		return err
	}
	if err := k.c.tx.delete(kvKey(key)); err != nil {
		return err
	}
	k.c.markWritten()
	return nil
}

func (k *KVCursor) First() (bool, error) {
	k.c.tx.mu.Lock()
	defer k.c.tx.mu.Unlock()

	if err := k.c.check(); err != nil {
		return false, err
	}
	return k.c.first()
}

func (k *KVCursor) Next() (bool, error) {
	k.c.tx.mu.Lock()
	defer k.c.tx.mu.Unlock()

	if err := k.c.check(); err != nil {
		return false, err
	}
	return k.c.next()
}

func (k *KVCursor) Seek(key []byte) (bool, error) {
	k.c.tx.mu.Lock()
	defer k.c.tx.mu.Unlock()

	if err := k.c.check(); err != nil {
		return false, err
	}
	return k.c.seek(kvKey(key))
}

// Key returns the current key without the key-space prefix, nil when not positioned.
func (k *KVCursor) Key() []byte {
	k.c.tx.mu.Lock()
	defer k.c.tx.mu.Unlock()

	if k.c.check() != nil {
		return nil
	}
	key := k.c.key()
	if len(key) == 0 {
		return nil
	}
	return key[1:]
}

func (k *KVCursor) Value() ([]byte, error) {
	k.c.tx.mu.Lock()
	defer k.c.tx.mu.Unlock()

	if err := k.c.check(); err != nil {
		return nil, err
	}
	return k.c.value()
}

func (k *KVCursor) Close() error {
	return k.c.close()
}
