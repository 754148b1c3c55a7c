package store

import (
	"github.com/eigerco/boxtx/internal/txn"
)

// Box gives access to the values of one entity type, each call in its
// own transaction.
type Box[T any] struct {
	store  *Store
	entity txn.EntityType
}

func BoxFor[T any](s *Store, entity txn.EntityType) *Box[T] {
	return &Box[T]{store: s, entity: entity}
}

// Cursor opens the entity cursor of the box's type in tx.
func (b *Box[T]) Cursor(tx *txn.Transaction) (*txn.EntityCursor[T], error) {
	return txn.CursorAs[*txn.EntityCursor[T]](tx, b.entity)
}

func (b *Box[T]) Get(id uint64) (T, error) {
	return CallInReadTx(b.store, func(tx *txn.Transaction) (T, error) {
		var zero T
		c, err := b.Cursor(tx)
		if err != nil {
			return zero, err
		}
		defer c.Close() //nolint:errcheck
		return c.Get(id)
	})
}

func (b *Box[T]) GetAll() ([]T, error) {
	return CallInReadTx(b.store, func(tx *txn.Transaction) ([]T, error) {
		c, err := b.Cursor(tx)
		if err != nil {
			return nil, err
		}
		defer c.Close() //nolint:errcheck
		return c.All()
	})
}

func (b *Box[T]) Count() (uint64, error) {
	return CallInReadTx(b.store, func(tx *txn.Transaction) (uint64, error) {
		c, err := b.Cursor(tx)
		if err != nil {
			return 0, err
		}
		defer c.Close() //nolint:errcheck
		return c.Count()
	})
}

func (b *Box[T]) Put(id uint64, v T) error {
	return b.store.RunInTx(func(tx *txn.Transaction) error {
		c, err := b.Cursor(tx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck
		return c.Put(id, v)
	})
}

// PutNew stores v under a fresh id.
func (b *Box[T]) PutNew(v T) (uint64, error) {
	return CallInTx(b.store, func(tx *txn.Transaction) (uint64, error) {
		c, err := b.Cursor(tx)
		if err != nil {
			return 0, err
		}
		defer c.Close() //nolint:errcheck
		return c.PutNew(v)
	})
}

func (b *Box[T]) Remove(id uint64) error {
	return b.store.RunInTx(func(tx *txn.Transaction) error {
		c, err := b.Cursor(tx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck
		return c.Remove(id)
	})
}
