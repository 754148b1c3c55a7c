package txn

import (
	"fmt"
	"reflect"

	"github.com/eigerco/boxtx/pkg/db"
	"github.com/eigerco/boxtx/pkg/serialization/codec"
)

// EntityCursor reads and writes values of T stored under numeric ids.
type EntityCursor[T any] struct {
	tx     *Transaction
	entity EntityType
	native db.Cursor
	codec  codec.Codec[T]
}

// EntityCursorType names the cursor type of EntityCursor[T]. Entities of
// the same Go type share one cached recipe whatever their codec.
func EntityCursorType[T any]() CursorType {
	return CursorType("EntityCursor[" + typeIdentity(reflect.TypeFor[T]()) + "]")
}

// NewEntityCursorFactory returns the factory for an EntityCursor[T]
// storing values with c.
func NewEntityCursorFactory[T any](c codec.Codec[T]) CursorFactory {
	return CursorFactory{
		Type:   EntityCursorType[T](),
		Config: c,
		Derive: func() (Recipe, error) {
			return entityCursorRecipe[T], nil
		},
	}
}

func entityCursorRecipe[T any](tx *Transaction, entity EntityType, native db.Cursor, config any) (Cursor, error) {
	c, ok := config.(codec.Codec[T])
	if !ok || c == nil {
		return nil, fmt.Errorf("entity cursor needs a codec for %s, got %T", reflect.TypeFor[T](), config)
	}
	return &EntityCursor[T]{tx: tx, entity: entity, native: native, codec: c}, nil
}

// typeIdentity qualifies named types by import path; reflect.Type.String
// only carries the package name.
func typeIdentity(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeIdentity(t.Elem())
	case reflect.Slice:
		return "[]" + typeIdentity(t.Elem())
	default:
		return t.String()
	}
}

func (c *EntityCursor[T]) Tx() *Transaction {
	return c.tx
}

func (c *EntityCursor[T]) Entity() EntityType {
	return c.entity
}

func (c *EntityCursor[T]) Get(id uint64) (T, error) {
	var zero T
	if err := c.tx.checkOpen(); err != nil {
		return zero, err
	}
	data, err := c.native.Get(id)
	if err != nil {
		return zero, err
	}
	return c.codec.Unmarshal(data)
}

func (c *EntityCursor[T]) Put(id uint64, v T) error {
	if id == 0 {
		return ErrInvalidID
	}
	if err := c.tx.checkOpen(); err != nil {
		return err
	}
	data, err := c.codec.Marshal(v)
	if err != nil {
		return err
	}
	return c.native.Put(id, data)
}

// PutNew stores v under the next free id and returns it.
func (c *EntityCursor[T]) PutNew(v T) (uint64, error) {
	if err := c.tx.checkOpen(); err != nil {
		return 0, err
	}
	maxID, err := c.native.MaxID()
	if err != nil {
		return 0, err
	}
	id := maxID + 1
	if err := c.Put(id, v); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *EntityCursor[T]) Remove(id uint64) error {
	if err := c.tx.checkOpen(); err != nil {
		return err
	}
	return c.native.Delete(id)
}

func (c *EntityCursor[T]) First() (bool, error) {
	if err := c.tx.checkOpen(); err != nil {
		return false, err
	}
	return c.native.First()
}

func (c *EntityCursor[T]) Next() (bool, error) {
	if err := c.tx.checkOpen(); err != nil {
		return false, err
	}
	return c.native.Next()
}

func (c *EntityCursor[T]) Seek(id uint64) (bool, error) {
	if err := c.tx.checkOpen(); err != nil {
		return false, err
	}
	return c.native.Seek(id)
}

// ID is the id at the cursor position, 0 when unpositioned.
func (c *EntityCursor[T]) ID() uint64 {
	if c.tx.IsClosed() {
		return 0
	}
	return c.native.ID()
}

// Current decodes the value at the cursor position.
func (c *EntityCursor[T]) Current() (T, error) {
	var zero T
	if err := c.tx.checkOpen(); err != nil {
		return zero, err
	}
	data, err := c.native.Value()
	if err != nil {
		return zero, err
	}
	return c.codec.Unmarshal(data)
}

func (c *EntityCursor[T]) Count() (uint64, error) {
	if err := c.tx.checkOpen(); err != nil {
		return 0, err
	}
	return c.native.Count()
}

// All returns every value in id order.
func (c *EntityCursor[T]) All() ([]T, error) {
	var all []T
	ok, err := c.First()
	for ; ok && err == nil; ok, err = c.Next() {
		v, err := c.Current()
		if err != nil {
			return nil, err
		}
		all = append(all, v)
	}
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (c *EntityCursor[T]) Close() error {
	return c.native.Close()
}
