package store

import (
	"errors"
	"fmt"

	"github.com/eigerco/boxtx/internal/txn"
	"github.com/eigerco/boxtx/pkg/serialization/codec"
)

var (
	ErrDuplicateEntity = errors.New("entity registered twice")
	ErrInvalidEntity   = errors.New("invalid entity")
)

// Entity registers an entity type with the store.
type Entity struct {
	Type txn.EntityType
	// Name is the storage name handed to the engine.
	Name   string
	Cursor txn.CursorFactory
}

// NewEntity registers values of T, stored with c, under typ and name.
func NewEntity[T any](typ txn.EntityType, name string, c codec.Codec[T]) Entity {
	return Entity{
		Type:   typ,
		Name:   name,
		Cursor: txn.NewEntityCursorFactory[T](c),
	}
}

func buildModel(entities []Entity) (map[txn.EntityType]Entity, error) {
	model := make(map[txn.EntityType]Entity, len(entities))
	names := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if e.Type == 0 || e.Name == "" || e.Cursor.Derive == nil {
			return nil, fmt.Errorf("%w: type %d, name %q", ErrInvalidEntity, e.Type, e.Name)
		}
		if _, ok := model[e.Type]; ok {
			return nil, fmt.Errorf("%w: type %d", ErrDuplicateEntity, e.Type)
		}
		if _, ok := names[e.Name]; ok {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicateEntity, e.Name)
		}
		model[e.Type] = e
		names[e.Name] = struct{}{}
	}
	return model, nil
}
