// Package registry caches values that are expensive to derive and never
// change once derived, such as cursor construction recipes.
package registry

import "sync"

// Registry is an append-only concurrent cache. Entries are never evicted.
// Concurrent derivation of the same key is allowed: every caller derives an
// equivalent value and the last write wins.
type Registry[K comparable, V any] struct {
	entries sync.Map
}

func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{}
}

// Get returns the cached value for key.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	v, ok := r.entries.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// GetOrBuild returns the cached value for key, deriving and caching it with
// build on a miss. A failed build caches nothing.
func (r *Registry[K, V]) GetOrBuild(key K, build func() (V, error)) (V, error) {
	if v, ok := r.Get(key); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}
	r.entries.Store(key, v)
	return v, nil
}

// Len counts the cached entries.
func (r *Registry[K, V]) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
