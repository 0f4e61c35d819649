package localstore

import (
	"cmp"
	"sync"

	"github.com/google/btree"
)

type item[K comparable, V any] struct {
	key   K
	value V
}

// Memory is an ordered in-memory store.
type Memory[K comparable, V any] struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[item[K, V]]
	closed bool
}

// NewMemory returns a Memory ordered by the natural order of K.
func NewMemory[K cmp.Ordered, V any]() *Memory[K, V] {
	return NewMemoryFunc[K, V](cmp.Less[K])
}

// NewMemoryFunc returns a Memory ordered by less.
func NewMemoryFunc[K comparable, V any](less func(a, b K) bool) *Memory[K, V] {
	return &Memory[K, V]{
		tree: btree.NewG(32, func(a, b item[K, V]) bool { return less(a.key, b.key) }),
	}
}

func (m *Memory[K, V]) Put(key K, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.tree.ReplaceOrInsert(item[K, V]{key: key, value: value})
	return nil
}

func (m *Memory[K, V]) Delete(key K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.tree.Delete(item[K, V]{key: key})
	return nil
}

// Get returns the value for key and whether it exists.
func (m *Memory[K, V]) Get(key K) (V, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var zero V
	if m.closed {
		return zero, false, ErrClosed
	}
	it, ok := m.tree.Get(item[K, V]{key: key})
	if !ok {
		return zero, false, nil
	}
	return it.value, true, nil
}

// Len returns the number of keys.
func (m *Memory[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Ascend calls fn for every entry in key order until fn returns false. fn
// must not call back into the store.
func (m *Memory[K, V]) Ascend(fn func(key K, value V) bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	m.tree.Ascend(func(it item[K, V]) bool { return fn(it.key, it.value) })
	return nil
}

// AscendFrom is Ascend starting at the first key >= from.
func (m *Memory[K, V]) AscendFrom(from K, fn func(key K, value V) bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	m.tree.AscendGreaterOrEqual(item[K, V]{key: from}, func(it item[K, V]) bool { return fn(it.key, it.value) })
	return nil
}

// Close drops the contents. Closing twice is a no-op.
func (m *Memory[K, V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.tree.Clear(false)
	return nil
}
