package localstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/logkv/internal/serde"
	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
)

// Pebble is a durable store. Keys are encoded with the key codec under a
// fixed prefix, so several stores may share one database.
type Pebble[K comparable, V any] struct {
	db      *pebblestore.DB
	prefix  []byte
	codec   serde.KV[K, V]
	closeDB bool

	// writes hold the read lock; Close takes the write lock so that no
	// operation reaches a closed database.
	mu     sync.RWMutex
	closed bool
}

// NewPebble returns a store over db. Close leaves db open.
func NewPebble[K comparable, V any](db *pebblestore.DB, prefix string, codec serde.KV[K, V]) *Pebble[K, V] {
	return &Pebble[K, V]{db: db, prefix: []byte(prefix), codec: codec}
}

// OpenPebble opens a database dedicated to the store. Close closes it.
func OpenPebble[K comparable, V any](opts pebblestore.Options, codec serde.KV[K, V]) (*Pebble[K, V], error) {
	db, err := pebblestore.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("localstore: open pebble: %w", err)
	}
	s := NewPebble(db, "kv/", codec)
	s.closeDB = true
	return s, nil
}

func (s *Pebble[K, V]) key(k K) ([]byte, error) {
	kb, err := s.codec.SerializeKey(k)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(s.prefix)+len(kb))
	out = append(out, s.prefix...)
	return append(out, kb...), nil
}

func (s *Pebble[K, V]) Put(key K, value V) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	k, err := s.key(key)
	if err != nil {
		return err
	}
	v, err := s.codec.SerializeValue(value)
	if err != nil {
		return err
	}
	return s.db.Set(k, v)
}

func (s *Pebble[K, V]) Delete(key K) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	k, err := s.key(key)
	if err != nil {
		return err
	}
	return s.db.Delete(k)
}

// Get returns the value for key and whether it exists.
func (s *Pebble[K, V]) Get(key K) (V, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var zero V
	if s.closed {
		return zero, false, ErrClosed
	}
	k, err := s.key(key)
	if err != nil {
		return zero, false, err
	}
	b, err := s.db.Get(k)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	v, err := s.codec.DeserializeValue(key, b)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Ascend calls fn for every entry in encoded key order until fn returns
// false.
func (s *Pebble[K, V]) Ascend(fn func(key K, value V) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: s.prefix,
		UpperBound: pebblestore.PrefixUpperBound(s.prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		k, err := s.codec.DeserializeKey(iter.Key()[len(s.prefix):])
		if err != nil {
			return fmt.Errorf("localstore: decode key: %w", err)
		}
		v, err := s.codec.DeserializeValue(k, iter.Value())
		if err != nil {
			return fmt.Errorf("localstore: decode value: %w", err)
		}
		if !fn(k, v) {
			break
		}
	}
	return iter.Error()
}

// Close marks the store closed, and closes the database if the store opened
// it. Closing twice is a no-op.
func (s *Pebble[K, V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closeDB {
		return s.db.Close()
	}
	return nil
}
