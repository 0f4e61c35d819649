// Package logstore is the write side of the log-backed store. Writes are
// produced to the commit log and only return once the local reader has
// applied them, so a Get that follows a successful Put observes it.
package logstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/logkv/internal/logclient"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// ErrReservedKey is returned when writing the noop key.
var ErrReservedKey = errors.New("logstore: key is reserved for noop records")

// Waiter blocks until an offset has been applied locally.
type Waiter interface {
	WaitUntil(offset int64, timeout time.Duration) error
}

// Getter reads the materialized view.
type Getter[K comparable, V any] interface {
	Get(key K) (V, bool, error)
}

// Encoder serializes keys and values for produced records.
type Encoder[K comparable, V any] interface {
	SerializeKey(k K) ([]byte, error)
	SerializeValue(v V) ([]byte, error)
}

// Options configures a Store.
type Options[K comparable, V any] struct {
	Topic    string
	NoopKey  K
	Producer logclient.Producer
	Encoder  Encoder[K, V]
	Waiter   Waiter
	Local    Getter[K, V]
	// WriteTimeout bounds the wait for a produced record to be applied.
	WriteTimeout time.Duration
	Logger       logpkg.Logger
}

// Store is a read-your-writes key-value store over a commit log.
type Store[K comparable, V any] struct {
	opts   Options[K, V]
	logger logpkg.Logger
}

// New validates opts.
func New[K comparable, V any](opts Options[K, V]) (*Store[K, V], error) {
	switch {
	case opts.Topic == "":
		return nil, errors.New("logstore: topic is required")
	case opts.Producer == nil:
		return nil, errors.New("logstore: producer is required")
	case opts.Encoder == nil:
		return nil, errors.New("logstore: encoder is required")
	case opts.Waiter == nil:
		return nil, errors.New("logstore: waiter is required")
	case opts.Local == nil:
		return nil, errors.New("logstore: local store is required")
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNop()
	}
	return &Store[K, V]{opts: opts, logger: opts.Logger.WithComponent("logstore")}, nil
}

// Put writes key=value and waits until it is applied locally. It returns
// the record's offset; on a wait timeout the offset is returned along with
// the error, since the write itself is durable in the log.
func (s *Store[K, V]) Put(ctx context.Context, key K, value V) (int64, error) {
	if key == s.opts.NoopKey {
		return -1, ErrReservedKey
	}
	kb, err := s.opts.Encoder.SerializeKey(key)
	if err != nil {
		return -1, fmt.Errorf("logstore: serialize key: %w", err)
	}
	vb, err := s.opts.Encoder.SerializeValue(value)
	if err != nil {
		return -1, fmt.Errorf("logstore: serialize value: %w", err)
	}
	if vb == nil {
		vb = []byte{}
	}
	return s.write(ctx, kb, vb)
}

// Delete writes a tombstone for key and waits until it is applied locally.
func (s *Store[K, V]) Delete(ctx context.Context, key K) (int64, error) {
	if key == s.opts.NoopKey {
		return -1, ErrReservedKey
	}
	kb, err := s.opts.Encoder.SerializeKey(key)
	if err != nil {
		return -1, fmt.Errorf("logstore: serialize key: %w", err)
	}
	return s.write(ctx, kb, nil)
}

// Sync produces a noop record and waits for it, so that every write
// produced before the call is visible locally when it returns.
func (s *Store[K, V]) Sync(ctx context.Context) (int64, error) {
	kb, err := s.opts.Encoder.SerializeKey(s.opts.NoopKey)
	if err != nil {
		return -1, fmt.Errorf("logstore: serialize noop key: %w", err)
	}
	return s.write(ctx, kb, nil)
}

// Get reads key from the local materialized view.
func (s *Store[K, V]) Get(key K) (V, bool, error) {
	return s.opts.Local.Get(key)
}

func (s *Store[K, V]) write(ctx context.Context, key, value []byte) (int64, error) {
	offset, err := s.opts.Producer.Produce(ctx, s.opts.Topic, key, value)
	if err != nil {
		return -1, fmt.Errorf("logstore: produce: %w", err)
	}
	timeout := s.opts.WriteTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := s.opts.Waiter.WaitUntil(offset, timeout); err != nil {
		s.logger.Warn("write not yet applied locally", logpkg.Int64("offset", offset), logpkg.Err(err))
		return offset, err
	}
	return offset, nil
}
