package storereader

import (
	"fmt"

	"github.com/rzbill/logkv/internal/logclient"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// Store is the materialized view the reader writes to.
type Store[K comparable, V any] interface {
	Put(key K, value V) error
	Delete(key K) error
	Close() error
}

// Serializer decodes raw record keys and values. Value decoding gets the
// decoded key so that the value type may depend on it.
type Serializer[K comparable, V any] interface {
	DeserializeKey(b []byte) (K, error)
	DeserializeValue(key K, b []byte) (V, error)
}

// UpdateHandler is called synchronously after every applied data record,
// before the offset advances. value is absent for deletes.
type UpdateHandler[K comparable, V any] interface {
	HandleUpdate(key K, value Optional[V]) error
}

// HandlerFunc adapts a function to UpdateHandler.
type HandlerFunc[K comparable, V any] func(key K, value Optional[V]) error

func (f HandlerFunc[K, V]) HandleUpdate(key K, value Optional[V]) error { return f(key, value) }

type noopHandler[K comparable, V any] struct{}

func (noopHandler[K, V]) HandleUpdate(K, Optional[V]) error { return nil }

// applier turns records into store mutations. It runs on the loop goroutine
// only.
type applier[K comparable, V any] struct {
	store       Store[K, V]
	serializer  Serializer[K, V]
	handler     UpdateHandler[K, V]
	gate        *OffsetGate
	noopKey     K
	haltOnStore bool
	logger      logpkg.Logger
	metrics     Metrics
}

// applyRecord decodes rec and applies it. Only a store failure with
// haltOnStore set is returned; everything else is logged and the loop
// continues.
//
// A key or value that fails to decode is consumed: the offset advances
// without a mutation, so a single poison record cannot stall every writer
// waiting behind it.
func (a *applier[K, V]) applyRecord(rec logclient.Record) error {
	key, err := a.serializer.DeserializeKey(rec.Key)
	if err != nil {
		a.logger.Error("failed to deserialize record key",
			logpkg.Int64("offset", rec.Offset), logpkg.Err(newError(KindSerialization, "deserialize key", err)))
		a.advance(rec.Offset, OutcomeBadKey)
		return nil
	}
	if key == a.noopKey {
		a.advance(rec.Offset, OutcomeNoop)
		return nil
	}
	value := None[V]()
	if rec.Value != nil {
		v, err := a.serializer.DeserializeValue(key, rec.Value)
		if err != nil {
			a.logger.Error("failed to deserialize record value",
				logpkg.Int64("offset", rec.Offset), logpkg.Any("key", key),
				logpkg.Err(newError(KindSerialization, "deserialize value", err)))
			a.advance(rec.Offset, OutcomeBadValue)
			return nil
		}
		value = Some(v)
	}
	return a.apply(key, value, rec.Offset)
}

// apply mutates the store, notifies the handler and advances the gate, in
// that order. On failure the gate is left where it was.
func (a *applier[K, V]) apply(key K, value Optional[V], offset int64) error {
	if key == a.noopKey {
		a.advance(offset, OutcomeNoop)
		return nil
	}
	outcome := OutcomePut
	var err error
	if v, ok := value.Get(); ok {
		err = a.store.Put(key, v)
	} else {
		outcome = OutcomeDelete
		err = a.store.Delete(key)
	}
	if err == nil {
		if herr := a.handler.HandleUpdate(key, value); herr != nil {
			err = fmt.Errorf("update handler: %w", herr)
		}
	}
	if err != nil {
		serr := newError(KindStore, "apply", fmt.Errorf("offset %d: %w", offset, err))
		a.metrics.RecordConsumed(OutcomeStoreFailure)
		if a.haltOnStore {
			return serr
		}
		a.logger.Error("failed to apply record to the local store",
			logpkg.Int64("offset", offset), logpkg.Any("key", key), logpkg.Err(serr))
		return nil
	}
	a.logger.Debug("applied record", logpkg.Int64("offset", offset), logpkg.Str("op", string(outcome)))
	a.advance(offset, outcome)
	return nil
}

func (a *applier[K, V]) advance(offset int64, outcome Outcome) {
	a.metrics.RecordConsumed(outcome)
	a.metrics.SetAppliedOffset(offset)
	a.gate.Advance(offset)
}
