package logstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/logkv/internal/eventlog"
	"github.com/rzbill/logkv/internal/localstore"
	"github.com/rzbill/logkv/internal/serde"
	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
	"github.com/rzbill/logkv/internal/storereader"
	"github.com/rzbill/logkv/internal/topic"
)

const noop = "__noop__"

type harness struct {
	broker *eventlog.Broker
	reader *storereader.Reader[string, string]
	local  *localstore.Memory[string, string]
	store  *Store[string, string]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = topic.Ensure(db, "_kvlog")
	require.NoError(t, err)

	broker := eventlog.NewBroker(db, nil)
	local := localstore.NewMemory[string, string]()
	kv := serde.NewKV(serde.String(), serde.String())
	r, err := storereader.New(storereader.Options[string, string]{
		Topic:      "_kvlog",
		GroupID:    "node-1",
		NoopKey:    noop,
		Client:     broker.NewConsumer(eventlog.ConsumerOptions{Group: "node-1"}),
		Offsets:    broker.Cursors(),
		Store:      local,
		Serializer: kv,
	})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })

	s, err := New(Options[string, string]{
		Topic:        "_kvlog",
		NoopKey:      noop,
		Producer:     broker,
		Encoder:      kv,
		Waiter:       r,
		Local:        local,
		WriteTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return &harness{broker: broker, reader: r, local: local, store: s}
}

func TestPutIsReadableImmediately(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	off, err := h.store.Put(ctx, "subject", "v1")
	require.NoError(t, err)
	require.Equal(t, int64(0), off)
	v, ok, err := h.store.Get("subject")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", v)

	_, err = h.store.Put(ctx, "subject", "v2")
	require.NoError(t, err)
	v, _, _ = h.store.Get("subject")
	require.Equal(t, "v2", v)
}

func TestDeleteRemovesKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.Put(ctx, "k", "v")
	require.NoError(t, err)
	_, err = h.store.Delete(ctx, "k")
	require.NoError(t, err)
	_, ok, err := h.store.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutEmptyValueIsNotADelete(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Put(context.Background(), "k", "")
	require.NoError(t, err)
	v, ok, err := h.store.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "", v)
}

func TestSyncObservesForeignWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	// another writer appends directly to the log
	_, err := h.broker.Produce(ctx, "_kvlog", []byte("other"), []byte("x"))
	require.NoError(t, err)

	off, err := h.store.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), off)
	v, ok, _ := h.store.Get("other")
	require.True(t, ok)
	require.Equal(t, "x", v)
	require.Equal(t, 1, h.local.Len())
}

func TestNoopKeyIsReserved(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Put(context.Background(), noop, "v")
	require.ErrorIs(t, err, ErrReservedKey)
	_, err = h.store.Delete(context.Background(), noop)
	require.ErrorIs(t, err, ErrReservedKey)
}

type stuckWaiter struct{}

func (stuckWaiter) WaitUntil(offset int64, _ time.Duration) error {
	return &storereader.TimeoutError{Target: offset, Applied: -1}
}

type fixedProducer struct{ offset int64 }

func (p fixedProducer) Produce(context.Context, string, []byte, []byte) (int64, error) {
	return p.offset, nil
}

func TestPutTimeoutReturnsOffset(t *testing.T) {
	s, err := New(Options[string, string]{
		Topic:    "t",
		Producer: fixedProducer{offset: 9},
		Encoder:  serde.NewKV(serde.String(), serde.String()),
		Waiter:   stuckWaiter{},
		Local:    localstore.NewMemory[string, string](),
	})
	require.NoError(t, err)
	off, err := s.Put(context.Background(), "k", "v")
	require.Equal(t, int64(9), off)
	require.True(t, errors.Is(err, storereader.ErrTimeout))
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options[string, string]{})
	require.Error(t, err)
}
