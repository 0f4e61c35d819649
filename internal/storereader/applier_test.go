package storereader

import (
	"testing"

	"github.com/rzbill/logkv/internal/logclient"
	logpkg "github.com/rzbill/logkv/pkg/log"
	"github.com/stretchr/testify/require"
)

const noop = "__noop__"

func newTestApplier(store *mapStore, h UpdateHandler[string, string]) *applier[string, string] {
	return &applier[string, string]{
		store:      store,
		serializer: stringSerde{},
		handler:    h,
		gate:       NewOffsetGate(-1),
		noopKey:    noop,
		logger:     logpkg.NewNop(),
		metrics:    NoopMetrics{},
	}
}

func rec(offset int64, key string, value *string) logclient.Record {
	r := logclient.Record{Offset: offset, Key: []byte(key)}
	if value != nil {
		r.Value = []byte(*value)
	}
	return r
}

func strp(s string) *string { return &s }

func TestApplyNoopOnlyAdvances(t *testing.T) {
	store := newMapStore(nil)
	h := &recordingHandler{}
	a := newTestApplier(store, h)

	require.NoError(t, a.applyRecord(rec(7, noop, strp("ignored"))))
	require.Equal(t, int64(7), a.gate.Applied())
	require.Empty(t, store.snapshot())
	require.Empty(t, h.list())
}

func TestApplyTombstoneDeletes(t *testing.T) {
	store := newMapStore(nil)
	h := &recordingHandler{}
	a := newTestApplier(store, h)

	require.NoError(t, a.applyRecord(rec(0, "k", strp("v"))))
	require.NoError(t, a.applyRecord(rec(1, "k", nil)))

	_, ok := store.get("k")
	require.False(t, ok)
	require.Equal(t, []update{{key: "k", value: "v", present: true}, {key: "k", present: false}}, h.list())
	require.Equal(t, int64(1), a.gate.Applied())
}

func TestApplyEmptyValueIsNotTombstone(t *testing.T) {
	store := newMapStore(nil)
	a := newTestApplier(store, noopHandler[string, string]{})

	require.NoError(t, a.applyRecord(rec(0, "k", strp(""))))
	v, ok := store.get("k")
	require.True(t, ok)
	require.Equal(t, "", v)
}

func TestApplyBadKeyAdvancesWithoutMutation(t *testing.T) {
	store := newMapStore(nil)
	h := &recordingHandler{}
	a := newTestApplier(store, h)

	require.NoError(t, a.applyRecord(rec(3, "!garbage", strp("v"))))
	require.Equal(t, int64(3), a.gate.Applied())
	require.Empty(t, store.snapshot())
	require.Empty(t, h.list())
}

func TestApplyBadValueIsNeverADelete(t *testing.T) {
	store := newMapStore(nil)
	h := &recordingHandler{}
	a := newTestApplier(store, h)

	require.NoError(t, a.applyRecord(rec(0, "k", strp("v1"))))
	require.NoError(t, a.applyRecord(rec(1, "k", strp("?corrupt"))))

	v, ok := store.get("k")
	require.True(t, ok)
	require.Equal(t, "v1", v)
	require.Len(t, h.list(), 1)
	require.Equal(t, int64(1), a.gate.Applied())
}

func TestApplyStoreFailureSkipsAdvance(t *testing.T) {
	store := newMapStore(nil)
	store.failKey = "bad"
	h := &recordingHandler{}
	a := newTestApplier(store, h)

	require.NoError(t, a.applyRecord(rec(0, "ok", strp("v"))))
	require.NoError(t, a.applyRecord(rec(1, "bad", strp("v"))))
	require.Equal(t, int64(0), a.gate.Applied())
	require.Len(t, h.list(), 1)

	require.NoError(t, a.applyRecord(rec(2, "ok2", strp("v"))))
	require.Equal(t, int64(2), a.gate.Applied())
}

func TestApplyStoreFailureHalts(t *testing.T) {
	store := newMapStore(nil)
	store.failKey = "bad"
	a := newTestApplier(store, noopHandler[string, string]{})
	a.haltOnStore = true

	err := a.applyRecord(rec(0, "bad", nil))
	require.ErrorIs(t, err, ErrStore)
	require.Equal(t, int64(-1), a.gate.Applied())
}

func TestApplyHandlerFailureIsStoreFailure(t *testing.T) {
	store := newMapStore(nil)
	h := HandlerFunc[string, string](func(string, Optional[string]) error { return errStoreClosed })
	a := newTestApplier(store, h)
	a.haltOnStore = true

	err := a.applyRecord(rec(0, "k", strp("v")))
	require.ErrorIs(t, err, ErrStore)
	require.ErrorIs(t, err, errStoreClosed)
	require.Equal(t, int64(-1), a.gate.Applied())
}

func TestReplayIsDeterministic(t *testing.T) {
	log := []logclient.Record{
		rec(0, "a", strp("1")),
		rec(1, "b", strp("2")),
		rec(2, noop, nil),
		rec(3, "a", strp("3")),
		rec(4, "b", nil),
		rec(5, "c", strp("4")),
	}
	fold := func() map[string]string {
		store := newMapStore(nil)
		a := newTestApplier(store, noopHandler[string, string]{})
		for _, r := range log {
			require.NoError(t, a.applyRecord(r))
		}
		return store.snapshot()
	}
	first := fold()
	require.Equal(t, map[string]string{"a": "3", "c": "4"}, first)
	require.Equal(t, first, fold())
}
