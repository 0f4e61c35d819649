package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/logkv/internal/config"
	"github.com/rzbill/logkv/internal/metrics"
	"github.com/rzbill/logkv/internal/storereader"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Store.Fsync = "never"
	cfg.CommitIntervalMs = 1
	return cfg
}

func openStarted(t *testing.T, opts Options) *Runtime {
	t.Helper()
	rt, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	require.NoError(t, rt.Start(context.Background()))
	return rt
}

func TestEmbeddedMemoryReadYourWrites(t *testing.T) {
	rt := openStarted(t, Options{Config: testConfig(t)})
	ctx := context.Background()

	require.NoError(t, rt.CheckHealth(ctx))
	off, err := rt.Store().Put(ctx, "k", []byte("v1"))
	require.NoError(t, err)
	require.Equal(t, int64(0), off)

	got, ok, err := rt.Store().Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), got)

	_, err = rt.Store().Delete(ctx, "k")
	require.NoError(t, err)
	_, ok, err = rt.Store().Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	syncOff, err := rt.Store().Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), syncOff)
	require.Equal(t, int64(2), rt.Reader().Applied())
	require.Len(t, rt.InstanceID(), 36)
}

func TestPebbleStoreSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = cfgpkg.StorePebble
	ctx := context.Background()

	rt, err := Open(ctx, Options{Config: cfg})
	require.NoError(t, err)
	require.DirExists(t, cfg.Layout().LogDir())
	require.DirExists(t, cfg.Layout().StoreDir())
	require.NoError(t, rt.Start(ctx))
	_, err = rt.Store().Put(ctx, "a", []byte("1"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = rt.Store().Put(ctx, "b", []byte("2"))
	require.NoError(t, err)
	require.NoError(t, rt.Close(ctx))

	rt2 := openStarted(t, Options{Config: cfg})
	_, err = rt2.Store().Put(ctx, "c", []byte("3"))
	require.NoError(t, err)
	for k, want := range map[string]string{"a": "1", "b": "2", "c": "3"} {
		got, ok, err := rt2.Store().Get(k)
		require.NoError(t, err)
		require.True(t, ok, k)
		require.Equal(t, want, string(got))
	}
	require.Equal(t, int64(2), rt2.Reader().Applied())
}

func TestRedisCoordinationAndMetrics(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Coordination.Backend = cfgpkg.CoordinationRedis
	cfg.Coordination.Redis.Addr = mr.Addr()

	reg := metrics.NewRegistry(metrics.Config{})
	var seen []string
	handler := storereader.HandlerFunc[string, []byte](func(key string, _ storereader.Optional[[]byte]) error {
		seen = append(seen, key)
		return nil
	})
	rt := openStarted(t, Options{Config: cfg, Metrics: reg, Handler: handler})
	ctx := context.Background()

	_, err := rt.Store().Put(ctx, "x", []byte("1"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = rt.Store().Put(ctx, "y", []byte("2"))
	require.NoError(t, err)

	require.Equal(t, []string{"x", "y"}, seen)
	require.Equal(t, float64(1), testutil.ToFloat64(reg.Reader.AppliedOffset))
	require.Equal(t, float64(2), testutil.ToFloat64(reg.Reader.RecordsConsumed.WithLabelValues("put")))
	require.Greater(t, testutil.ToFloat64(reg.Storage.BytesWritten.WithLabelValues("log")), float64(0))

	// The commit runs after "y" is applied: next offset 2.
	require.Eventually(t, func() bool {
		v := mr.HGet("logkv:consumers:"+cfg.GroupID, cfg.Topic+":0")
		return v == "2"
	}, time.Second, 5*time.Millisecond)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Backend = "carrier-pigeon"
	_, err := Open(context.Background(), Options{Config: cfg})
	require.Error(t, err)
}

func TestOpenFailsOnUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Coordination.Backend = cfgpkg.CoordinationRedis
	cfg.Coordination.Redis.Addr = "127.0.0.1:1"
	_, err := Open(context.Background(), Options{Config: cfg})
	require.Error(t, err)

	// The log database was released: a second open succeeds.
	cfg.Coordination.Backend = cfgpkg.CoordinationLog
	rt, err := Open(context.Background(), Options{Config: cfg})
	require.NoError(t, err)
	require.NoError(t, rt.Close(context.Background()))
}

func TestHealthReportsStoppedReader(t *testing.T) {
	rt, err := Open(context.Background(), Options{Config: testConfig(t)})
	require.NoError(t, err)
	require.Error(t, rt.CheckHealth(context.Background()))
	require.NoError(t, rt.Close(context.Background()))
}
