package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rzbill/logkv/internal/storereader"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	config := DefaultConfig()
	config.IncludeGoCollector = false
	config.IncludeProcessCollector = false
	return NewRegistry(config)
}

func TestReaderMetrics(t *testing.T) {
	r := newTestRegistry(t)
	m := r.Reader

	m.SetAppliedOffset(41)
	m.RecordConsumed(storereader.OutcomePut)
	m.RecordConsumed(storereader.OutcomePut)
	m.RecordConsumed(storereader.OutcomeBadValue)
	m.ObserveCommit(3*time.Millisecond, nil)
	m.ObserveCommit(time.Millisecond, errors.New("coordinator unavailable"))
	m.ObserveWait(time.Millisecond, nil)
	m.ObserveWait(500*time.Millisecond, &storereader.TimeoutError{Target: 9, Applied: 4, Timeout: 500 * time.Millisecond})
	m.LoopTerminated(storereader.KindFatal)

	if got := testutil.ToFloat64(m.AppliedOffset); got != 41 {
		t.Errorf("applied offset: got %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsConsumed.WithLabelValues("put")); got != 2 {
		t.Errorf("put count: got %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsConsumed.WithLabelValues("bad_value")); got != 1 {
		t.Errorf("bad_value count: got %v", got)
	}
	if got := testutil.ToFloat64(m.CommitErrors); got != 1 {
		t.Errorf("commit errors: got %v", got)
	}
	if got := testutil.CollectAndCount(m.WaitLatency); got != 2 {
		t.Errorf("wait series: got %d want ok+timeout", got)
	}
	if got := testutil.ToFloat64(m.LoopTerminations.WithLabelValues("fatal")); got != 1 {
		t.Errorf("terminations: got %v", got)
	}
}

func TestStorageHookLabelsByDB(t *testing.T) {
	r := newTestRegistry(t)
	logHook := r.Storage.Hook("log")
	storeHook := r.Storage.Hook("store")

	logHook.ObserveWrite(time.Millisecond, 100)
	logHook.ObserveBatchCommit(time.Millisecond, 3, 50)
	storeHook.ObserveRead(time.Millisecond, 10)

	if got := testutil.ToFloat64(r.Storage.BytesWritten.WithLabelValues("log")); got != 150 {
		t.Errorf("log bytes written: got %v", got)
	}
	if got := testutil.ToFloat64(r.Storage.BatchOps.WithLabelValues("log")); got != 3 {
		t.Errorf("batch ops: got %v", got)
	}
	if got := testutil.ToFloat64(r.Storage.BytesRead.WithLabelValues("store")); got != 10 {
		t.Errorf("store bytes read: got %v", got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	r := newTestRegistry(t)
	r.Reader.SetAppliedOffset(7)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "logkv_reader_applied_offset 7") {
		t.Errorf("metric missing from exposition:\n%s", body)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := newTestRegistry(t)
	b := newTestRegistry(t)
	a.Reader.RecordConsumed(storereader.OutcomeNoop)
	if got := testutil.ToFloat64(b.Reader.RecordsConsumed.WithLabelValues("noop")); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}
