package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cfgpkg "github.com/rzbill/logkv/internal/config"
	"github.com/rzbill/logkv/internal/metrics"
	"github.com/rzbill/logkv/internal/runtime"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

func openRuntime(t *testing.T, reg *metrics.Registry) *runtime.Runtime {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Store.Fsync = "never"
	rt, err := runtime.Open(context.Background(), runtime.Options{Config: cfg, Metrics: reg})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthReflectsReaderState(t *testing.T) {
	rt := openRuntime(t, nil)
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	s := New(rt, nil, logger)

	w := get(t, s.Handler(), "/healthz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unstarted reader: status %d", w.Code)
	}

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := rt.Store().Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	w = get(t, s.Handler(), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("running reader: status %d body %s", w.Code, w.Body)
	}
	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != "running" || resp.AppliedOffset != 0 || resp.Instance != rt.InstanceID() {
		t.Fatalf("unexpected body: %+v", resp)
	}

	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if w := get(t, s.Handler(), "/healthz"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("stopped reader: status %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := metrics.DefaultConfig()
	cfg.IncludeGoCollector = false
	cfg.IncludeProcessCollector = false
	reg := metrics.NewRegistry(cfg)
	rt := openRuntime(t, reg)
	s := New(rt, reg, nil)

	w := get(t, s.Handler(), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "logkv_reader_applied_offset") {
		t.Fatalf("reader gauge missing:\n%s", body)
	}
}

func TestMetricsNotMountedWithoutRegistry(t *testing.T) {
	s := New(openRuntime(t, nil), nil, nil)
	if w := get(t, s.Handler(), "/metrics"); w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
}
