package serverrun

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/logkv/internal/config"
	"github.com/rzbill/logkv/internal/storereader"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Store.Fsync = "never"
	cfg.OpsAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	return cfg
}

func TestRunStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	logger := logpkg.NewLogger(logpkg.WithWriter(&buf))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{Config: testConfig(t), Logger: logger}) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !strings.Contains(buf.String(), "starting logkv server") {
		t.Fatalf("startup not logged: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "grpc server listening") {
		t.Fatalf("grpc server not started: %s", buf.String())
	}
}

func TestRunFailsOnBadGRPCAddr(t *testing.T) {
	cfg := testConfig(t)
	cfg.GRPCAddr = "127.0.0.1:not-a-port"
	err := Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewNop()})
	if err == nil || !strings.Contains(err.Error(), "grpc listen") {
		t.Fatalf("want grpc listen error, got %v", err)
	}
}

func TestRunReturnsFatalReaderError(t *testing.T) {
	cfg := testConfig(t)
	// Nothing is produced, so the consumer times out and the loop dies.
	cfg.Log.ConsumerTimeoutMs = 20
	err := Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewNop()})
	if err == nil {
		t.Fatal("expected reader error")
	}
	if !errors.Is(err, storereader.ErrFatal) {
		t.Fatalf("want fatal kind, got %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Topic = ""
	if err := Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewNop()}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRunRejectsBadLogFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Format = "xml"
	if err := Run(context.Background(), Options{Config: cfg}); err == nil {
		t.Fatal("expected logger config error")
	}
}
