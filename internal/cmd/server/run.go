package serverrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/rzbill/logkv/internal/config"
	"github.com/rzbill/logkv/internal/metrics"
	"github.com/rzbill/logkv/internal/runtime"
	grpcserver "github.com/rzbill/logkv/internal/server/grpc"
	httpserver "github.com/rzbill/logkv/internal/server/http"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// Options configures Run.
type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Logging.
	Logger logpkg.Logger
	// ShutdownTimeout bounds the graceful stop. Defaults to 10s.
	ShutdownTimeout time.Duration
}

// Run starts the runtime, the ops HTTP server and the gRPC health server,
// then blocks until ctx is cancelled, a termination signal arrives or the
// reader stops on its own.
// A reader that stopped with an error is returned after shutdown.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		l, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		if err != nil {
			return err
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()
	// Pebble logs through the standard library logger.
	restore := logpkg.RedirectStdLog(logger)
	defer restore()
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	reg := metrics.NewRegistry(metrics.DefaultConfig())
	rt, err := runtime.Open(sctx, runtime.Options{Config: cfg, Logger: logger, Metrics: reg})
	if err != nil {
		return err
	}
	closeRuntime := func() error {
		cctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		return rt.Close(cctx)
	}

	logger.Info("starting logkv server",
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("topic", cfg.Topic),
		logpkg.Str("group", cfg.GroupID),
		logpkg.Str("ops", cfg.OpsAddr),
		logpkg.Str("grpc", cfg.GRPCAddr),
		logpkg.Str("level", cfg.Logging.Level),
		logpkg.Str("format", cfg.Logging.Format),
	)

	if err := rt.Start(sctx); err != nil {
		return errors.Join(err, closeRuntime())
	}

	opsCtx, cancelOps := context.WithCancel(context.Background())
	defer cancelOps()
	var wg sync.WaitGroup
	if cfg.OpsAddr != "" {
		ops := httpserver.New(rt, reg, logger)
		if err := ops.Listen(cfg.OpsAddr); err != nil {
			return errors.Join(fmt.Errorf("ops listen: %w", err), closeRuntime())
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ops.Serve(opsCtx); err != nil && opsCtx.Err() == nil {
				logger.Error("ops server error", logpkg.Err(err))
			}
		}()
	}

	if cfg.GRPCAddr != "" {
		gsrv := grpcserver.New(rt, logger)
		if err := gsrv.Listen(cfg.GRPCAddr); err != nil {
			cancelOps()
			wg.Wait()
			return errors.Join(fmt.Errorf("grpc listen: %w", err), closeRuntime())
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gsrv.Serve(opsCtx); err != nil && opsCtx.Err() == nil {
				logger.Error("grpc server error", logpkg.Err(err))
			}
		}()
	}

	var readerErr error
	select {
	case <-sctx.Done():
		logger.Info("shutting down")
	case <-rt.Reader().Done():
		readerErr = rt.Reader().Err()
		if readerErr != nil {
			readerErr = fmt.Errorf("log reader stopped: %w", readerErr)
		}
	}

	// Stop serving before the runtime closes the stores.
	cancelOps()
	wg.Wait()
	return errors.Join(readerErr, closeRuntime())
}
