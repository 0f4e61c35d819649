package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	cfgpkg "github.com/rzbill/logkv/internal/config"
	"github.com/rzbill/logkv/internal/localstore"
	"github.com/rzbill/logkv/internal/logstore"
	"github.com/rzbill/logkv/internal/metrics"
	"github.com/rzbill/logkv/internal/serde"
	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
	"github.com/rzbill/logkv/internal/storereader"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
	// Metrics is optional. When set, the reader and the Pebble databases
	// report to it.
	Metrics *metrics.Registry
	// Handler is notified after each applied put or delete.
	Handler storereader.UpdateHandler[string, []byte]
}

// LocalStore is the materialized view: string keys, raw byte values.
type LocalStore interface {
	storereader.Store[string, []byte]
	Get(key string) ([]byte, bool, error)
}

// Runtime wires the commit log, offset store, local store, reader and
// writer facade for a single node.
type Runtime struct {
	cfg        cfgpkg.Config
	logger     logpkg.Logger
	instanceID string

	backend *Backend
	offsets offsetStore
	local   LocalStore
	reader  *storereader.Reader[string, []byte]
	store   *logstore.Store[string, []byte]

	closeOnce sync.Once
	closeErr  error
}

// Open validates the configuration and builds every component. The reader
// is not started; call Start.
func Open(ctx context.Context, opts Options) (_ *Runtime, err error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}
	instanceID := uuid.NewString()
	logger = logger.With(logpkg.Str("instance", instanceID))

	var (
		logHook, storeHook pebblestore.MetricsHook
		readerMetrics      storereader.Metrics
	)
	if opts.Metrics != nil {
		logHook = opts.Metrics.Storage.Hook("log")
		storeHook = opts.Metrics.Storage.Hook("store")
		readerMetrics = opts.Metrics.Reader
	}

	rt := &Runtime{cfg: cfg, logger: logger.WithComponent("runtime"), instanceID: instanceID}
	defer func() {
		if err != nil {
			rt.closePartial()
		}
	}()

	if err = cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	rt.backend, err = OpenBackend(cfg, clientID(cfg.Kafka.ClientID, instanceID), logger, logHook)
	if err != nil {
		return nil, err
	}
	if err = rt.backend.EnsureTopic(ctx, cfg.Topic, 1); err != nil {
		return nil, fmt.Errorf("runtime: ensure topic %s: %w", cfg.Topic, err)
	}
	rt.offsets, err = openOffsetStore(ctx, cfg, rt.backend, logger.Zap())
	if err != nil {
		return nil, err
	}
	rt.local, err = openLocalStore(cfg, storeHook, logger)
	if err != nil {
		return nil, err
	}

	codec := serde.NewKV(serde.String(), serde.Bytes())
	client := rt.backend.NewConsumer(cfg.GroupID, rt.offsets)
	rt.reader, err = storereader.New(storereader.Options[string, []byte]{
		Topic:              cfg.Topic,
		GroupID:            cfg.GroupID,
		NoopKey:            cfg.NoopKey,
		CommitInterval:     cfg.CommitInterval(),
		Client:             client,
		Offsets:            rt.offsets,
		Store:              rt.local,
		Serializer:         codec,
		Handler:            opts.Handler,
		HaltOnStoreFailure: cfg.HaltOnStoreFailure,
		Logger:             logger,
		Metrics:            readerMetrics,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	rt.store, err = logstore.New(logstore.Options[string, []byte]{
		Topic:        cfg.Topic,
		NoopKey:      cfg.NoopKey,
		Producer:     rt.backend,
		Encoder:      codec,
		Waiter:       rt.reader,
		Local:        rt.local,
		WriteTimeout: cfg.WriteTimeout(),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	rt.logger.Info("runtime opened",
		logpkg.Str("log_backend", cfg.Log.Backend),
		logpkg.Str("coordination", cfg.Coordination.Backend),
		logpkg.Str("store", cfg.Store.Backend),
		logpkg.Str("topic", cfg.Topic))
	return rt, nil
}

func openLocalStore(cfg cfgpkg.Config, hook pebblestore.MetricsHook, logger logpkg.Logger) (LocalStore, error) {
	switch cfg.Store.Backend {
	case cfgpkg.StorePebble:
		fsync, err := pebblestore.ParseFsyncMode(cfg.Store.Fsync)
		if err != nil {
			return nil, err
		}
		s, err := localstore.OpenPebble(pebblestore.Options{
			DataDir: cfg.Layout().StoreDir(),
			Fsync:   fsync,
			Metrics: hook,
			Logger:  logger,
		}, serde.NewKV(serde.String(), serde.Bytes()))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return localstore.NewMemory[string, []byte](), nil
	}
}

// Start resumes the reader from the committed offset.
func (r *Runtime) Start(ctx context.Context) error {
	return r.reader.Start(ctx)
}

// Close shuts the reader down (closing its client and the local store)
// and then releases the offset store and the log. Later calls return the
// first result.
func (r *Runtime) Close(ctx context.Context) error {
	r.closeOnce.Do(func() { r.closeErr = r.close(ctx) })
	return r.closeErr
}

func (r *Runtime) close(ctx context.Context) error {
	var errs []error
	if r.reader != nil {
		if err := r.reader.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.offsets.close != nil {
		if err := r.offsets.close(); err != nil {
			errs = append(errs, fmt.Errorf("close offset store: %w", err))
		}
	}
	if r.backend != nil {
		if err := r.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log: %w", err))
		}
	}
	return errors.Join(errs...)
}

// closePartial releases whatever Open managed to build before failing.
func (r *Runtime) closePartial() {
	if r.reader == nil && r.local != nil {
		_ = r.local.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.Close(ctx)
}

// CheckHealth reports an error when the reader is not running or the log
// is unreachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if st := r.reader.State(); st != storereader.StateRunning {
		if err := r.reader.Err(); err != nil {
			return fmt.Errorf("reader %s: %w", st, err)
		}
		return fmt.Errorf("reader %s", st)
	}
	return r.backend.CheckHealth(ctx)
}

// Store returns the read-your-writes facade.
func (r *Runtime) Store() *logstore.Store[string, []byte] { return r.store }

// Reader returns the log reader.
func (r *Runtime) Reader() *storereader.Reader[string, []byte] { return r.reader }

// Backend returns the commit log.
func (r *Runtime) Backend() *Backend { return r.backend }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.cfg }

// InstanceID identifies this process in logs and Kafka client ids.
func (r *Runtime) InstanceID() string { return r.instanceID }

func clientID(base, instanceID string) string {
	if base == "" {
		base = "logkv"
	}
	return base + "-" + instanceID[:8]
}

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
