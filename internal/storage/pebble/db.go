package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	logpkg "github.com/rzbill/logkv/pkg/log"
)

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the WAL on every commit.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs within FsyncInterval.
	FsyncModeInterval
	// FsyncModeNever never forces a WAL sync; a crash can lose recent
	// writes. A replicated store recovers them from the log.
	FsyncModeNever
)

// ParseFsyncMode maps always|interval|never to a FsyncMode. An empty string
// is FsyncModeUnspecified.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "always":
		return FsyncModeAlways, nil
	case "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	case "":
		return FsyncModeUnspecified, nil
	default:
		return FsyncModeUnspecified, fmt.Errorf("pebble: invalid fsync mode %q; use always|interval|never", s)
	}
}

func (m FsyncMode) String() string {
	switch m {
	case FsyncModeAlways:
		return "always"
	case FsyncModeInterval:
		return "interval"
	case FsyncModeNever:
		return "never"
	default:
		return "unspecified"
	}
}

// Options configures Open.
type Options struct {
	DataDir string
	Fsync   FsyncMode
	// FsyncInterval is the group-commit window for FsyncModeInterval.
	// Defaults to 5ms.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning. Open sets the WAL sync interval
	// and the logger on it.
	PebbleOptions *pebble.Options
	// Metrics observes reads, writes and batch commits. Optional.
	Metrics MetricsHook
	// Logger receives Pebble's own log lines. Optional.
	Logger logpkg.Logger
}

// MetricsHook observes storage operations. Single-key writes report
// ObserveWrite only; caller batches report ObserveBatchCommit.
type MetricsHook interface {
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ObserveWrite(time.Duration, int)            {}
func (NoopMetrics) ObserveRead(time.Duration, int)             {}
func (NoopMetrics) ObserveBatchCommit(time.Duration, int, int) {}

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = pebble.ErrNotFound
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("pebble: db closed")
)

// DB wraps a Pebble database with an fsync policy, closed-state guarding
// and metrics.
type DB struct {
	inner     *pebble.DB
	writeOpts *pebble.WriteOptions
	metrics   MetricsHook
	closed    atomic.Bool
}

// Open creates or opens the database at opts.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	switch opts.Fsync {
	case FsyncModeAlways, FsyncModeNever:
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		interval := opts.FsyncInterval
		po.WALMinSyncInterval = func() time.Duration { return interval }
	default:
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}
	if opts.Logger != nil {
		po.Logger = pebbleLogger{opts.Logger.WithComponent("pebble")}
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	writeOpts := pebble.NoSync
	if opts.Fsync == FsyncModeAlways {
		writeOpts = pebble.Sync
	}
	return &DB{inner: inner, writeOpts: writeOpts, metrics: metrics}, nil
}

// Close closes the database. Closing twice is a no-op.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return db.inner.Close()
}

// Closed reports whether Close has been called.
func (db *DB) Closed() bool { return db.closed.Load() }

// NewBatch creates a batch for atomic multi-key updates.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch commits b with the configured fsync policy. The caller still
// closes b.
func (db *DB) CommitBatch(ctx context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	if err := db.commit(b); err != nil {
		return err
	}
	db.metrics.ObserveBatchCommit(time.Since(start), int(b.Count()), b.Len())
	return nil
}

// Update runs fn against a fresh batch and commits it when fn succeeds.
func (db *DB) Update(ctx context.Context, fn func(b *pebble.Batch) error) error {
	if db.closed.Load() {
		return ErrClosed
	}
	b := db.inner.NewBatch()
	defer b.Close()
	if err := fn(b); err != nil {
		return err
	}
	return db.CommitBatch(ctx, b)
}

func (db *DB) commit(b *pebble.Batch) error {
	if db.closed.Load() {
		return ErrClosed
	}
	return b.Commit(db.writeOpts)
}

// Set writes a single key.
func (db *DB) Set(key, value []byte) error {
	return db.write(len(key)+len(value), func(b *pebble.Batch) error { return b.Set(key, value, nil) })
}

// Delete removes a single key. Deleting a missing key is not an error.
func (db *DB) Delete(key []byte) error {
	return db.write(len(key), func(b *pebble.Batch) error { return b.Delete(key, nil) })
}

func (db *DB) write(size int, op func(b *pebble.Batch) error) error {
	if db.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	b := db.inner.NewBatch()
	defer b.Close()
	if err := op(b); err != nil {
		return err
	}
	if err := db.commit(b); err != nil {
		return err
	}
	db.metrics.ObserveWrite(time.Since(start), size)
	return nil
}

// Get copies the value for key. Missing keys return ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	db.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// NewIter creates a raw Pebble iterator.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	return db.inner.NewIter(opts)
}

// PrefixUpperBound returns the smallest key greater than every key carrying
// prefix, or nil when no such key exists.
func PrefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// pebbleLogger adapts a Logger to pebble.Logger.
type pebbleLogger struct{ l logpkg.Logger }

func (p pebbleLogger) Infof(format string, args ...interface{})  { p.l.Debugf(format, args...) }
func (p pebbleLogger) Errorf(format string, args ...interface{}) { p.l.Errorf(format, args...) }
func (p pebbleLogger) Fatalf(format string, args ...interface{}) {
	p.l.Fatal(fmt.Sprintf(format, args...))
}
