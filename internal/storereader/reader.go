package storereader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzbill/logkv/internal/logclient"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// State is the lifecycle state of a Reader.
type State int32

const (
	StateNew State = iota
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a Reader.
type Options[K comparable, V any] struct {
	// Topic is the single-partition commit-log topic to materialize.
	Topic string
	// GroupID identifies this reader for offset commits and bootstrap.
	GroupID string
	// NoopKey marks control records that only advance the applied offset.
	NoopKey K
	// CommitInterval is the minimum time between offset commits. Zero or
	// negative disables commits.
	CommitInterval time.Duration

	// Client streams the topic.
	Client logclient.Client
	// Offsets is read once at Start to find where to resume.
	Offsets logclient.OffsetStore
	// Store receives the materialized records and is closed by Shutdown.
	Store Store[K, V]
	// Serializer decodes record keys and values.
	Serializer Serializer[K, V]
	// Handler is optional.
	Handler UpdateHandler[K, V]

	// HaltOnStoreFailure makes a failed store mutation terminate the loop
	// instead of skipping the record.
	HaltOnStoreFailure bool

	Logger  logpkg.Logger
	Metrics Metrics
	// Clock drives commit scheduling. Defaults to time.Now.
	Clock func() time.Time
}

func (o *Options[K, V]) validate() error {
	var errs []error
	if o.Topic == "" {
		errs = append(errs, errors.New("topic is required"))
	}
	if o.GroupID == "" {
		errs = append(errs, errors.New("group id is required"))
	}
	if o.Client == nil {
		errs = append(errs, errors.New("log client is required"))
	}
	if o.Offsets == nil {
		errs = append(errs, errors.New("offset store is required"))
	}
	if o.Store == nil {
		errs = append(errs, errors.New("local store is required"))
	}
	if o.Serializer == nil {
		errs = append(errs, errors.New("serializer is required"))
	}
	if len(errs) > 0 {
		return newError(KindConfiguration, "new", errors.Join(errs...))
	}
	return nil
}

// Reader tails a commit-log topic into a local store. See the package
// documentation.
type Reader[K comparable, V any] struct {
	opts    Options[K, V]
	logger  logpkg.Logger
	metrics Metrics
	now     func() time.Time
	gate    *OffsetGate
	applier *applier[K, V]

	// startMu serializes Start without blocking state readers.
	startMu sync.Mutex

	mu     sync.Mutex
	state  State
	err    error
	cancel context.CancelFunc
	done   chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// New validates opts and returns an unstarted Reader.
func New[K comparable, V any](opts Options[K, V]) (*Reader[K, V], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Handler == nil {
		opts.Handler = noopHandler[K, V]{}
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger.WithComponent("storereader").With(logpkg.Str("topic", opts.Topic))
	gate := NewOffsetGate(-1)
	return &Reader[K, V]{
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
		now:     opts.Clock,
		gate:    gate,
		applier: &applier[K, V]{
			store:       opts.Store,
			serializer:  opts.Serializer,
			handler:     opts.Handler,
			gate:        gate,
			noopKey:     opts.NoopKey,
			haltOnStore: opts.HaltOnStoreFailure,
			logger:      logger,
			metrics:     opts.Metrics,
		},
		done: make(chan struct{}),
	}, nil
}

// Start resolves the resume offset, subscribes the client right after it and
// runs the loop on a new goroutine. The loop outlives ctx; use Shutdown to
// stop it.
//
// The offset store and the client are called without holding the state
// lock, so State and Err stay responsive during a slow bootstrap. A Shutdown
// that lands in the meantime wins and Start fails.
func (r *Reader[K, V]) Start(ctx context.Context) error {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if st := r.State(); st != StateNew {
		return newError(KindInvalidArgument, "start", fmt.Errorf("reader is %s", st))
	}

	start, err := ResolveStartOffset(ctx, r.opts.Offsets, r.opts.GroupID, r.opts.Topic)
	if err != nil {
		return err
	}
	if err := r.opts.Client.Subscribe(ctx, r.opts.Topic, start+1); err != nil {
		kind := KindFatal
		if errors.Is(err, logclient.ErrPartitionCount) || errors.Is(err, logclient.ErrTopicNotFound) {
			kind = KindConfiguration
		}
		return newError(kind, "subscribe", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateNew {
		return newError(KindInvalidArgument, "start", fmt.Errorf("reader is %s", r.state))
	}
	r.gate.Advance(start)
	r.metrics.SetAppliedOffset(start)
	r.logger.Info("initialized the consumer offset", logpkg.Int64("offset", start), logpkg.Str("group", r.opts.GroupID))

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.state = StateRunning
	go r.run(loopCtx)
	return nil
}

// Shutdown stops the client, closes the store and waits for the loop to
// exit, in that order. It is idempotent and safe to call concurrently. The
// client and store are closed once and their errors are returned by every
// call; ctx bounds only this call's wait for the loop, so a later call can
// still observe a clean exit.
func (r *Reader[K, V]) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() { r.shutdownErr = r.shutdown() })
	if r.shutdownErr != nil {
		return r.shutdownErr
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for reader loop: %w", ctx.Err())
	}
}

func (r *Reader[K, V]) shutdown() error {
	r.logger.Debug("starting shutdown of the store reader")
	r.mu.Lock()
	started := r.state != StateNew
	if r.state == StateRunning || r.state == StateNew {
		r.state = StateStopping
	}
	r.mu.Unlock()

	var errs []error
	if err := r.opts.Client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close log client: %w", err))
	}
	if err := r.opts.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close local store: %w", err))
	}

	if started {
		r.cancel()
	} else {
		r.finish(nil)
		close(r.done)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	r.logger.Info("store reader stopping", logpkg.Int64("applied_offset", r.gate.Applied()))
	return nil
}

// WaitUntil blocks until offset has been applied to the local store or
// timeout elapses. See OffsetGate.WaitUntil.
func (r *Reader[K, V]) WaitUntil(offset int64, timeout time.Duration) error {
	start := time.Now()
	err := r.gate.WaitUntil(offset, timeout)
	r.metrics.ObserveWait(time.Since(start), err)
	return err
}

// Applied returns the highest applied offset.
func (r *Reader[K, V]) Applied() int64 { return r.gate.Applied() }

// State returns the current lifecycle state.
func (r *Reader[K, V]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done is closed once the loop has exited, cleanly or not.
func (r *Reader[K, V]) Done() <-chan struct{} { return r.done }

// Err returns the error that terminated the loop, or nil.
func (r *Reader[K, V]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Reader[K, V]) stopping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateStopping || r.state == StateStopped
}

// finish records the loop's terminal state.
func (r *Reader[K, V]) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.err = err
		r.state = StateFailed
		return
	}
	r.state = StateStopped
}
