package storereader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/logkv/internal/logclient"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

func (r *Reader[K, V]) run(ctx context.Context) {
	defer close(r.done)
	err := r.loop(ctx)
	if err != nil && r.stopping() {
		r.logger.Debug("reader loop exiting during shutdown", logpkg.Err(err))
		err = nil
	}
	if err != nil {
		kind := KindOf(err)
		r.metrics.LoopTerminated(kind)
		r.logger.Error("store reader loop has died", logpkg.Str("kind", kind.String()), logpkg.Err(err))
	}
	r.finish(err)
}

// loop runs until the client is closed or an unrecoverable error occurs.
// Panics are converted to KindFatal errors.
func (r *Reader[K, V]) loop(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newError(KindFatal, "loop", fmt.Errorf("panic: %v", p))
		}
	}()

	lastCommit := r.now()
	for {
		if r.stopping() {
			return nil
		}
		rec, err := r.opts.Client.Next(ctx)
		if err != nil {
			return r.streamError(err)
		}
		if err := r.applier.applyRecord(rec); err != nil {
			return err
		}
		lastCommit = r.maybeCommit(ctx, lastCommit)
	}
}

// streamError classifies an error returned by the client's Next. None of
// them are retried: the client is expected to block until a record arrives.
func (r *Reader[K, V]) streamError(err error) error {
	switch {
	case r.stopping():
		return nil
	case errors.Is(err, logclient.ErrMessageTooLarge):
		return newError(KindConfiguration, "next",
			fmt.Errorf("a record exceeds the maximum fetch size: %w", err))
	case errors.Is(err, logclient.ErrConsumerTimeout):
		return newError(KindFatal, "next",
			fmt.Errorf("log stream timed out despite an expected infinite timeout: %w", err))
	case errors.Is(err, logclient.ErrClosed):
		return newError(KindFatal, "next", fmt.Errorf("log client closed outside shutdown: %w", err))
	default:
		return newError(KindFatal, "next", err)
	}
}

// maybeCommit commits the consumed position when more than CommitInterval
// has passed since last, returning the new reference time. Commit failures
// are logged; the next one retries.
func (r *Reader[K, V]) maybeCommit(ctx context.Context, last time.Time) time.Time {
	if r.opts.CommitInterval <= 0 {
		return last
	}
	now := r.now()
	if now.Sub(last) <= r.opts.CommitInterval {
		return last
	}
	r.logger.Debug("committing offsets", logpkg.Int64("applied_offset", r.gate.Applied()))
	start := time.Now()
	err := r.opts.Client.CommitOffsets(ctx)
	r.metrics.ObserveCommit(time.Since(start), err)
	if err != nil {
		r.logger.Warn("failed to commit offsets", logpkg.Err(err))
	}
	return now
}
