package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/logkv/internal/logclient"
	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
	"github.com/rzbill/logkv/internal/topic"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

const defaultBatchSize = 256

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	// Group identifies the consumer group used for commits.
	Group string
	// MaxMessageBytes caps the size of a single fetched record. Zero means
	// unlimited.
	MaxMessageBytes int
	// ConsumerTimeout makes Next fail with logclient.ErrConsumerTimeout when
	// no record arrives in time. Zero blocks indefinitely.
	ConsumerTimeout time.Duration
	// BatchSize is the number of entries read from Pebble at once.
	BatchSize int
	// Offsets receives commits. Defaults to the broker's cursors.
	Offsets logclient.OffsetStore
}

// Consumer reads a single-partition topic. Next and CommitOffsets are meant
// to be called from one goroutine; Close may be called from any goroutine.
type Consumer struct {
	broker *Broker
	opts   ConsumerOptions
	logger logpkg.Logger

	log      *Log
	fetchPos int64
	buf      []Item

	position  atomic.Int64 // next offset to deliver
	committed int64

	closed    chan struct{}
	closeOnce sync.Once
}

// NewConsumer creates an unsubscribed consumer.
func (b *Broker) NewConsumer(opts ConsumerOptions) *Consumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Offsets == nil {
		opts.Offsets = b.cursors
	}
	return &Consumer{
		broker:    b,
		opts:      opts,
		logger:    b.logger.With(logpkg.Str("group", opts.Group)),
		committed: -1,
		closed:    make(chan struct{}),
	}
}

// Subscribe implements logclient.Client.
func (c *Consumer) Subscribe(ctx context.Context, topicName string, startOffset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta, err := topic.Get(c.broker.db, topicName)
	if err != nil {
		return fmt.Errorf("unable to subscribe to topic %s: %w", topicName, err)
	}
	if meta.Partitions != 1 {
		return fmt.Errorf("%w: %s has %d partitions", logclient.ErrPartitionCount, topicName, meta.Partitions)
	}
	l, err := c.broker.Log(topicName, 0)
	if err != nil {
		return err
	}
	if startOffset < 0 {
		startOffset = 0
	}
	c.log = l
	c.fetchPos = startOffset
	c.position.Store(startOffset)
	c.committed = startOffset
	c.logger.Debug("subscribed", logpkg.Str("topic", topicName), logpkg.Int64("start_offset", startOffset))
	return nil
}

// Next implements logclient.Client.
func (c *Consumer) Next(ctx context.Context) (logclient.Record, error) {
	if c.log == nil {
		return logclient.Record{}, logclient.ErrNotSubscribed
	}
	var timeout <-chan time.Time
	if c.opts.ConsumerTimeout > 0 {
		t := time.NewTimer(c.opts.ConsumerTimeout)
		defer t.Stop()
		timeout = t.C
	}
	for {
		select {
		case <-c.closed:
			return logclient.Record{}, logclient.ErrClosed
		default:
		}

		if len(c.buf) > 0 {
			it := c.buf[0]
			if c.opts.MaxMessageBytes > 0 && it.Size() > c.opts.MaxMessageBytes {
				return logclient.Record{}, fmt.Errorf("%w: offset %d is %d bytes, limit %d",
					logclient.ErrMessageTooLarge, it.Offset, it.Size(), c.opts.MaxMessageBytes)
			}
			c.buf = c.buf[1:]
			c.position.Store(it.Offset + 1)
			return logclient.Record{
				Topic:     c.log.Topic(),
				Partition: c.log.Partition(),
				Offset:    it.Offset,
				Key:       it.Key,
				Value:     it.Value,
			}, nil
		}

		wake := c.log.appendNotify()
		items, err := c.log.Read(c.fetchPos, c.opts.BatchSize)
		if err != nil {
			if errors.Is(err, pebblestore.ErrClosed) {
				return logclient.Record{}, logclient.ErrClosed
			}
			return logclient.Record{}, err
		}
		if len(items) > 0 {
			c.buf = items
			c.fetchPos = items[len(items)-1].Offset + 1
			continue
		}

		select {
		case <-wake:
		case <-c.closed:
			return logclient.Record{}, logclient.ErrClosed
		case <-ctx.Done():
			return logclient.Record{}, ctx.Err()
		case <-timeout:
			return logclient.Record{}, logclient.ErrConsumerTimeout
		}
	}
}

// Position returns the next offset Next will deliver.
func (c *Consumer) Position() int64 { return c.position.Load() }

// CommitOffsets implements logclient.Client. Nothing is written when the
// position has not moved since the last commit.
func (c *Consumer) CommitOffsets(ctx context.Context) error {
	if c.log == nil {
		return logclient.ErrNotSubscribed
	}
	pos := c.position.Load()
	if pos <= c.committed {
		return nil
	}
	if err := c.opts.Offsets.CommitOffset(ctx, c.opts.Group, c.log.Topic(), c.log.Partition(), pos); err != nil {
		return fmt.Errorf("commit offset %d: %w", pos, err)
	}
	c.committed = pos
	return nil
}

// Close implements logclient.Client.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

var _ logclient.Client = (*Consumer)(nil)
