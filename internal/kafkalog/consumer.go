package kafkalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/rzbill/logkv/internal/logclient"
)

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Group string
	// MaxMessageBytes rejects records larger than this. Zero means
	// unlimited.
	MaxMessageBytes int
	// ConsumerTimeout makes Next fail with logclient.ErrConsumerTimeout
	// when nothing arrives in time. Zero blocks indefinitely.
	ConsumerTimeout time.Duration
	// Offsets receives commits. Defaults to the cluster's group offsets.
	Offsets logclient.OffsetStore
}

// Consumer reads partition 0 of a single-partition topic, starting at an
// explicit offset rather than through group assignment.
type Consumer struct {
	cluster *Cluster
	opts    ConsumerOptions
	logger  *zap.Logger

	topic string
	buf   []*kgo.Record

	position  atomic.Int64
	committed int64

	mu     sync.Mutex
	cl     *kgo.Client
	closed bool
}

// NewConsumer creates an unsubscribed consumer. Its client is created by
// Subscribe.
func (c *Cluster) NewConsumer(opts ConsumerOptions) *Consumer {
	if opts.Offsets == nil {
		opts.Offsets = c.Offsets()
	}
	logger := c.cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		cluster:   c,
		opts:      opts,
		logger:    logger.With(zap.String("group", opts.Group)),
		committed: -1,
	}
}

// Subscribe implements logclient.Client.
func (c *Consumer) Subscribe(ctx context.Context, topic string, startOffset int64) error {
	n, err := c.cluster.partitionCount(ctx, topic)
	if err != nil {
		return fmt.Errorf("unable to subscribe to topic %s: %w", topic, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s has %d partitions", logclient.ErrPartitionCount, topic, n)
	}
	if startOffset < 0 {
		startOffset = 0
	}
	kopts := append(c.cluster.cfg.clientOpts(), kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
		topic: {0: kgo.NewOffset().At(startOffset)},
	}))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return logclient.ErrClosed
	}
	if c.cl != nil {
		return fmt.Errorf("kafkalog: already subscribed to %s", c.topic)
	}
	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return fmt.Errorf("kafkalog: new consumer client: %w", err)
	}
	c.cl = cl
	c.topic = topic
	c.position.Store(startOffset)
	c.committed = startOffset
	c.logger.Debug("subscribed", zap.String("topic", topic), zap.Int64("start_offset", startOffset))
	return nil
}

// Next implements logclient.Client.
func (c *Consumer) Next(ctx context.Context) (logclient.Record, error) {
	if c.topic == "" {
		return logclient.Record{}, logclient.ErrNotSubscribed
	}
	var deadline time.Time
	if c.opts.ConsumerTimeout > 0 {
		deadline = time.Now().Add(c.opts.ConsumerTimeout)
	}
	for len(c.buf) == 0 {
		if err := c.poll(ctx, deadline); err != nil {
			return logclient.Record{}, err
		}
	}
	r := c.buf[0]
	if size := len(r.Key) + len(r.Value); c.opts.MaxMessageBytes > 0 && size > c.opts.MaxMessageBytes {
		return logclient.Record{}, fmt.Errorf("%w: offset %d is %d bytes, limit %d",
			logclient.ErrMessageTooLarge, r.Offset, size, c.opts.MaxMessageBytes)
	}
	c.buf[0] = nil
	c.buf = c.buf[1:]
	c.position.Store(r.Offset + 1)
	return logclient.Record{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
	}, nil
}

func (c *Consumer) poll(ctx context.Context, deadline time.Time) error {
	pollCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	cl, err := c.client()
	if err != nil {
		return err
	}
	fetches := cl.PollFetches(pollCtx)
	if fetches.IsClientClosed() {
		return logclient.ErrClosed
	}
	for _, fe := range fetches.Errors() {
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(fe.Err, context.DeadlineExceeded):
			return logclient.ErrConsumerTimeout
		case tooLarge(fe.Err):
			return fmt.Errorf("%w: %v", logclient.ErrMessageTooLarge, fe.Err)
		case kerr.IsRetriable(fe.Err):
			c.logger.Warn("consumer fetches returned retriable error",
				zap.Error(fe.Err), zap.String("topic", fe.Topic), zap.Int32("partition", fe.Partition))
		default:
			return fmt.Errorf("kafkalog: fetch %s/%d: %w", fe.Topic, fe.Partition, fe.Err)
		}
	}
	fetches.EachRecord(func(r *kgo.Record) { c.buf = append(c.buf, r) })
	return nil
}

// Position returns the next offset Next will deliver.
func (c *Consumer) Position() int64 { return c.position.Load() }

// CommitOffsets implements logclient.Client.
func (c *Consumer) CommitOffsets(ctx context.Context) error {
	if c.topic == "" {
		return logclient.ErrNotSubscribed
	}
	pos := c.position.Load()
	if pos <= c.committed {
		return nil
	}
	if err := c.opts.Offsets.CommitOffset(ctx, c.opts.Group, c.topic, 0, pos); err != nil {
		return err
	}
	c.committed = pos
	return nil
}

// Close implements logclient.Client. A blocked Next returns
// logclient.ErrClosed.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cl != nil {
		c.cl.Close()
	}
	return nil
}

func (c *Consumer) client() (*kgo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, logclient.ErrClosed
	}
	return c.cl, nil
}

var _ logclient.Client = (*Consumer)(nil)
