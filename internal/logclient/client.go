package logclient

import (
	"context"
	"errors"
)

// Record is a single entry read from a commit-log partition. A nil Value is
// a tombstone.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Tombstone reports whether the record deletes its key.
func (r Record) Tombstone() bool { return r.Value == nil }

// Client consumes exactly one partition of one topic.
type Client interface {
	// Subscribe attaches to topic and positions the stream at startOffset.
	// Topics with a partition count other than one fail with
	// ErrPartitionCount.
	Subscribe(ctx context.Context, topic string, startOffset int64) error
	// Next blocks until a record is available, ctx is done or the client is
	// closed (ErrClosed).
	Next(ctx context.Context) (Record, error)
	// CommitOffsets synchronously checkpoints the consumed position.
	CommitOffsets(ctx context.Context) error
	// Close stops delivery. Blocked Next calls return ErrClosed.
	Close() error
}

// Producer appends records to partition 0 of a topic.
type Producer interface {
	// Produce appends key/value (nil value is a tombstone) and returns the
	// offset it was assigned.
	Produce(ctx context.Context, topic string, key, value []byte) (int64, error)
}

// OffsetStore persists the next offset to read for a group/topic/partition.
type OffsetStore interface {
	// CommittedOffset returns the committed next offset. found is false when
	// the group never committed.
	CommittedOffset(ctx context.Context, group, topic string, partition int32) (next int64, found bool, err error)
	// CommitOffset stores next. Commits lower than the stored value are
	// ignored.
	CommitOffset(ctx context.Context, group, topic string, partition int32, next int64) error
}

var (
	// ErrClosed is returned by a Client after Close.
	ErrClosed = errors.New("logclient: client closed")
	// ErrMessageTooLarge reports a record larger than the consumer may fetch.
	ErrMessageTooLarge = errors.New("logclient: message exceeds maximum fetch size")
	// ErrConsumerTimeout reports that Next gave up waiting for a record.
	ErrConsumerTimeout = errors.New("logclient: consumer timed out waiting for a record")
	// ErrPartitionCount reports a topic that does not have exactly one partition.
	ErrPartitionCount = errors.New("logclient: topic must have exactly one partition")
	// ErrTopicNotFound reports a missing topic.
	ErrTopicNotFound = errors.New("logclient: topic not found")
	// ErrNotSubscribed is returned by Next before Subscribe.
	ErrNotSubscribed = errors.New("logclient: not subscribed")
)
