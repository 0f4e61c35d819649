package eventlog

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
)

// AppendRecord represents a single appendable record. A nil Value is a
// tombstone.
type AppendRecord struct {
	Key   []byte
	Value []byte
}

// Log provides append-only operations for a topic/partition.
type Log struct {
	db    *pebblestore.DB
	topic string
	part  int32

	mu         sync.Mutex
	nextOffset int64
	notifyCh   chan struct{}
}

// OpenLog initializes a Log and loads the next offset from metadata (if any).
func OpenLog(db *pebblestore.DB, topic string, partition int32) (*Log, error) {
	l := &Log{db: db, topic: topic, part: partition, notifyCh: make(chan struct{})}
	meta, err := db.Get(KeyLogMeta(topic, partition))
	switch {
	case err == nil && len(meta) >= 8:
		l.nextOffset = int64(binary.BigEndian.Uint64(meta[:8]))
	case err != nil && !errors.Is(err, pebblestore.ErrNotFound):
		return nil, err
	}
	return l, nil
}

// Topic returns the topic name.
func (l *Log) Topic() string { return l.topic }

// Partition returns the partition number.
func (l *Log) Partition() int32 { return l.part }

// NextOffset returns the offset the next appended record will receive
// (the log end offset).
func (l *Log) NextOffset() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextOffset
}

// Append appends the provided records as a single atomic batch. Returns the
// assigned offsets.
func (l *Log) Append(ctx context.Context, recs []AppendRecord) ([]int64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.nextOffset
	offsets := make([]int64, len(recs))
	err := l.db.Update(ctx, func(b *pebble.Batch) error {
		for i, r := range recs {
			if err := b.Set(KeyLogEntry(l.topic, l.part, next+int64(i)), EncodeRecord(r.Key, r.Value), nil); err != nil {
				return err
			}
			offsets[i] = next + int64(i)
		}
		var meta [8]byte
		binary.BigEndian.PutUint64(meta[:], uint64(next+int64(len(recs))))
		return b.Set(KeyLogMeta(l.topic, l.part), meta[:], nil)
	})
	if err != nil {
		return nil, err
	}
	l.nextOffset = next + int64(len(recs))
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	return offsets, nil
}
