package eventlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/rzbill/logkv/internal/logclient"
	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
	"github.com/rzbill/logkv/internal/topic"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

type partitionKey struct {
	topic string
	part  int32
}

// Broker is the embedded, single-node stand-in for a log broker. It owns no
// storage: the caller opens and closes db.
type Broker struct {
	db      *pebblestore.DB
	cursors *Cursors
	logger  logpkg.Logger

	mu   sync.Mutex
	logs map[partitionKey]*Log
}

// NewBroker returns a Broker backed by db.
func NewBroker(db *pebblestore.DB, logger logpkg.Logger) *Broker {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &Broker{
		db:      db,
		cursors: NewCursors(db),
		logger:  logger.WithComponent("eventlog"),
		logs:    make(map[partitionKey]*Log),
	}
}

// Cursors returns the broker's Pebble-backed offset store.
func (b *Broker) Cursors() *Cursors { return b.cursors }

// Log returns the shared Log for topic/partition, opening it on first use.
func (b *Broker) Log(topicName string, partition int32) (*Log, error) {
	meta, err := topic.Get(b.db, topicName)
	if err != nil {
		return nil, err
	}
	if partition < 0 || int(partition) >= meta.Partitions {
		return nil, fmt.Errorf("eventlog: %s has no partition %d", topicName, partition)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	k := partitionKey{topic: topicName, part: partition}
	if l, ok := b.logs[k]; ok {
		return l, nil
	}
	l, err := OpenLog(b.db, topicName, partition)
	if err != nil {
		return nil, err
	}
	b.logs[k] = l
	return l, nil
}

// Produce appends key/value to partition 0 of topicName and returns the
// assigned offset. Records above the topic's MaxMessageBytes are rejected
// with logclient.ErrMessageTooLarge.
func (b *Broker) Produce(ctx context.Context, topicName string, key, value []byte) (int64, error) {
	meta, err := topic.Get(b.db, topicName)
	if err != nil {
		return 0, err
	}
	if size := len(key) + len(value); meta.MaxMessageBytes > 0 && size > meta.MaxMessageBytes {
		return 0, fmt.Errorf("%w: %d bytes, topic %s allows %d", logclient.ErrMessageTooLarge, size, topicName, meta.MaxMessageBytes)
	}
	l, err := b.Log(topicName, 0)
	if err != nil {
		return 0, err
	}
	offs, err := l.Append(ctx, []AppendRecord{{Key: key, Value: value}})
	if err != nil {
		return 0, err
	}
	return offs[0], nil
}

var _ logclient.Producer = (*Broker)(nil)
