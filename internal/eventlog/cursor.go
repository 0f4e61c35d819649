package eventlog

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
)

// Cursors stores committed "next offset to read" positions per
// group/topic/partition in Pebble. It implements logclient.OffsetStore.
type Cursors struct {
	db *pebblestore.DB
	mu sync.Mutex
}

// NewCursors returns a cursor store on db.
func NewCursors(db *pebblestore.DB) *Cursors { return &Cursors{db: db} }

// CommitOffset stores next idempotently. If the provided offset is lower than
// or equal to the stored one, the commit is ignored.
func (c *Cursors) CommitOffset(ctx context.Context, group, topic string, partition int32, next int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := KeyCursor(topic, group, partition)
	prev, found, err := c.load(key)
	if err != nil {
		return err
	}
	if found && next <= prev {
		return nil
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(next))
	return c.db.Set(key, b[:])
}

// CommittedOffset loads the committed next offset for a group/partition.
func (c *Cursors) CommittedOffset(ctx context.Context, group, topic string, partition int32) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	return c.load(KeyCursor(topic, group, partition))
}

func (c *Cursors) load(key []byte) (int64, bool, error) {
	cur, err := c.db.Get(key)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(cur) < 8 {
		return 0, false, nil
	}
	return int64(binary.BigEndian.Uint64(cur[:8])), true, nil
}
