package eventlog

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Item is a decoded log entry.
type Item struct {
	Offset int64
	Key    []byte
	Value  []byte // nil for tombstones
}

// Size is the number of payload bytes the entry carries.
func (it Item) Size() int { return len(it.Key) + len(it.Value) }

// Read returns up to limit items starting at from (inclusive), in offset
// order. limit <= 0 reads to the end of the log. Corrupt entries abort the
// read with an error rather than being skipped, since skipping would silently
// drop part of the log.
func (l *Log) Read(from int64, limit int) ([]Item, error) {
	if from < 0 {
		from = 0
	}
	prefix := KeyLogEntryPrefix(l.topic, l.part)
	hi := KeyLogEntry(l.topic, l.part, -1) // all-ones offset
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: append(hi, 0x00)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	items := make([]Item, 0, max(1, limit))
	for ok := iter.SeekGE(KeyLogEntry(l.topic, l.part, from)); ok; ok = iter.Next() {
		if limit > 0 && len(items) >= limit {
			break
		}
		off := offsetFromEntryKey(iter.Key())
		dec, valid := DecodeRecord(iter.Value())
		if !valid {
			return items, fmt.Errorf("eventlog: %s/%d: corrupt entry at offset %d", l.topic, l.part, off)
		}
		items = append(items, Item{Offset: off, Key: dec.Key, Value: dec.Value})
	}
	return items, iter.Error()
}
