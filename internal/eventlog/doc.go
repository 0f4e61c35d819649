// Package eventlog implements logkv's embedded append-only commit log.
//
// # Overview
//
// The log is partitioned by topic/partition and persisted in Pebble. Offsets
// start at 0 and increase by one per record, like a Kafka partition. Keys are
// lexicographically ordered for efficient range scans:
//   - log/{topic}/{part_be4}/m              (partition metadata: next offset)
//   - log/{topic}/{part_be4}/e/{offset_be8} (entries)
//   - cursor/{topic}/{group}/{part_be4}     (committed next offset per group)
//
// Records are stored as: flags(1B) | uvarint keyLen | key | value |
// crc32c(flags|key|value). Flag bit 0 marks a tombstone.
//
// API surface (internal)
//
//	b := NewBroker(db, logger)
//	_, _ = topic.Ensure(db, "_kvlog")
//
//	// Produce to partition 0; returns the assigned offset
//	off, _ := b.Produce(ctx, "_kvlog", []byte("k"), []byte("v"))
//
//	// Consume from a start offset (blocking Next, periodic commits)
//	c := b.NewConsumer(ConsumerOptions{Group: "replicas"})
//	_ = c.Subscribe(ctx, "_kvlog", 0)
//	rec, _ := c.Next(ctx)
//	_ = c.CommitOffsets(ctx)
//
// The Broker caches one Log per partition so that appends wake consumers in
// the same process.
package eventlog
