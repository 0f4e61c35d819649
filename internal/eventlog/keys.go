package eventlog

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - log/{topic}/{part_be4}/m
// - log/{topic}/{part_be4}/e/{offset_be8}
// - cursor/{topic}/{group}/{part_be4}

var (
	sep        = byte('/')
	logPrefix  = []byte("log/")
	cursorPfx  = []byte("cursor/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func partitionPrefix(topic string, partition int32) []byte {
	k := make([]byte, 0, len(topic)+32)
	k = append(k, logPrefix...)
	k = append(k, topic...)
	k = append(k, sep)
	k = appendBE4(k, uint32(partition))
	return k
}

// KeyLogMeta builds the partition metadata key.
func KeyLogMeta(topic string, partition int32) []byte {
	return append(partitionPrefix(topic, partition), metaSuffix...)
}

// KeyLogEntryPrefix is the common prefix of every entry key of a partition.
func KeyLogEntryPrefix(topic string, partition int32) []byte {
	return append(partitionPrefix(topic, partition), entrySeg...)
}

// KeyLogEntry builds the entry key with a big-endian offset for proper ordering.
func KeyLogEntry(topic string, partition int32, offset int64) []byte {
	return appendBE8(KeyLogEntryPrefix(topic, partition), uint64(offset))
}

// offsetFromEntryKey extracts the trailing big-endian offset.
func offsetFromEntryKey(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k[len(k)-8:]))
}

// KeyCursor builds the committed-offset key for a group and partition.
func KeyCursor(topic, group string, partition int32) []byte {
	k := make([]byte, 0, len(topic)+len(group)+24)
	k = append(k, cursorPfx...)
	k = append(k, topic...)
	k = append(k, sep)
	k = append(k, group...)
	k = append(k, sep)
	k = appendBE4(k, uint32(partition))
	return k
}
