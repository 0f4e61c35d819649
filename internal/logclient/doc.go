// Package logclient defines the wire-level contracts between the store
// reader and a commit-log backend: the Record shape, the consuming Client,
// the Producer used by writers, and the OffsetStore that persists
// "next offset to read" checkpoints for a consumer group.
//
// Backends live in sibling packages: eventlog (embedded, Pebble), kafkalog
// (franz-go) and coordination (etcd, Redis offset stores).
package logclient
