// Package localstore provides the materialized key-value stores a reader
// folds the commit log into: an ordered in-memory store on a B-tree and a
// durable store on Pebble.
//
// Both are safe for concurrent use. After Close every operation returns
// ErrClosed.
package localstore

import "errors"

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("localstore: store closed")
