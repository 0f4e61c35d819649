// Package coordination stores consumer-group offsets outside the log, in
// etcd or Redis. Offsets are the "next offset to read", stored as decimal
// strings, and commits never move them backwards.
package coordination
