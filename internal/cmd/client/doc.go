// Package client provides the `logkv log` and `logkv topic` commands.
//
// The commands open the configured commit log directly: the embedded
// Pebble log under the data directory, or the Kafka cluster named in the
// configuration. The embedded log is locked by a running server, so use
// these commands against it only while the server is stopped.
//
// Usage
//
//	logkv topic create --name _kvlog
//	logkv log append greeting hello
//	logkv log append greeting --delete
//	logkv log tail --from 0 --idle-timeout 1s
//
// tail prints one JSON object per record:
//
//	{"key":"greeting","offset":0,"value_text":"hello"}
//	{"key":"greeting","offset":1,"tombstone":true}
package client
