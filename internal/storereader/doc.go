// Package storereader materializes a single-partition commit-log topic into a
// local key-value store.
//
// A Reader tails the topic on its own goroutine, deserializes each record,
// applies it to the store (put, or delete for a tombstone), notifies an
// update handler and finally advances its applied offset. Callers that have
// just produced a record use WaitUntil to block until the local store
// reflects that offset, which gives read-your-writes on top of an
// asynchronous log.
//
// Records whose key equals the configured noop key never touch the store;
// they only advance the applied offset. Writers produce them to learn how far
// the log has been read.
//
// Example:
//
//	r, _ := storereader.New(storereader.Options[string, string]{
//		Topic:      "_kvlog",
//		GroupID:    "logkv-node-1",
//		NoopKey:    "__noop__",
//		Client:     consumer,
//		Offsets:    offsets,
//		Store:      store,
//		Serializer: serde.NewKV(serde.String(), serde.String()),
//	})
//	_ = r.Start(ctx)
//	defer r.Shutdown(ctx)
//	_ = r.WaitUntil(offset, time.Second)
package storereader
