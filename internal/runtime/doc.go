// Package runtime wires configuration into a single-node logkv instance:
// the commit log (embedded Pebble or Kafka), the offset store, the local
// store, the reader that materializes the log and the read-your-writes
// writer on top.
//
// Example:
//
//	rt, err := runtime.Open(ctx, runtime.Options{Config: cfg, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(context.Background())
//	if err := rt.Start(ctx); err != nil {
//	    return err
//	}
//	_, err = rt.Store().Put(ctx, "greeting", []byte("hello"))
package runtime
