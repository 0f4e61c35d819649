// Package pebblestore wraps Pebble for the two databases of a node: the
// embedded commit log and the durable local store. It adds an fsync policy,
// ErrClosed after Close instead of Pebble's panics, a metrics hook and
// routing of Pebble's log lines into the structured logger.
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: filepath.Join(dataDir, "log"),
//	    Fsync:   pebblestore.FsyncModeInterval,
//	    Logger:  logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.Update(ctx, func(b *pebble.Batch) error {
//	    if err := b.Set(entryKey, entry, nil); err != nil {
//	        return err
//	    }
//	    return b.Set(metaKey, meta, nil)
//	})
package pebblestore
