// Package serverrun exposes the Run entrypoint used by the CLI to start a
// logkv node: the runtime (log reader, local store, writer) plus the ops
// HTTP server, with signal handling and ordered shutdown.
//
// Example:
//
//	cfg, _ := config.Load("logkv.yaml")
//	config.FromEnv(&cfg)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
//	    os.Exit(1)
//	}
package serverrun
