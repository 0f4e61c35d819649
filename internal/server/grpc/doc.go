// Package grpcserver serves the standard gRPC health protocol
// (grpc.health.v1) for a logkv node. The status of the empty service and of
// ServiceName follows runtime.CheckHealth and flips to NOT_SERVING for good
// once the log reader stops.
//
// Example:
//
//	s := grpcserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":9465")
package grpcserver
