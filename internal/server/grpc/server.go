package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/logkv/internal/runtime"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// ServiceName is the health service name reported alongside the empty
// (server-wide) one.
const ServiceName = "logkv.Replica"

const defaultCheckInterval = time.Second

// Server owns the gRPC server and its health status.
type Server struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener

	// CheckInterval is how often the status is refreshed while serving.
	CheckInterval time.Duration
}

// New constructs a gRPC server with the health service registered. Every
// service starts NOT_SERVING until the first Refresh.
func New(rt *runtime.Runtime, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	s := &Server{
		rt:            rt,
		logger:        logger.WithComponent("grpc"),
		grpc:          grpc.NewServer(opts...),
		health:        health.NewServer(),
		CheckInterval: defaultCheckInterval,
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// Refresh sets the status from the runtime's health check and returns it.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.rt.CheckHealth(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.setStatus(status)
	return status
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// watch refreshes the status every CheckInterval until ctx is done. A
// stopped reader is final: the status is pinned to NOT_SERVING and the
// watch ends.
func (s *Server) watch(ctx context.Context) {
	interval := s.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.rt.Reader().Done():
			s.logger.Warn("log reader stopped, reporting not serving")
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Listen binds addr without serving.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("grpc server listening", logpkg.Str("addr", l.Addr().String()))
	return nil
}

// Serve serves on the listener bound by Listen until ctx is done, then
// marks every service NOT_SERVING and stops gracefully.
func (s *Server) Serve(ctx context.Context) error {
	return s.serve(ctx, s.lis)
}

func (s *Server) serve(ctx context.Context, lis net.Listener) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.watch(wctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(lis) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the bound address once listening.
func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
