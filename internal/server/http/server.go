package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rzbill/logkv/internal/metrics"
	"github.com/rzbill/logkv/internal/runtime"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// Server serves the operational endpoints of a node.
type Server struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	srv    *http.Server
	lis    net.Listener
}

// New builds the router. reg may be nil, in which case /metrics is not
// mounted.
func New(rt *runtime.Runtime, reg *metrics.Registry, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	s := &Server{rt: rt, logger: logger.WithComponent("ops")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	if reg != nil {
		r.Handle("/metrics", reg.Handler())
	}
	s.srv = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
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
	s.logger.Info("ops server listening", logpkg.Str("addr", l.Addr().String()))
	return nil
}

// Serve serves on the listener bound by Listen until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.lis) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
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

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	State         string `json:"state"`
	AppliedOffset int64  `json:"appliedOffset"`
	Instance      string `json:"instance"`
	Error         string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reader := s.rt.Reader()
	resp := healthResponse{
		Status:        "ok",
		State:         reader.State().String(),
		AppliedOffset: reader.Applied(),
		Instance:      s.rt.InstanceID(),
	}
	code := http.StatusOK
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		resp.Status = "not_serving"
		resp.Error = err.Error()
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
