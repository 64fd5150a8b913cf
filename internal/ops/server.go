package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the operational HTTP surface: a liveness endpoint and the
// Prometheus metrics. It is a leaf component; nothing in the bot depends
// on it.
type Server struct {
	addr      string
	logger    *slog.Logger
	metrics   http.Handler
	server    *http.Server
	boundAddr string
	startedAt time.Time
}

// NewServer creates an ops server bound to addr. metrics is mounted at
// GET /metrics.
func NewServer(addr string, metrics http.Handler, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		logger:  logger,
		metrics: metrics,
	}
}

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime_seconds"`
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth())
	r.Method(http.MethodGet, "/metrics", s.metrics)
	return r
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Uptime: int64(time.Since(s.startedAt).Seconds()),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Start binds the listener and serves in a background goroutine. The bind is
// synchronous so configuration errors surface at startup.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.buildRouter(),
		ReadTimeout: 10 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ops: listen failed: %w", err)
	}
	s.boundAddr = ln.Addr().String()

	go func() {
		s.logger.Info("ops server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.logger.Info("ops server shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.addr
}
