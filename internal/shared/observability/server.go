package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /metrics and /health.
type Server struct {
	addr   string
	server *http.Server
	ln     net.Listener
	health func(context.Context) any
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// SetHealthCheck replaces the static /health body with the JSON encoding of
// fn's result. Must be called before Start.
func (s *Server) SetHealthCheck(fn func(context.Context) any) {
	s.health = fn
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.health == nil {
			_, _ = w.Write([]byte(`{"status":"up"}`))
			return
		}
		if err := json.NewEncoder(w).Encode(s.health(r.Context())); err != nil {
			slog.Warn("encode health status", "error", err)
		}
	})

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	slog.Info("metrics server starting", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, useful when started on port 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
