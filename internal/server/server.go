// Package server implements the WebSocket surface of the pairing relay.
// Devices attach on /register?id=<identifier> and mobiles on
// /pair?id=<identifier>; text frames are forwarded between the two roles
// of the same identifier, fanning out to every attached peer of the
// destination role.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openvibe/pairrelay/internal/metrics"
	"github.com/openvibe/pairrelay/internal/registry"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":3000"

// Config holds relay server configuration.
type Config struct {
	Addr    string           // listen address; DefaultAddr if empty
	Backlog int              // per-subscriber message buffer; bus.DefaultBacklog if zero
	Logger  *slog.Logger     // defaults to slog.Default()
	Metrics *metrics.Metrics // optional; nil disables metrics
}

// Server routes text messages between paired WebSocket peers.
type Server struct {
	reg     *registry.Registry
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Server from cfg. The Addr field is only used by
// ListenAndServe; callers mounting Handler elsewhere can leave it empty.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		reg:     registry.New(cfg.Backlog),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Handler returns the HTTP handler exposing the two role endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", s.handleWS(registry.RoleDevice))
	mux.HandleFunc("/pair", s.handleWS(registry.RoleMobile))
	return mux
}

// ListenAndServe starts the relay server. It blocks until ctx is
// cancelled, then shuts the HTTP server down gracefully. Connections
// already upgraded to WebSocket end when their peer disconnects or the
// process exits.
func ListenAndServe(ctx context.Context, cfg Config) error {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	return New(cfg).Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		close(shutdownDone)
	}()

	s.logger.Info("relay server listening", "addr", ln.Addr())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if ctx.Err() != nil {
		<-shutdownDone
	}
	return nil
}
