package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/server/handler"
	"github.com/alanyoungcy/polyarb/internal/server/middleware"
	"github.com/alanyoungcy/polyarb/internal/server/ws"
)

// ShutdownGrace bounds how long Run waits for open requests after its
// context ends.
const ShutdownGrace = 5 * time.Second

// Config configures the API listener and its middleware.
type Config struct {
	// Port 0 picks a free port.
	Port        int
	CORSOrigins []string
	// APIKey enables shared-key auth on everything but health and metrics.
	APIKey string

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// it, as does a nil Limiter.
	RateLimit  int
	RateWindow time.Duration
	Limiter    domain.RateLimiter
}

// Handlers are the route targets. A nil handler leaves its route out.
type Handlers struct {
	Health        *handler.HealthHandler
	Status        *handler.StatusHandler
	Markets       *handler.MarketHandler
	Opportunities *handler.OpportunityHandler
	Relations     *handler.RelationHandler
	Metrics       http.Handler
}

// Server is the read-only HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers routes and wraps them in the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
			Handler:           NewHandler(cfg, handlers, wsHub, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// NewHandler builds the routed, middleware-wrapped handler. Health and
// metrics bypass authentication and rate limiting.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	api := http.NewServeMux()
	if handlers.Status != nil {
		api.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}
	if handlers.Markets != nil {
		api.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	}
	if handlers.Opportunities != nil {
		api.HandleFunc("GET /api/opportunities", handlers.Opportunities.ListOpportunities)
	}
	if handlers.Relations != nil {
		api.HandleFunc("GET /api/relations", handlers.Relations.ListRelations)
		api.HandleFunc("GET /api/wallets/flagged", handlers.Relations.ListFlaggedWallets)
	}
	if wsHub != nil {
		api.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var protected http.Handler = api
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		protected = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow)(protected)
	}
	protected = middleware.Auth(cfg.APIKey)(protected)

	root := http.NewServeMux()
	if handlers.Health != nil {
		root.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}
	if handlers.Metrics != nil {
		root.Handle("GET /metrics", handlers.Metrics)
	}
	root.Handle("/", protected)

	var h http.Handler = root
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Run serves until ctx ends, then gives in-flight requests ShutdownGrace
// to finish. A listen failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.httpServer.Addr, err)
	}
	s.logger.InfoContext(ctx, "listening", slog.String("addr", ln.Addr().String()))

	served := make(chan error, 1)
	go func() { served <- s.httpServer.Serve(ln) }()

	select {
	case err := <-served:
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	grace, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownGrace)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(grace); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}
