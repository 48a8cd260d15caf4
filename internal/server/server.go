package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/history"
	"github.com/raaihank/confidenceboost/internal/logger"
	"github.com/raaihank/confidenceboost/internal/rewriter"
	"github.com/raaihank/confidenceboost/internal/usage"
	"github.com/raaihank/confidenceboost/internal/web"
	"github.com/raaihank/confidenceboost/internal/websocket"
	"go.uber.org/zap"
)

const statusInterval = 30 * time.Second

// Options carries the collaborators the server routes requests to
type Options struct {
	Rewriter rewriter.TextRewriter
	Limiter  usage.Limiter
	// Recorder is optional; nil disables history
	Recorder history.Recorder
	Version  string
}

// Server is the HTTP front end for the rewrite service
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	rewriter rewriter.TextRewriter
	limiter  usage.Limiter
	recorder history.Recorder
	version  string
	router   *mux.Router
	server   *http.Server
	wsHub    *websocket.Hub
	started  time.Time
	cancel   context.CancelFunc

	totalRewrites    atomic.Int64
	changedRewrites  atomic.Int64
	fallbackRewrites atomic.Int64
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Server, error) {
	if opts.Rewriter == nil {
		return nil, errors.New("server requires a rewriter")
	}
	if opts.Limiter == nil {
		opts.Limiter = usage.Unlimited{}
	}

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		rewriter: opts.Rewriter,
		limiter:  opts.Limiter,
		recorder: opts.Recorder,
		version:  opts.Version,
		router:   mux.NewRouter(),
		wsHub:    websocket.NewHub(cfg.WebSocket, log.Logger),
		started:  time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	s.router.HandleFunc("/", web.ServeDashboard).Methods(http.MethodGet)
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods(http.MethodGet)

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Handle("/rewrite", s.usageMiddleware(http.HandlerFunc(s.handleRewrite))).Methods(http.MethodPost)
	api.HandleFunc("/usage", s.handleUsage).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/stats", s.handleHistoryStats).Methods(http.MethodGet)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the hub and status feed, then serves HTTP until stopped
func (s *Server) Start() error {
	s.logger.Info("Starting ConfidenceBoost server",
		zap.Int("port", s.config.Server.Port),
		zap.String("strategy", s.rewriter.Name()),
		zap.Bool("usage_limit", s.config.Usage.Enabled),
		zap.Bool("history", s.recorder != nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.wsHub.Run()
	go s.broadcastStatus(ctx, statusInterval)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server and the hub
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ConfidenceBoost server")
	if s.cancel != nil {
		s.cancel()
	}
	s.wsHub.Stop()
	return s.server.Shutdown(ctx)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}

func (s *Server) broadcastStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.wsHub.BroadcastSystemStatus(s.systemStatus())
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) systemStatus() websocket.SystemStatusEvent {
	return websocket.SystemStatusEvent{
		Status:           "healthy",
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		Strategy:         s.rewriter.Name(),
		TotalRewrites:    s.totalRewrites.Load(),
		ChangedRewrites:  s.changedRewrites.Load(),
		FallbackRewrites: s.fallbackRewrites.Load(),
		ConnectedClients: s.wsHub.ClientCount(),
	}
}
