// Package server exposes the checker and a live preview over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/checker"
	"github.com/raaihank/grammar-sentinel/internal/config"
	"github.com/raaihank/grammar-sentinel/internal/history"
	"github.com/raaihank/grammar-sentinel/internal/logger"
	"github.com/raaihank/grammar-sentinel/internal/metrics"
	"github.com/raaihank/grammar-sentinel/internal/render"
	"github.com/raaihank/grammar-sentinel/internal/session"
	"github.com/raaihank/grammar-sentinel/internal/web"
	"github.com/raaihank/grammar-sentinel/internal/websocket"
)

// Deps are the collaborators the server routes to. Hub, History and
// Metrics are optional.
type Deps struct {
	Checker  *checker.Checker
	Sessions *session.Manager
	Document *checker.Document
	Hub      *websocket.Hub
	History  *history.Store
	Metrics  *metrics.Metrics
	Version  string
}

// Server represents the preview server
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	deps     Deps
	renderer render.Renderer
	limiter  *RateLimiter
	router   *mux.Router
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, deps Deps) (*Server, error) {
	if deps.Checker == nil || deps.Sessions == nil || deps.Document == nil {
		return nil, fmt.Errorf("server requires a checker, a session manager and a document")
	}

	renderer, err := render.New("html", render.Options{
		HighlightClass: cfg.Render.HighlightClass,
		Placeholder:    cfg.Render.Placeholder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		deps:     deps,
		renderer: renderer,
		router:   mux.NewRouter(),
	}
	if cfg.Server.RateLimit.Enabled {
		s.limiter = NewRateLimiter(cfg.Server.RateLimit.RequestsPerMin, cfg.Server.RateLimit.Burst)
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
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/", web.ServePreview).Methods(http.MethodGet)

	if s.deps.Hub != nil && s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.deps.Hub.HandleWebSocket).Methods(http.MethodGet)
	}
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.Use(s.bodyLimitMiddleware)

	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/documents/text", s.handleSetText).Methods(http.MethodPost)
	api.HandleFunc("/check", s.handleCheck).Methods(http.MethodPost)
	api.HandleFunc("/preview", s.handlePreview).Methods(http.MethodGet)
	api.HandleFunc("/overlay", s.handleOverlay).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the hub and serves HTTP until Stop is called
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.deps.Hub != nil {
		go s.deps.Hub.Run(ctx)
	}
	if s.limiter != nil {
		go s.limiter.RunCleanup(ctx, 10*time.Minute)
	}

	s.logger.Info("Starting Grammar Sentinel preview server",
		zap.Int("port", s.config.Server.Port),
		zap.String("service", s.config.Service.BaseURL),
		zap.Bool("websocket", s.deps.Hub != nil && s.config.WebSocket.Enabled),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server and the hub
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping Grammar Sentinel preview server")
	if s.cancel != nil {
		s.cancel()
	}
	return s.server.Shutdown(ctx)
}
