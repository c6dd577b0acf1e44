// Package server exposes the orchestrator over HTTP: command
// processing, live step streaming, provider and plugin inspection,
// metrics, and configuration reload.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/history"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/orchestrator"
	"github.com/opspilot/opspilot/internal/plugins"
)

// Server wires HTTP routes to the orchestrator and its collaborators.
type Server struct {
	cfg        *config.Handle
	configPath string
	orch       *orchestrator.Orchestrator
	gateway    *llm.Gateway
	registry   *plugins.Registry
	store      *history.Store
	httpServer *http.Server
	log        *logging.Logger
	started    time.Time
}

// Options collect the server's collaborators. Registry and Store may
// be nil; their endpoints then report empty results.
type Options struct {
	Config     *config.Handle
	ConfigPath string
	Orch       *orchestrator.Orchestrator
	Gateway    *llm.Gateway
	Registry   *plugins.Registry
	Store      *history.Store
}

// New builds a server. Routes are registered on Handler().
func New(opts Options) *Server {
	return &Server{
		cfg:        opts.Config,
		configPath: opts.ConfigPath,
		orch:       opts.Orch,
		gateway:    opts.Gateway,
		registry:   opts.Registry,
		store:      opts.Store,
		log:        logging.Global().WithComponent("server"),
		started:    time.Now(),
	}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/command", s.handleCommand)
	mux.HandleFunc("GET /api/command/stream", s.handleCommandStream)
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /api/plugins", s.handlePlugins)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/metrics/llm", s.handleLLMMetrics)
	mux.HandleFunc("POST /api/metrics/llm/reset", s.handleMetricsReset)

	return mux
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	cfg := s.cfg.Current()
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // command execution has no upper bound
	}

	s.log.Info("Listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
