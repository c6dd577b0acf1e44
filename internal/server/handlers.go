package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/orchestrator"
	"github.com/opspilot/opspilot/internal/plugins"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// handleCommand processes one command and returns the full envelope.
// POST /api/command
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	// A client disconnect must not cancel in-progress plan execution.
	ctx := logging.DetachContext(r.Context())
	env := s.orch.ProcessCommand(ctx, req)

	writeJSON(w, http.StatusOK, env)
}

// handleProviders lists registered providers and their availability.
// GET /api/providers
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": s.gateway.Providers(),
		"default":   s.gateway.DefaultProvider(),
	})
}

// handleReload re-reads configuration and swaps the provider and
// plugin registries. In-flight requests keep the registries they
// started with.
// POST /api/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.LoadFromPath(s.configPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reload failed: "+err.Error())
		return
	}

	if err := s.gateway.Reload(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "provider reload failed: "+err.Error())
		return
	}
	if s.registry != nil {
		descs := make([]plugins.Descriptor, 0, len(cfg.Plugins))
		for _, pc := range cfg.Plugins {
			descs = append(descs, plugins.Descriptor{Name: pc.Name, Path: pc.Path, Enabled: pc.Enabled})
		}
		s.registry.Reload(descs)
	}
	s.cfg.Swap(cfg)

	s.log.Info("Configuration reloaded from %s", s.configPath)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"providers": s.gateway.Providers(),
	})
}

// handlePlugins lists registered extension modules.
// GET /api/plugins
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	var infos []plugins.Info
	if s.registry != nil {
		infos = s.registry.List()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plugins": infos})
}

// handleHistory returns recent command history.
// GET /api/history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"entries": []interface{}{}})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := s.store.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history query failed: "+err.Error())
		return
	}

	counts, err := s.store.CountByType()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history query failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"counts":  counts,
	})
}

// handleHealth reports liveness and provider readiness.
// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	available := 0
	for _, p := range s.gateway.Providers() {
		if p.Available {
			available++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"uptime":             time.Since(s.started).String(),
		"providersAvailable": available,
	})
}
