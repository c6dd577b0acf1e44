package server

import (
	"net/http"
	"time"

	"github.com/opspilot/opspilot/internal/llm"
)

// LLMMetricsResponse is the JSON response for the metrics endpoint.
type LLMMetricsResponse struct {
	Timestamp string                 `json:"timestamp"`
	Summary   map[string]interface{} `json:"summary"`
	Providers map[string]interface{} `json:"providers"`
}

// handleLLMMetrics returns per-provider call metrics.
// GET /api/metrics/llm
func (s *Server) handleLLMMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeJSON(w, http.StatusOK, LLMMetricsResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:   llm.GetMetricsSummary(),
		Providers: llm.GetAllMetrics(),
	})
}

// handleMetricsReset zeroes all provider metrics.
// POST /api/metrics/llm/reset
func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	llm.ResetAllMetrics()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "All LLM metrics have been reset",
	})
}
