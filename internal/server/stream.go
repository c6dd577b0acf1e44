package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/opspilot/opspilot/internal/executor"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamMessage is one frame on the command stream. Type is "step"
// while the plan runs and "done" for the terminal envelope.
type streamMessage struct {
	Type     string                 `json:"type"`
	Step     *executor.StepResult   `json:"step,omitempty"`
	Envelope *orchestrator.Envelope `json:"envelope,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// handleCommandStream upgrades to WebSocket, reads one request, and
// streams step results as they complete, ending with the envelope.
// GET /api/command/stream
func (s *Server) handleCommandStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var req orchestrator.Request
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(streamMessage{Type: "error", Error: "invalid request"})
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		conn.WriteJSON(streamMessage{Type: "error", Error: "command is required"})
		return
	}

	// Execution continues even if the socket drops mid-plan; write
	// errors are logged and the remaining steps still run.
	ctx := logging.DetachContext(r.Context())
	env := s.orch.ProcessCommandObserved(ctx, req, func(sr executor.StepResult) {
		if err := conn.WriteJSON(streamMessage{Type: "step", Step: &sr}); err != nil {
			s.log.Warn("Stream write failed: %v", err)
		}
	})

	if err := conn.WriteJSON(streamMessage{Type: "done", Envelope: env}); err != nil {
		s.log.Warn("Stream final write failed: %v", err)
	}
}
