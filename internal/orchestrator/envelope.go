package orchestrator

import (
	"time"

	"github.com/opspilot/opspilot/internal/architect"
	"github.com/opspilot/opspilot/internal/executor"
)

// Request is the inbound command envelope.
type Request struct {
	Command string `json:"command"`
	// MCPS expands the interpretation into a step list and executes
	// each line independently.
	MCPS bool `json:"mcps,omitempty"`
}

// ResultType names the branch a request took.
type ResultType string

const (
	TypeQuestion    ResultType = "question"
	TypeSimple      ResultType = "simple"
	TypeArchitected ResultType = "architected"
	TypeMCPS        ResultType = "mcps"
	TypeInteractive ResultType = "interactive"
)

// Envelope is the uniform terminal result for every branch. Fields
// not meaningful for a branch are omitted from the encoding.
type Envelope struct {
	Success        bool                  `json:"success"`
	Command        string                `json:"command"`
	Type           ResultType            `json:"type"`
	Interpretation string                `json:"interpretation,omitempty"`
	Plan           *architect.Plan       `json:"plan,omitempty"`
	PlanSource     architect.Source      `json:"planSource,omitempty"`
	Result         *executor.StepResult  `json:"result,omitempty"`
	Results        []executor.StepResult `json:"results,omitempty"`
	RequiredInfo   []string              `json:"requiredInfo,omitempty"`
	Error          string                `json:"error,omitempty"`
	Details        string                `json:"details,omitempty"`
	RequestID      string                `json:"requestId"`
	Duration       time.Duration         `json:"duration"`
}
