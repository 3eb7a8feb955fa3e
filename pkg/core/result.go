package core

import (
	"time"

	"github.com/google/uuid"
)

// ActionResult captures the complete outcome of one observed action.
// Expected failure modes (no visual change, element not found) populate
// Error; only programming-contract violations surface as Go errors.
type ActionResult struct {
	// Identity
	ID      string `json:"id"`      // Unique action execution ID
	Command string `json:"command"` // Action type: tap, swipe, launch, etc.

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`   // Human-readable failure reason
	Message string `json:"message,omitempty"` // Human-readable explanation on success

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Observations
	Observation *Observation `json:"observation,omitempty"` // Post-action state
	Changed     bool         `json:"changed"`               // Hierarchy differs from baseline

	// Generic data for action-specific results (resolved element, script output)
	Data interface{} `json:"data,omitempty"`
}

// NewActionResult creates a result for the named command with a fresh ID.
func NewActionResult(command string) *ActionResult {
	return &ActionResult{
		ID:        uuid.NewString(),
		Command:   command,
		StartTime: time.Now(),
	}
}

// Fail marks the result as failed with the given reason.
func (r *ActionResult) Fail(reason string) *ActionResult {
	r.Success = false
	r.Error = reason
	return r
}

// Pass marks the result as successful with an optional message.
func (r *ActionResult) Pass(message string) *ActionResult {
	r.Success = true
	r.Message = message
	return r
}

// NoVisualChange is the error text set when a change was expected
// but the final hierarchy equals the baseline.
const NoVisualChange = "No visual change observed"
