// Package models contains shared data types used across the SalesIQ codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Investigation status values.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Investigation is one end-to-end research session, from question to Report.
// It is owned by a single orchestrator run and discarded when the process
// exits unless the caller persists it.
type Investigation struct {
	ID        uuid.UUID         `json:"id"`
	Question  string            `json:"question"`
	Context   map[string]string `json:"context,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Status    string            `json:"status"`
	Report    *Report           `json:"report,omitempty"`
}

// Scratchpad entry kinds.
const (
	ActionSchemaLookup      = "schema_lookup"
	ActionQuery             = "query"
	ActionMetricComputation = "metric_computation"
	ActionSynthesis         = "synthesis"
	ActionError             = "error"
)

// ScratchpadEntry is one recorded action in an investigation.
// Entries are immutable once appended; Seq is assigned at append time and
// is strictly increasing with no gaps within one investigation.
type ScratchpadEntry struct {
	Seq       int       `json:"seq"`
	Kind      string    `json:"kind"`
	Summary   string    `json:"summary"`
	Input     string    `json:"input,omitempty"`
	Output    string    `json:"output,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
