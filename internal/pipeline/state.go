// Package pipeline owns the accumulated state of a single run and the
// sequential executor that advances it station by station.
package pipeline

import (
	"time"

	"github.com/strayline/loom/internal/station"
)

// Status enumerates run lifecycle states.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// State is the executor's accumulated knowledge of one run. Outputs are
// owned exclusively by the executor; stations see prior results only
// through the run context it hands them.
type State struct {
	SessionID string                    `json:"session_id"`
	Outputs   map[string]map[string]any `json:"outputs"`
	Completed []station.ID              `json:"completed_ids"`
	Status    Status                    `json:"status"`
	Error     string                    `json:"error,omitempty"`

	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	InterruptedAt *time.Time `json:"interrupted_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
}

// NewState creates the initial state for a fresh run.
func NewState(sessionID string, now time.Time) *State {
	return &State{
		SessionID: sessionID,
		Outputs:   map[string]map[string]any{},
		Completed: []station.ID{},
		Status:    StatusRunning,
		StartedAt: now,
	}
}

// CompletedSet indexes the completed IDs for membership checks.
func (s *State) CompletedSet() map[station.ID]bool {
	set := make(map[station.ID]bool, len(s.Completed))
	for _, id := range s.Completed {
		set[id] = true
	}
	return set
}

// recordOutput merges one station's structured result and marks it done.
func (s *State) recordOutput(id station.ID, record map[string]any) {
	if s.Outputs == nil {
		s.Outputs = map[string]map[string]any{}
	}
	s.Outputs[id.String()] = record
	s.Completed = append(s.Completed, id)
}
