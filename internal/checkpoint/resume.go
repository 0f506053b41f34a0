package checkpoint

import (
	"context"
	"time"

	"github.com/strayline/loom/internal/pipeline"
	"github.com/strayline/loom/internal/station"
)

// ResumePlan is the remaining work for a suspended session.
type ResumePlan struct {
	State     *pipeline.State
	Remaining []station.ID
}

// Done reports whether the session has nothing left to run.
func (p ResumePlan) Done() bool { return len(p.Remaining) == 0 }

// PlanResume loads a session and diffs completed work against the full
// execution order. With startID nil the remaining list is the full order
// minus the completed set; an empty remainder makes resume a no-op with the
// session marked completed.
//
// An explicit startID is a deliberate re-run request: the full order is
// filtered to ids >= startID and the completed set is bypassed entirely, so
// stations already finished run again.
func (s *Store) PlanResume(ctx context.Context, sessionID string, fullOrder []station.ID, startID *station.ID) (ResumePlan, error) {
	state, err := s.Load(ctx, sessionID)
	if err != nil {
		return ResumePlan{}, err
	}

	if startID != nil {
		remaining := make([]station.ID, 0, len(fullOrder))
		for _, id := range fullOrder {
			if id >= *startID {
				remaining = append(remaining, id)
			}
		}
		// a deliberate re-run: pull the re-run ids out of the completed
		// list so the executor does not skip them
		kept := make([]station.ID, 0, len(state.Completed))
		for _, id := range state.Completed {
			if id < *startID {
				kept = append(kept, id)
			}
		}
		state.Completed = kept
		return ResumePlan{State: state, Remaining: remaining}, nil
	}

	done := state.CompletedSet()
	remaining := make([]station.ID, 0, len(fullOrder))
	for _, id := range fullOrder {
		if !done[id] {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		state.Status = pipeline.StatusCompleted
		state.Error = ""
		state.InterruptedAt = nil
		state.FailedAt = nil
		if state.EndedAt == nil {
			now := time.Now().UTC()
			state.EndedAt = &now
		}
	}
	return ResumePlan{State: state, Remaining: remaining}, nil
}
