package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strayline/loom/internal/pipeline"
	"github.com/strayline/loom/internal/station"
)

func savedState(t *testing.T, store *Store, sessionID string, completed ...station.ID) {
	t.Helper()
	state := pipeline.NewState(sessionID, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	state.Status = pipeline.StatusInterrupted
	state.Completed = append(state.Completed, completed...)
	for _, id := range completed {
		state.Outputs[id.String()] = map[string]any{"done": true}
	}
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestPlanResumeSkipsCompleted(t *testing.T) {
	store, _ := NewStore(NewMemoryKV(), 0)
	savedState(t, store, "s1", 1, 2)

	fullOrder := []station.ID{1, 2, 3, 4}
	plan, err := store.PlanResume(context.Background(), "s1", fullOrder, nil)
	if err != nil {
		t.Fatalf("PlanResume() error = %v", err)
	}
	want := []station.ID{3, 4}
	if len(plan.Remaining) != len(want) {
		t.Fatalf("Remaining = %v, want %v", plan.Remaining, want)
	}
	for i := range want {
		if plan.Remaining[i] != want[i] {
			t.Fatalf("Remaining = %v, want %v", plan.Remaining, want)
		}
	}
	if plan.Done() {
		t.Errorf("Done() = true, want false")
	}
}

func TestPlanResumeNothingLeft(t *testing.T) {
	store, _ := NewStore(NewMemoryKV(), 0)
	savedState(t, store, "s2", 1, 2, 3)

	plan, err := store.PlanResume(context.Background(), "s2", []station.ID{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("PlanResume() error = %v", err)
	}
	if !plan.Done() {
		t.Fatalf("Done() = false, want true; remaining %v", plan.Remaining)
	}
	if plan.State.Status != pipeline.StatusCompleted {
		t.Errorf("Status = %s, want completed", plan.State.Status)
	}
}

func TestPlanResumeNoopClearsTerminalMarkers(t *testing.T) {
	store, _ := NewStore(NewMemoryKV(), 0)
	failedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	state := pipeline.NewState("s5", failedAt.Add(-time.Hour))
	state.Status = pipeline.StatusFailed
	state.Error = "pipeline: station 2: generator quota exhausted"
	state.FailedAt = &failedAt
	state.Completed = append(state.Completed, 1, 2)
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	plan, err := store.PlanResume(context.Background(), "s5", []station.ID{1, 2}, nil)
	if err != nil {
		t.Fatalf("PlanResume() error = %v", err)
	}
	if !plan.Done() {
		t.Fatalf("Done() = false, want true")
	}
	if plan.State.Status != pipeline.StatusCompleted {
		t.Errorf("Status = %s, want completed", plan.State.Status)
	}
	if plan.State.Error != "" || plan.State.FailedAt != nil || plan.State.InterruptedAt != nil {
		t.Errorf("stale terminal markers survived: error=%q failed_at=%v interrupted_at=%v",
			plan.State.Error, plan.State.FailedAt, plan.State.InterruptedAt)
	}
	if plan.State.EndedAt == nil {
		t.Errorf("EndedAt not set on the no-op completion")
	}
}

func TestPlanResumeExplicitStartRerunsCompleted(t *testing.T) {
	store, _ := NewStore(NewMemoryKV(), 0)
	savedState(t, store, "s3", 1, 2, 3)

	start := station.ID(2)
	plan, err := store.PlanResume(context.Background(), "s3", []station.ID{1, 2, 3, 4}, &start)
	if err != nil {
		t.Fatalf("PlanResume() error = %v", err)
	}
	want := []station.ID{2, 3, 4}
	if len(plan.Remaining) != len(want) {
		t.Fatalf("Remaining = %v, want %v", plan.Remaining, want)
	}
	for i := range want {
		if plan.Remaining[i] != want[i] {
			t.Fatalf("Remaining = %v, want %v", plan.Remaining, want)
		}
	}
	// re-run ids leave the completed list so the executor runs them again
	if len(plan.State.Completed) != 1 || plan.State.Completed[0] != 1 {
		t.Errorf("Completed = %v, want [1]", plan.State.Completed)
	}
}

func TestPlanResumeExplicitFractionalStart(t *testing.T) {
	store, _ := NewStore(NewMemoryKV(), 0)
	savedState(t, store, "s4", 1, 7.5)

	start := station.ID(7.5)
	plan, err := store.PlanResume(context.Background(), "s4", []station.ID{1, 7.5, 8}, &start)
	if err != nil {
		t.Fatalf("PlanResume() error = %v", err)
	}
	if len(plan.Remaining) != 2 || plan.Remaining[0] != 7.5 || plan.Remaining[1] != 8 {
		t.Fatalf("Remaining = %v, want [7.5 8]", plan.Remaining)
	}
}

func TestPlanResumeUnknownSession(t *testing.T) {
	store, _ := NewStore(NewMemoryKV(), 0)
	_, err := store.PlanResume(context.Background(), "missing", []station.ID{1}, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("PlanResume() error = %v, want ErrNotFound", err)
	}
}
