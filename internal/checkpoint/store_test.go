package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strayline/loom/internal/pipeline"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(NewMemoryKV(), 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()

	state := pipeline.NewState("abc-123", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	state.Outputs["1"] = map[string]any{"premise": "a quiet heist"}
	state.Completed = append(state.Completed, 1)

	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := store.Load(ctx, "abc-123")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.SessionID != "abc-123" || loaded.Status != pipeline.StatusRunning {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Completed) != 1 || loaded.Completed[0] != 1 {
		t.Errorf("Completed = %v, want [1]", loaded.Completed)
	}
	if loaded.Outputs["1"]["premise"] != "a quiet heist" {
		t.Errorf("Outputs = %v", loaded.Outputs)
	}
	if !loaded.StartedAt.Equal(state.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", loaded.StartedAt, state.StartedAt)
	}
}

func TestStoreLoadNotFound(t *testing.T) {
	store, _ := NewStore(NewMemoryKV(), 0)
	_, err := store.Load(context.Background(), "no-such-session")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStoreSaveRequiresSessionID(t *testing.T) {
	store, _ := NewStore(NewMemoryKV(), 0)
	if err := store.Save(context.Background(), &pipeline.State{}); err == nil {
		t.Fatalf("Save() expected missing-session-id error")
	}
	if err := store.Save(context.Background(), nil); err == nil {
		t.Fatalf("Save(nil) expected error")
	}
}

func TestStoreLoadCorruptRecord(t *testing.T) {
	kv := NewMemoryKV()
	store, _ := NewStore(kv, 0)
	ctx := context.Background()
	if err := kv.Set(ctx, sessionKey("bad"), []byte("not json"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	_, err := store.Load(ctx, "bad")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Load() error = %v, want *StoreError", err)
	}
	if storeErr.Op != "decode" {
		t.Errorf("Op = %q, want decode", storeErr.Op)
	}
}

func TestStoreSessionsSorted(t *testing.T) {
	store, _ := NewStore(NewMemoryKV(), 0)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := pipeline.NewState("later", base.Add(time.Hour))
	later.Status = pipeline.StatusCompleted
	earlier := pipeline.NewState("earlier", base)
	earlier.Completed = append(earlier.Completed, 1, 2)

	for _, state := range []*pipeline.State{later, earlier} {
		if err := store.Save(ctx, state); err != nil {
			t.Fatalf("Save(%s) error = %v", state.SessionID, err)
		}
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Sessions() = %v, want 2", sessions)
	}
	if sessions[0].ID != "earlier" || sessions[1].ID != "later" {
		t.Errorf("Sessions() order = [%s %s], want [earlier later]", sessions[0].ID, sessions[1].ID)
	}
	if sessions[0].Completed != 2 {
		t.Errorf("Completed = %d, want 2", sessions[0].Completed)
	}
	if sessions[1].Status != pipeline.StatusCompleted {
		t.Errorf("Status = %s, want completed", sessions[1].Status)
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	kv := NewMemoryKV().WithClock(func() time.Time { return now })
	store, _ := NewStore(kv, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, pipeline.NewState("ttl-session", now)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := store.Load(ctx, "ttl-session"); err != nil {
		t.Fatalf("Load() before expiry error = %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := store.Load(ctx, "ttl-session"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() after expiry error = %v, want ErrNotFound", err)
	}
	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Sessions() = %v, want none after expiry", sessions)
	}
}
