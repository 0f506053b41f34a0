package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/strayline/loom/internal/pipeline"
)

// keyPrefix namespaces session snapshots in the shared store. No two
// concurrent runs ever write the same session key, so atomic single-key
// writes are the only locking discipline needed.
const keyPrefix = "loom:session:"

// ErrNotFound is returned when no checkpoint exists for a session.
var ErrNotFound = errors.New("checkpoint: session not found")

// StoreError reports an unreachable store or a corrupt record. A run
// cannot proceed safely past one.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("checkpoint: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store serializes pipeline state into the KV, one key per session.
type Store struct {
	kv  KV
	ttl time.Duration
}

// NewStore wraps a KV with the session expiry policy.
func NewStore(kv KV, ttl time.Duration) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("checkpoint: kv store is required")
	}
	return &Store{kv: kv, ttl: ttl}, nil
}

func sessionKey(sessionID string) string { return keyPrefix + sessionID }

// Save writes the full snapshot in a single atomic set, so a concurrent
// reader never observes a structurally incomplete record.
func (s *Store) Save(ctx context.Context, state *pipeline.State) error {
	if state == nil || strings.TrimSpace(state.SessionID) == "" {
		return fmt.Errorf("checkpoint: state with a session id is required")
	}
	key := sessionKey(state.SessionID)
	data, err := json.Marshal(state)
	if err != nil {
		return &StoreError{Op: "marshal", Key: key, Err: err}
	}
	if err := s.kv.Set(ctx, key, data, s.ttl); err != nil {
		return &StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Load reads a session snapshot; ErrNotFound when none exists.
func (s *Store) Load(ctx context.Context, sessionID string) (*pipeline.State, error) {
	key := sessionKey(sessionID)
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, ErrNotFound
	}
	var state pipeline.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &StoreError{Op: "decode", Key: key, Err: err}
	}
	return &state, nil
}

// Session is one checkpointed run as listed by Sessions.
type Session struct {
	ID        string
	Status    pipeline.Status
	StartedAt time.Time
	Completed int
}

// Sessions lists every checkpointed session, sorted by start time then ID.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return nil, &StoreError{Op: "keys", Key: keyPrefix + "*", Err: err}
	}
	sessions := make([]Session, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, keyPrefix)
		state, err := s.Load(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // expired between Keys and Load
			}
			return nil, err
		}
		sessions = append(sessions, Session{
			ID:        state.SessionID,
			Status:    state.Status,
			StartedAt: state.StartedAt,
			Completed: len(state.Completed),
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartedAt.Equal(sessions[j].StartedAt) {
			return sessions[i].StartedAt.Before(sessions[j].StartedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}
