package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/strayline/loom/internal/extract"
	"github.com/strayline/loom/internal/generator"
	"github.com/strayline/loom/internal/station"
)

// StationError wraps a failure inside one station attempt: the station's
// own logic, or its output resisting every extraction tier. The run aborts
// but the last checkpoint survives, so the session stays resumable.
type StationError struct {
	ID  station.ID
	Err error
}

func (e *StationError) Error() string {
	return fmt.Sprintf("pipeline: station %s: %v", e.ID, e.Err)
}

func (e *StationError) Unwrap() error { return e.Err }

// Saver persists a state snapshot. The checkpoint store implements it; the
// executor depends on nothing else about persistence.
type Saver interface {
	Save(ctx context.Context, state *State) error
}

// Executor runs stations strictly in order, one at a time: later stations
// consume earlier outputs, so there is nothing to parallelize within a run.
type Executor struct {
	registry *station.Registry
	gen      generator.Generator
	saver    Saver
	logger   *slog.Logger
	clock    func() time.Time
}

// Option customizes the executor instance.
type Option func(*Executor)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewExecutor wires an executor to the registry, generator, and checkpoint
// saver.
func NewExecutor(registry *station.Registry, gen generator.Generator, saver Saver, logger *slog.Logger, opts ...Option) (*Executor, error) {
	if registry == nil {
		return nil, fmt.Errorf("pipeline: station registry is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("pipeline: generator is required")
	}
	if saver == nil {
		return nil, fmt.Errorf("pipeline: checkpoint saver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		registry: registry,
		gen:      gen,
		saver:    saver,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes every station in order that is not already completed,
// checkpointing state after each one. On failure or cancellation the state
// transitions to its terminal (or suspended) status and is checkpointed
// immediately; partially applied effects outside the core are not rolled
// back.
func (e *Executor) Run(ctx context.Context, descriptors map[station.ID]station.Descriptor, order []station.ID, state *State) (*State, error) {
	if state == nil {
		return nil, fmt.Errorf("pipeline: state is required")
	}
	// a resumed state may carry markers from an earlier failed or
	// interrupted run; exactly one terminal marker may survive this run
	state.Status = StatusRunning
	state.Error = ""
	state.EndedAt = nil
	state.InterruptedAt = nil
	state.FailedAt = nil
	done := state.CompletedSet()

	for _, id := range order {
		if done[id] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return e.interrupt(ctx, state, err)
		}
		desc, ok := descriptors[id]
		if !ok {
			return e.fail(ctx, state, id, fmt.Errorf("no descriptor for id %s", id))
		}

		startedAt := e.clock()
		record, tier, err := e.attempt(ctx, desc, state)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return e.interrupt(ctx, state, err)
			}
			return e.fail(ctx, state, id, err)
		}

		state.recordOutput(id, record)
		done[id] = true
		e.logger.Info("station completed",
			"station", id.String(),
			"name", desc.Name,
			"duration", e.clock().Sub(startedAt),
			"extraction", tier)
		if err := e.saver.Save(ctx, state); err != nil {
			return state, fmt.Errorf("pipeline: checkpoint after station %s: %w", id, err)
		}
	}

	now := e.clock()
	state.Status = StatusCompleted
	state.EndedAt = &now
	if err := e.saver.Save(ctx, state); err != nil {
		return state, fmt.Errorf("pipeline: checkpoint final state: %w", err)
	}
	return state, nil
}

// attempt instantiates and runs one station, interpreting generator output
// through the extractor. Deterministic stations skip extraction entirely.
func (e *Executor) attempt(ctx context.Context, desc station.Descriptor, state *State) (map[string]any, string, error) {
	st, err := e.registry.Resolve(desc)
	if err != nil {
		return nil, "", err
	}
	rc := &station.RunContext{
		Generator: e.gen,
		Outputs:   state.Outputs,
		Logger:    e.logger.With("station", desc.ID.String()),
	}
	result, err := st.Run(ctx, rc)
	if err != nil {
		return nil, "", err
	}
	if result.Record != nil {
		return result.Record, "none", nil
	}
	// everything a generator produced goes through extraction, an empty
	// response included; it fails there rather than passing as a record
	parsed, err := extract.Parse(result.Raw)
	if err != nil {
		return nil, "", err
	}
	if parsed.Tier == extract.TierBestEffort {
		e.logger.Warn("station output recovered by best-effort extraction",
			"station", desc.ID.String())
	}
	return parsed.Record, parsed.Tier.String(), nil
}

func (e *Executor) fail(ctx context.Context, state *State, id station.ID, cause error) (*State, error) {
	now := e.clock()
	stErr := &StationError{ID: id, Err: cause}
	state.Status = StatusFailed
	state.Error = stErr.Error()
	state.FailedAt = &now
	if saveErr := e.saver.Save(ctx, state); saveErr != nil {
		e.logger.Error("failed to checkpoint failed state", "error", saveErr)
	}
	return state, stErr
}

func (e *Executor) interrupt(ctx context.Context, state *State, cause error) (*State, error) {
	now := e.clock()
	state.Status = StatusInterrupted
	state.InterruptedAt = &now
	// persist even though ctx is canceled; the saver must not depend on it
	if saveErr := e.saver.Save(context.WithoutCancel(ctx), state); saveErr != nil {
		e.logger.Error("failed to checkpoint interrupted state", "error", saveErr)
	}
	return state, cause
}
