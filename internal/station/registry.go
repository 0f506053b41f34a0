package station

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory constructs a station for the given descriptor.
type Factory func(Descriptor) (Station, error)

// Registry maintains the explicit registration table of builtin station
// factories and resolves discovered descriptors to runnable stations. It is
// constructed once and passed by reference; there is no process-wide
// instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{factories: map[string]Factory{}, logger: logger}
}

// Register installs a builtin factory. Returns an error if the name is
// already taken.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("station: factory name is required")
	}
	if factory == nil {
		return fmt.Errorf("station: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("station: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve instantiates the station a descriptor's implementation handle
// points at: a builtin factory from the table, or an on-disk unit
// interpreted through its declared entry point.
func (r *Registry) Resolve(desc Descriptor) (Station, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.Impl.Builtin != "" {
		r.mu.RLock()
		factory, ok := r.factories[desc.Impl.Builtin]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("station %s: unknown builtin %s", desc.ID, desc.Impl.Builtin)
		}
		st, err := factory(desc)
		if err != nil {
			return nil, fmt.Errorf("station %s: builtin %s: %w", desc.ID, desc.Impl.Builtin, err)
		}
		return st, nil
	}
	spec, err := LoadUnit(desc.Impl.Path, desc.Impl.Entry)
	if err != nil {
		return nil, err
	}
	return NewPromptStation(desc, spec)
}

// Builtins returns a sorted list of registered factory names.
func (r *Registry) Builtins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
