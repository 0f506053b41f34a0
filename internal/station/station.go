package station

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/strayline/loom/internal/generator"
)

// RunContext carries shared runtime dependencies into every station.
type RunContext struct {
	// Generator is the external text backend for prompt-driven stations.
	Generator generator.Generator
	// Outputs holds the structured results of every completed station,
	// keyed by the canonical ID string. Stations read, never write.
	Outputs map[string]map[string]any
	// Logger is the run-scoped structured logger.
	Logger *slog.Logger
}

// Result is what a single station attempt produced. Generator-backed
// stations return the raw text and leave interpretation to the executor's
// extractor; deterministic stations fill Record directly.
type Result struct {
	Raw    string
	Record map[string]any
}

// Station is one unit of pipeline work.
type Station interface {
	Describe() Descriptor
	Run(ctx context.Context, rc *RunContext) (Result, error)
}

// Spec is the declarative body of a prompt-driven station, as returned by
// a unit's entry-point function. The prompt is a text/template evaluated
// against the accumulated pipeline outputs.
type Spec struct {
	Prompt  string
	Options generator.Options
}

func (s Spec) validate() error {
	if s.Prompt == "" {
		return fmt.Errorf("station: spec prompt is required")
	}
	return nil
}

// promptStation renders its prompt template and hands the text to the
// generator. It never interprets the response itself.
type promptStation struct {
	desc Descriptor
	spec Spec
	tmpl *template.Template
}

// NewPromptStation wraps a declarative spec into a runnable station.
func NewPromptStation(desc Descriptor, spec Spec) (Station, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("station %s: %w", desc.ID, err)
	}
	tmpl, err := template.New(desc.Name).Parse(spec.Prompt)
	if err != nil {
		return nil, fmt.Errorf("station %s: parse prompt template: %w", desc.ID, err)
	}
	return &promptStation{desc: desc, spec: spec, tmpl: tmpl}, nil
}

func (s *promptStation) Describe() Descriptor { return s.desc }

func (s *promptStation) Run(ctx context.Context, rc *RunContext) (Result, error) {
	if rc == nil || rc.Generator == nil {
		return Result{}, fmt.Errorf("station %s: generator is required", s.desc.ID)
	}
	var prompt bytes.Buffer
	data := struct {
		Outputs map[string]map[string]any
	}{Outputs: rc.Outputs}
	if err := s.tmpl.Execute(&prompt, data); err != nil {
		return Result{}, fmt.Errorf("station %s: render prompt: %w", s.desc.ID, err)
	}
	raw, err := rc.Generator.Generate(ctx, prompt.String(), s.spec.Options)
	if err != nil {
		return Result{}, fmt.Errorf("station %s: generate: %w", s.desc.ID, err)
	}
	return Result{Raw: raw}, nil
}

// Func adapts a plain function into a deterministic station. Used by
// builtin factories whose work never touches the generator.
type Func struct {
	Desc Descriptor
	Fn   func(ctx context.Context, rc *RunContext) (map[string]any, error)
}

func (f Func) Describe() Descriptor { return f.Desc }

func (f Func) Run(ctx context.Context, rc *RunContext) (Result, error) {
	record, err := f.Fn(ctx, rc)
	if err != nil {
		return Result{}, err
	}
	return Result{Record: record}, nil
}
