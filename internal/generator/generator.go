// Package generator defines the external text-generation backend consumed
// by generator-backed stations. The wire protocol lives behind the
// interface; the orchestration core only sees prompts in and raw text out.
package generator

import "context"

// Options tunes a single generation call.
type Options struct {
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// Generator produces raw text for a prompt. Implementations may fail or
// return malformed output; retries and timeouts belong to the caller.
type Generator interface {
	// Name returns the provider identifier (e.g., "mock").
	Name() string

	// Generate sends the prompt and blocks until the full response arrives.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}
