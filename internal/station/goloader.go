package station

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultEntry is the entry-point function a unit must export when the
// companion config does not name one.
const DefaultEntry = "Station"

// LoadUnit interprets a station unit and calls its entry-point function,
// which must return a map describing the station spec:
//
//	func Station() map[string]any {
//		return map[string]any{
//			"prompt": "...",
//			"options": map[string]any{"model": "...", "max_tokens": 1024},
//		}
//	}
//
// An optional error second return is honored. The unit is evaluated in an
// isolated interpreter with only the standard library available, so a unit
// can compute its spec but cannot reach into the host process.
func LoadUnit(path, entry string) (Spec, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("station: read unit %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return Spec{}, fmt.Errorf("station: unit %s is empty", path)
	}
	if entry == "" {
		entry = DefaultEntry
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Spec{}, fmt.Errorf("station: prepare interpreter for %s: %w", path, err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return Spec{}, fmt.Errorf("station: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(entry)
	if err != nil {
		return Spec{}, fmt.Errorf("station: %s must define %s() (map[string]any[, error]): %w", path, entry, err)
	}
	raw, err := invokeEntry(fnValue, entry)
	if err != nil {
		return Spec{}, fmt.Errorf("station: %s: %w", path, err)
	}
	spec, err := specFromMap(raw)
	if err != nil {
		return Spec{}, fmt.Errorf("station: %s: %w", path, err)
	}
	return spec, nil
}

func invokeEntry(value reflect.Value, entry string) (map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", entry)
	}
	if value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", entry)
	}
	results := value.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return (map[string]any[, error])", entry)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", entry)
	}
	raw, ok := results[0].Interface().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must return map[string]any", entry)
	}
	return raw, nil
}

func specFromMap(raw map[string]any) (Spec, error) {
	prompt, _ := raw["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return Spec{}, fmt.Errorf("spec is missing a prompt")
	}
	spec := Spec{Prompt: prompt}
	opts, ok := raw["options"].(map[string]any)
	if !ok {
		return spec, nil
	}
	if model, ok := opts["model"].(string); ok {
		spec.Options.Model = model
	}
	spec.Options.MaxTokens = intOption(opts["max_tokens"])
	switch v := opts["temperature"].(type) {
	case float64:
		spec.Options.Temperature = v
	case int:
		spec.Options.Temperature = float64(v)
	}
	return spec, nil
}

func intOption(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
