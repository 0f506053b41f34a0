// Package extract recovers a well-formed structured record from the raw
// text an unreliable generator produces. Recovery escalates through six
// tiers ordered from "trust the text" to "rebuild the text": a single
// missing separator is more likely than total garbage, so each tier is
// strictly cheaper and more conservative than the next. No tier ever
// invents field values; repairs only close structure that is already there.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier identifies which recovery strategy produced a record.
type Tier int

const (
	TierDirect Tier = iota + 1
	TierLocated
	TierSanitized
	TierBalanced
	TierSalvaged
	TierBestEffort
)

var tierNames = map[Tier]string{
	TierDirect:     "direct",
	TierLocated:    "located",
	TierSanitized:  "sanitized",
	TierBalanced:   "balanced",
	TierSalvaged:   "salvaged",
	TierBestEffort: "best-effort",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Result is a successfully recovered record plus the tier that produced it.
// Callers that refuse degraded data should reject TierBestEffort results.
type Result struct {
	Record map[string]any
	Tier   Tier
}

// Error reports that every tier was exhausted. It keeps the attempted tier
// names and the original text for diagnostics; it is the caller-visible
// failure variant, never a data shape that happens to look normal.
type Error struct {
	Attempted []string
	Raw       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract: no structured record after %s", strings.Join(e.Attempted, ", "))
}

// Sentinel returns the fixed failure shape older callers keyed on. New
// callers should check the error itself.
func (e *Error) Sentinel() map[string]any {
	return map[string]any{"error": e.Error(), "data": []any{}}
}

// Parse applies the recovery tiers in order and returns the first
// structurally valid record.
func Parse(raw string) (Result, error) {
	attempted := make([]string, 0, 6)

	attempted = append(attempted, TierDirect.String())
	if record, ok := tryParse(raw); ok {
		return Result{Record: record, Tier: TierDirect}, nil
	}

	target := raw
	attempted = append(attempted, TierLocated.String())
	if located, ok := locate(raw); ok {
		target = located
		if record, ok := tryParse(located); ok {
			return Result{Record: record, Tier: TierLocated}, nil
		}
	}

	attempted = append(attempted, TierSanitized.String())
	sanitized := sanitize(target)
	if record, ok := tryParse(sanitized); ok {
		return Result{Record: record, Tier: TierSanitized}, nil
	}

	if unbalanced(sanitized) {
		attempted = append(attempted, TierBalanced.String())
		if record, ok := tryParse(balance(sanitized)); ok {
			return Result{Record: record, Tier: TierBalanced}, nil
		}
	}

	attempted = append(attempted, TierSalvaged.String())
	if record, ok := tryParse(salvage(target)); ok {
		return Result{Record: record, Tier: TierSalvaged}, nil
	}

	attempted = append(attempted, TierBestEffort.String())
	if record, ok := bestEffort(target); ok {
		return Result{Record: record, Tier: TierBestEffort}, nil
	}

	return Result{}, &Error{Attempted: attempted, Raw: raw}
}

// tryParse accepts only a JSON object; scalars and arrays are not records.
func tryParse(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed[0] != '{' {
		return nil, false
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil, false
	}
	return record, true
}
