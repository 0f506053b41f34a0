package station

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ID orders stations on a dense numeric line. Integer ordinals are the
// common case; fractional ordinals (7.5) let a station slot between two
// existing ones without renumbering the rest of the pipeline.
type ID float64

// ParseID accepts both the canonical decimal form ("7", "7.5") and the
// filename form where an underscore separates the fractional digits ("7_5").
func ParseID(raw string) (ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("station: id is empty")
	}
	normalized := strings.Replace(trimmed, "_", ".", 1)
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("station: parse id %q: %w", raw, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("station: id %q must not be negative", raw)
	}
	return ID(value), nil
}

// String renders the canonical decimal form without trailing zeros.
func (id ID) String() string {
	return strconv.FormatFloat(float64(id), 'f', -1, 64)
}

// Less reports ascending numeric order.
func (id ID) Less(other ID) bool { return id < other }

// SortIDs orders a slice of IDs ascending in place and returns it.
func SortIDs(ids []ID) []ID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
