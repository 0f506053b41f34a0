package station

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	unitPrefix = "station_"
	unitExt    = ".go"
)

// DiscoveryError reports a file that matches the station naming convention
// but cannot yield a usable descriptor. It is fatal: a half-understood
// station must never be silently skipped.
type DiscoveryError struct {
	Path string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("station: discover %s: %v", e.Path, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Discover scans dir for station units and their companion config
// documents and returns one descriptor per station, keyed by ID.
//
// A unit is any station_<id>_<name>.go file; the ordinal ID is derived from
// the filename (station_07_5_recap.go parses to 7.5). The companion
// station_<id>_<name>.yaml supplies dependencies, category, the enabled
// flag, and optionally a name overriding the filename's; when it is absent
// the station gets no dependencies, category "unknown", and enabled=true. A
// unit whose filename has no name segment and no companion name is a
// DiscoveryError. A standalone companion document that names a builtin
// implementation counts as a unit of its own.
func Discover(dir string, logger *slog.Logger) (map[ID]Descriptor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[ID]Descriptor{}, nil
		}
		return nil, fmt.Errorf("station: read %s: %w", dir, err)
	}

	descriptors := make(map[ID]Descriptor)
	claimed := make(map[string]bool) // companion basenames consumed by a unit

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, unitPrefix) || !strings.HasSuffix(name, unitExt) {
			continue
		}
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(dir, name)
		base := strings.TrimSuffix(name, unitExt)
		id, defaultName, err := parseUnitName(base)
		if err != nil {
			return nil, &DiscoveryError{Path: path, Err: err}
		}
		if existing, ok := descriptors[id]; ok {
			return nil, &DiscoveryError{Path: path, Err: fmt.Errorf("duplicate id %s (also %s)", id, existing.Name)}
		}
		companion, found, err := loadCompanion(dir, base)
		if err != nil {
			return nil, err
		}
		if found {
			claimed[base] = true
		}
		desc, err := buildDescriptor(id, defaultName, path, companion)
		if err != nil {
			return nil, &DiscoveryError{Path: path, Err: err}
		}
		descriptors[id] = desc
	}

	// Second pass: standalone companion documents that pin a builtin
	// implementation are stations without an on-disk unit.
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, unitPrefix) || !isYAMLFile(name) {
			continue
		}
		base := trimYAMLExt(name)
		if claimed[base] {
			continue
		}
		path := filepath.Join(dir, name)
		id, defaultName, err := parseUnitName(base)
		if err != nil {
			return nil, &DiscoveryError{Path: path, Err: err}
		}
		companion, err := readCompanion(path)
		if err != nil {
			return nil, err
		}
		if companion.Impl == "" {
			logger.Warn("station config has no unit and no builtin impl; skipping",
				"path", path, "id", id.String())
			continue
		}
		if existing, ok := descriptors[id]; ok {
			return nil, &DiscoveryError{Path: path, Err: fmt.Errorf("duplicate id %s (also %s)", id, existing.Name)}
		}
		desc, err := buildDescriptor(id, defaultName, "", companion)
		if err != nil {
			return nil, &DiscoveryError{Path: path, Err: err}
		}
		descriptors[id] = desc
	}

	return descriptors, nil
}

// parseUnitName splits "station_07_5_recap" into ID 7.5 and name "recap".
// The first numeric segment is the integer part; an immediately following
// numeric segment supplies the fractional digits.
func parseUnitName(base string) (ID, string, error) {
	rest := strings.TrimPrefix(base, unitPrefix)
	segments := strings.Split(rest, "_")
	if len(segments) == 0 || !isDigits(segments[0]) {
		return 0, "", fmt.Errorf("cannot parse ordinal id from %q", base)
	}
	idText := segments[0]
	nameStart := 1
	if len(segments) > 1 && isDigits(segments[1]) {
		idText = segments[0] + "." + segments[1]
		nameStart = 2
	}
	id, err := ParseID(idText)
	if err != nil {
		return 0, "", err
	}
	return id, strings.Join(segments[nameStart:], "_"), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func loadCompanion(dir, base string) (companionConfig, bool, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return companionConfig{}, false, fmt.Errorf("station: stat %s: %w", path, err)
		}
		cfg, err := readCompanion(path)
		if err != nil {
			return companionConfig{}, false, err
		}
		return cfg, true, nil
	}
	return companionConfig{}, false, nil
}

func readCompanion(path string) (companionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return companionConfig{}, fmt.Errorf("station: read %s: %w", path, err)
	}
	var cfg companionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return companionConfig{}, fmt.Errorf("station: decode %s: %w", path, err)
	}
	return cfg, nil
}

func buildDescriptor(id ID, defaultName, unitPath string, cfg companionConfig) (Descriptor, error) {
	deps, err := cfg.dependencyIDs()
	if err != nil {
		return Descriptor{}, fmt.Errorf("station %s: %w", id, err)
	}
	desc := Descriptor{
		ID:        id,
		Name:      strings.TrimSpace(cfg.Name),
		Category:  strings.TrimSpace(cfg.Category),
		Enabled:   true,
		DependsOn: deps,
	}
	if desc.Name == "" {
		desc.Name = defaultName
	}
	if desc.Category == "" {
		desc.Category = DefaultCategory
	}
	if cfg.Enabled != nil {
		desc.Enabled = *cfg.Enabled
	}
	switch {
	case cfg.Impl != "":
		desc.Impl = Ref{Builtin: cfg.Impl}
	default:
		entry := cfg.Entry
		if entry == "" {
			entry = DefaultEntry
		}
		desc.Impl = Ref{Path: unitPath, Entry: entry}
	}
	if err := desc.Validate(); err != nil {
		return Descriptor{}, err
	}
	return desc, nil
}

// IDsOf returns the descriptor keys in ascending order; discovery output is
// deterministic regardless of directory iteration order.
func IDsOf(descriptors map[ID]Descriptor) []ID {
	ids := make([]ID, 0, len(descriptors))
	for id := range descriptors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

func trimYAMLExt(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".yaml"):
		return name[:len(name)-len(".yaml")]
	case strings.HasSuffix(lower, ".yml"):
		return name[:len(name)-len(".yml")]
	}
	return name
}
