package station

import (
	"fmt"
	"strings"
)

// DefaultCategory is assigned when a station ships without a companion
// config document. The permissive default keeps the business layer
// pluggable: an undescribed station is still a schedulable one.
const DefaultCategory = "unknown"

// Ref is the opaque implementation handle recorded during discovery and
// resolved by the Registry at run time. Exactly one variant is populated:
// Builtin names a factory in the registration table, Path/Entry point at an
// on-disk unit and the function inside it that yields the station spec.
type Ref struct {
	Builtin string `json:"builtin,omitempty" yaml:"builtin,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Entry   string `json:"entry,omitempty" yaml:"entry,omitempty"`
}

// IsZero reports whether the handle points at nothing.
func (r Ref) IsZero() bool { return r.Builtin == "" && r.Path == "" }

// Validate ensures the handle is resolvable in principle.
func (r Ref) Validate() error {
	if r.Builtin != "" && r.Path != "" {
		return fmt.Errorf("station: ref names both a builtin and a unit path")
	}
	if r.IsZero() {
		return fmt.Errorf("station: ref is empty")
	}
	if r.Path != "" && r.Entry == "" {
		return fmt.Errorf("station: ref for %s is missing an entry point", r.Path)
	}
	return nil
}

// Descriptor identifies one discoverable unit of work.
type Descriptor struct {
	ID        ID     `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Category  string `json:"category" yaml:"category"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	DependsOn []ID   `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Impl      Ref    `json:"impl" yaml:"impl"`
}

// Validate rejects descriptors the scheduler can never honor. A station
// depending on itself is a configuration error, not a soft dependency.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("station %s: name is required", d.ID)
	}
	for _, dep := range d.DependsOn {
		if dep == d.ID {
			return fmt.Errorf("station %s: depends on itself", d.ID)
		}
	}
	if err := d.Impl.Validate(); err != nil {
		return fmt.Errorf("station %s: %w", d.ID, err)
	}
	return nil
}

// companionConfig mirrors the on-disk schema of a station's declarative
// config document (station_NN_name.yaml next to the unit).
type companionConfig struct {
	Name      string   `yaml:"name,omitempty"`
	Category  string   `yaml:"category,omitempty"`
	Enabled   *bool    `yaml:"enabled,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty"`
	Impl      string   `yaml:"impl,omitempty"`
	Entry     string   `yaml:"entry,omitempty"`
}

func (c companionConfig) dependencyIDs() ([]ID, error) {
	if len(c.DependsOn) == 0 {
		return nil, nil
	}
	ids := make([]ID, 0, len(c.DependsOn))
	for _, raw := range c.DependsOn {
		id, err := ParseID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return SortIDs(ids), nil
}
