// Package config handles configuration and the .loom directory structure.
// Every project that uses loom gets a .loom/ folder created in its root.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// LoomDirName is the dot-directory holding stations, logs, and config.
	LoomDirName = ".loom"

	configFileName = "config.yaml"
)

const defaultProjectConfigYAML = `# loom project configuration
version: 1

# Directory scanned for station units and their companion config documents,
# relative to the project root.
stations_dir: .loom/stations

# Checkpoint store. Sessions expire after session_ttl of inactivity.
redis:
  addr: localhost:6379
session_ttl: 168h

# Text-generation backend for prompt-driven stations.
generator:
  provider: mock
  model: ""
  max_tokens: 4096
  temperature: 0.7
`

// Duration decodes "168h"-style YAML values into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("config: duration must be a string like \"168h\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard-library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RedisConfig locates the external key-value store.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// GeneratorConfig selects and tunes the generation backend.
type GeneratorConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

// ProjectConfig models .loom/config.yaml.
type ProjectConfig struct {
	Version     int             `yaml:"version"`
	StationsDir string          `yaml:"stations_dir"`
	Redis       RedisConfig     `yaml:"redis"`
	SessionTTL  Duration        `yaml:"session_ttl"`
	Generator   GeneratorConfig `yaml:"generator"`
}

// Config holds the runtime configuration for loom.
type Config struct {
	// ProjectDir is the directory the user ran `loom` from.
	ProjectDir string

	// LoomProjectDir is ProjectDir/.loom.
	LoomProjectDir string

	Project ProjectConfig
}

// InitLoomDir creates the .loom directory structure in the given project
// directory:
//
// .loom/
// ├── stations/   <- station units + companion config documents
// └── logs/       <- structured run logs
func InitLoomDir(projectDir string) error {
	loomDir := filepath.Join(projectDir, LoomDirName)
	dirs := []string{
		filepath.Join(loomDir, "stations"),
		filepath.Join(loomDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	configPath := filepath.Join(loomDir, configFileName)
	if _, err := os.Stat(configPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: stat %s: %w", configPath, err)
		}
		if err := os.WriteFile(configPath, []byte(defaultProjectConfigYAML), 0o644); err != nil {
			return fmt.Errorf("config: write default %s: %w", configPath, err)
		}
	}
	return nil
}

// NewConfig loads .loom/config.yaml for the project, applying defaults for
// anything the file leaves out.
func NewConfig(projectDir string) (*Config, error) {
	loomDir := filepath.Join(projectDir, LoomDirName)
	cfg := &Config{
		ProjectDir:     projectDir,
		LoomProjectDir: loomDir,
		Project:        defaultProjectConfig(),
	}
	data, err := os.ReadFile(filepath.Join(loomDir, configFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", configFileName, err)
	}
	if err := yaml.Unmarshal(data, &cfg.Project); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", configFileName, err)
	}
	applyDefaults(&cfg.Project)
	return cfg, nil
}

func defaultProjectConfig() ProjectConfig {
	cfg := ProjectConfig{Version: 1}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.StationsDir == "" {
		cfg.StationsDir = filepath.Join(LoomDirName, "stations")
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = Duration(7 * 24 * time.Hour)
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = "mock"
	}
	if cfg.Generator.MaxTokens <= 0 {
		cfg.Generator.MaxTokens = 4096
	}
}

// StationsDir resolves the configured stations directory against the
// project root.
func (c *Config) StationsDir() string {
	if filepath.IsAbs(c.Project.StationsDir) {
		return c.Project.StationsDir
	}
	return filepath.Join(c.ProjectDir, c.Project.StationsDir)
}
