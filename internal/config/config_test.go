package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitLoomDir(t *testing.T) {
	dir := t.TempDir()
	if err := InitLoomDir(dir); err != nil {
		t.Fatalf("InitLoomDir() error = %v", err)
	}
	for _, sub := range []string{"stations", "logs"} {
		path := filepath.Join(dir, LoomDirName, sub)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", path, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, LoomDirName, "config.yaml")); err != nil {
		t.Errorf("default config.yaml not written: %v", err)
	}
}

func TestInitLoomDirPreservesExistingConfig(t *testing.T) {
	dir := t.TempDir()
	loomDir := filepath.Join(dir, LoomDirName)
	if err := os.MkdirAll(loomDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	custom := []byte("version: 1\nstations_dir: custom/stations\n")
	configPath := filepath.Join(loomDir, "config.yaml")
	if err := os.WriteFile(configPath, custom, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := InitLoomDir(dir); err != nil {
		t.Fatalf("InitLoomDir() error = %v", err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) != string(custom) {
		t.Errorf("existing config overwritten:\n%s", data)
	}
}

func TestNewConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewConfig(dir)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if cfg.Project.StationsDir != filepath.Join(LoomDirName, "stations") {
		t.Errorf("StationsDir = %q", cfg.Project.StationsDir)
	}
	if cfg.Project.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Project.Redis.Addr)
	}
	if cfg.Project.SessionTTL.Std() != 7*24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.Project.SessionTTL)
	}
	if cfg.Project.Generator.Provider != "mock" || cfg.Project.Generator.MaxTokens != 4096 {
		t.Errorf("Generator = %+v", cfg.Project.Generator)
	}
}

func TestNewConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	loomDir := filepath.Join(dir, LoomDirName)
	if err := os.MkdirAll(loomDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := `version: 1
stations_dir: pipelines
redis:
  addr: cache.internal:6380
session_ttl: 48h
generator:
  provider: mock
  model: fast-model
  max_tokens: 1024
  temperature: 0.2
`
	if err := os.WriteFile(filepath.Join(loomDir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := NewConfig(dir)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if cfg.Project.StationsDir != "pipelines" {
		t.Errorf("StationsDir = %q", cfg.Project.StationsDir)
	}
	if cfg.Project.Redis.Addr != "cache.internal:6380" {
		t.Errorf("Redis.Addr = %q", cfg.Project.Redis.Addr)
	}
	if cfg.Project.SessionTTL.Std() != 48*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.Project.SessionTTL)
	}
	if cfg.Project.Generator.Model != "fast-model" || cfg.Project.Generator.MaxTokens != 1024 {
		t.Errorf("Generator = %+v", cfg.Project.Generator)
	}
}

func TestNewConfigPartialFileGetsDefaults(t *testing.T) {
	dir := t.TempDir()
	loomDir := filepath.Join(dir, LoomDirName)
	if err := os.MkdirAll(loomDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(loomDir, "config.yaml"), []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := NewConfig(dir)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if cfg.Project.Redis.Addr != "localhost:6379" || cfg.Project.SessionTTL.Std() != 7*24*time.Hour {
		t.Errorf("defaults not applied: %+v", cfg.Project)
	}
}

func TestDefaultConfigFileParses(t *testing.T) {
	dir := t.TempDir()
	if err := InitLoomDir(dir); err != nil {
		t.Fatalf("InitLoomDir() error = %v", err)
	}
	cfg, err := NewConfig(dir)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if cfg.Project.SessionTTL.Std() != 168*time.Hour {
		t.Errorf("SessionTTL = %v, want 168h from the default file", cfg.Project.SessionTTL)
	}
}

func TestStationsDirResolution(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewConfig(dir)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	want := filepath.Join(dir, LoomDirName, "stations")
	if got := cfg.StationsDir(); got != want {
		t.Errorf("StationsDir() = %q, want %q", got, want)
	}

	cfg.Project.StationsDir = "/absolute/stations"
	if got := cfg.StationsDir(); got != "/absolute/stations" {
		t.Errorf("StationsDir() = %q, want absolute path unchanged", got)
	}
}
