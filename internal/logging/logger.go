// Package logging builds the structured logger that appends to
// .loom/logs/loom.log so users can inspect failures after a run ends.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/strayline/loom/internal/config"
)

// New creates (or reuses) the log file for the current project directory
// and returns a text-handler slog.Logger writing to it. The caller owns
// the returned closer.
func New(projectDir string) (*slog.Logger, io.Closer, error) {
	logDir := filepath.Join(projectDir, config.LoomDirName, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, "loom.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, nil))
	return logger, f, nil
}
