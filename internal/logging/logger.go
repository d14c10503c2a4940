// Package logging configures the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dealflow/pkg/utils"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Init builds a JSON slog logger from cfg, installs it as the default and
// returns it. Calling Init again replaces the previous logger.
func Init(cfg utils.LoggingConfig) (*slog.Logger, error) {
	out, err := output(cfg)
	if err != nil {
		return nil, err
	}
	logger := New(out, cfg.Level)
	slog.SetDefault(logger)
	return logger, nil
}

// New returns a JSON logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func output(cfg utils.LoggingConfig) (io.Writer, error) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	switch strings.ToLower(cfg.Output) {
	case "file", "both":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		if strings.EqualFold(cfg.Output, "both") {
			return io.MultiWriter(os.Stderr, f), nil
		}
		return f, nil
	default:
		return os.Stderr, nil
	}
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
