// Package logging builds the CLI logger from configuration.
//
// Logs always go to stderr so that stdout stays reserved for command
// output. Setting a file path tees the same stream into a log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/solhaus/marketplace/internal/config"
)

// New returns a service-tagged logger and a close function for the log
// file, if one was configured.
func New(serviceName string, cfg config.LogConfig) (*slog.Logger, func() error, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var writer io.Writer = os.Stderr
	closeWriter := func() error { return nil }
	if path := strings.TrimSpace(cfg.FilePath); path != "" {
		file, err := openLogFile(serviceName, path)
		if err != nil {
			return nil, nil, err
		}
		writer = io.MultiWriter(os.Stderr, file)
		closeWriter = file.Close
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(cfg.Format)); format {
	case "", "text":
		handler = slog.NewTextHandler(writer, handlerOptions)
	case "json":
		handler = slog.NewJSONHandler(writer, handlerOptions)
	default:
		_ = closeWriter()
		return nil, nil, fmt.Errorf("invalid log format %q (expected text|json)", cfg.Format)
	}

	return slog.New(handler).With("service", serviceName), closeWriter, nil
}

func openLogFile(serviceName, path string) (*os.File, error) {
	if path == defaultFilePath {
		path = filepath.Join("logs", serviceName+".log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %q: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return file, nil
}

// defaultFilePath asks for file logging without naming the file; the
// path is then derived from the service name.
const defaultFilePath = "auto"

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", raw)
	}
}
