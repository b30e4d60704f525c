package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solhaus/marketplace/internal/config"
)

func TestNewTeesIntoConfiguredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.log")
	logger, closeLogger, err := New("auction-cli", config.LogConfig{FilePath: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("house loaded", "slot", 7)
	if err := closeLogger(); err != nil {
		t.Fatalf("close logger: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "house loaded") || !strings.Contains(line, "service=auction-cli") {
		t.Errorf("log file missing record or service tag: %q", line)
	}
}

func TestNewWithoutFileNeedsNoCleanup(t *testing.T) {
	_, closeLogger, err := New("auction-cli", config.LogConfig{})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if err := closeLogger(); err != nil {
		t.Errorf("close without file: %v", err)
	}
}

func TestNewRejectsBadSettings(t *testing.T) {
	if _, _, err := New("auction-cli", config.LogConfig{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, _, err := New("auction-cli", config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseLevelAliases(t *testing.T) {
	for _, raw := range []string{"", "info", "DEBUG", "warn", "warning", " error "} {
		if _, err := parseLevel(raw); err != nil {
			t.Errorf("parseLevel(%q): %v", raw, err)
		}
	}
}
