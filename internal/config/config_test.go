package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SurrealDBURL != "ws://localhost:8000/rpc" {
		t.Errorf("unexpected default url: %s", cfg.SurrealDBURL)
	}
	if cfg.SurrealDBNamespace != "unisale" {
		t.Errorf("unexpected default namespace: %s", cfg.SurrealDBNamespace)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("unexpected default level: %v", cfg.Level())
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unichat.yaml")
	file := []byte("surrealdb_namespace: from-file\nmarket_url: http://file:5000\nlog_level: DEBUG\n")
	if err := os.WriteFile(path, file, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("UNICHAT_CONFIG", path)
	t.Setenv("SURREALDB_NAMESPACE", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SurrealDBNamespace != "from-env" {
		t.Errorf("env should beat file, got %s", cfg.SurrealDBNamespace)
	}
	if cfg.MarketURL != "http://file:5000" {
		t.Errorf("file should beat default, got %s", cfg.MarketURL)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("expected DEBUG level, got %v", cfg.Level())
	}
}

func TestLoadRejectsBrokenConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not valid"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("UNICHAT_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Error("expected error for broken config file")
	}
}

func TestLevelParsing(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (Config{LogLevel: tt.in}).Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("hello", "key", "value")

	if stderr.Len() == 0 {
		t.Error("expected text output on stderr writer")
	}

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output should be JSON: %v", err)
	}
	if entry["msg"] != "hello" {
		t.Errorf("unexpected log entry: %v", entry)
	}
}
