package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{" TRACE ", LevelTrace, false},
		{"Debug", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "env-key")
	t.Setenv("MARGOCRM_MODEL", "env-model")
	t.Setenv("TEST_OWNER_PASSWORD", "s3cret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
listen: ":9090"
model: file-model
model_timeout: 15s
max_iterations: 3
cors_origins: ["https://margocrm.ru"]
seed_owner:
  email: owner@example.com
  password: ${TEST_OWNER_PASSWORD}
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env value kept", cfg.APIKey)
	}
	if cfg.Model != "file-model" {
		t.Errorf("Model = %q, want file value", cfg.Model)
	}
	if cfg.ModelTimeout != 15*time.Second {
		t.Errorf("ModelTimeout = %s", cfg.ModelTimeout)
	}
	if cfg.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d", cfg.MaxIterations)
	}
	if cfg.SeedOwner.Password != "s3cret" {
		t.Errorf("SeedOwner.Password = %q, want expanded env var", cfg.SeedOwner.Password)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://margocrm.ru" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MaxIterations = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max_iterations")
	}

	cfg = Default()
	cfg.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log format")
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestNewLogger_TraceName(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "trace"
	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Log(context.Background(), LevelTrace, "wire payload")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE level name, got %q", buf.String())
	}
}
