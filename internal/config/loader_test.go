package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amy-assistant/amy/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
telegram:
  token: "test-token"
  admin_id: 42
gemini:
  api_key: "test-key"
`))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Memory.BufferCapacity != config.DefaultBufferCapacity {
		t.Errorf("BufferCapacity = %d, want %d", cfg.Memory.BufferCapacity, config.DefaultBufferCapacity)
	}
	if cfg.Memory.ContextMaxChars != config.DefaultContextMaxChars {
		t.Errorf("ContextMaxChars = %d, want %d", cfg.Memory.ContextMaxChars, config.DefaultContextMaxChars)
	}
	if cfg.Memory.SimilarityThreshold != config.DefaultSimilarityThreshold {
		t.Errorf("SimilarityThreshold = %v, want %v", cfg.Memory.SimilarityThreshold, config.DefaultSimilarityThreshold)
	}
	if cfg.Memory.Extractor != "rules" {
		t.Errorf("Extractor = %q, want %q", cfg.Memory.Extractor, "rules")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults = %q/%q, want info/json", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Telegram.Msgs.GreetingNewUser == "" {
		t.Error("expected default new-user greeting to be set")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
log:
  level: debug
  format: text
telegram:
  token: "test-token"
  admin_id: 42
gemini:
  api_key: "test-key"
memory:
  buffer_capacity: 5
  context_max_chars: 200
  similarity_threshold: 0.9
  extractor: gemini
`))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Memory.BufferCapacity != 5 {
		t.Errorf("BufferCapacity = %d, want 5", cfg.Memory.BufferCapacity)
	}
	if cfg.Memory.ContextMaxChars != 200 {
		t.Errorf("ContextMaxChars = %d, want 200", cfg.Memory.ContextMaxChars)
	}
	if cfg.Memory.SimilarityThreshold != 0.9 {
		t.Errorf("SimilarityThreshold = %v, want 0.9", cfg.Memory.SimilarityThreshold)
	}
	if cfg.Memory.Extractor != "gemini" {
		t.Errorf("Extractor = %q, want gemini", cfg.Memory.Extractor)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing telegram token",
			yaml: "telegram:\n  admin_id: 42\ngemini:\n  api_key: k\n",
		},
		{
			name: "invalid extractor",
			yaml: "telegram:\n  token: t\n  admin_id: 42\ngemini:\n  api_key: k\nmemory:\n  extractor: magic\n",
		},
		{
			name: "similarity threshold out of range",
			yaml: "telegram:\n  token: t\n  admin_id: 42\ngemini:\n  api_key: k\nmemory:\n  similarity_threshold: 1.5\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("Load() succeeded, want validation error")
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AMY_TELEGRAM_TOKEN", "env-token")
	t.Setenv("AMY_TELEGRAM_ADMIN_ID", "7")
	t.Setenv("AMY_GEMINI_API_KEY", "env-key")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("Telegram.Token = %q, want env-token", cfg.Telegram.Token)
	}
	if cfg.Database.Path != config.DefaultDBPath {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, config.DefaultDBPath)
	}
}
