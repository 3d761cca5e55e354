package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if *cfg != *Default() {
		t.Errorf("config = %+v, want %+v", *cfg, *Default())
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.toml")

	content := "buffer_size = 1024\nqueue_size = 4\nlog_level = \"debug\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("FLOWBENCH_QUEUE_SIZE", "16")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BufferSize != 1024 {
		t.Errorf("buffer_size = %d, want 1024", cfg.BufferSize)
	}
	if cfg.QueueSize != 16 {
		t.Errorf("queue_size = %d, want 16 (env override)", cfg.QueueSize)
	}

	level, err := cfg.Level()
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	if level != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero buffer", Config{BufferSize: 0, QueueSize: 1, LogLevel: "info"}},
		{"negative queue", Config{BufferSize: 1, QueueSize: -1, LogLevel: "info"}},
		{"bad level", Config{BufferSize: 1, QueueSize: 1, LogLevel: "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
