package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dedup.Capacity != 1000 {
		t.Fatalf("capacity = %d, want 1000", cfg.Dedup.Capacity)
	}
	if cfg.CooldownDuration() != time.Hour {
		t.Fatalf("cooldown = %v, want 1h", cfg.CooldownDuration())
	}
	if cfg.StopGrace() != 2*time.Second {
		t.Fatalf("grace = %v, want 2s", cfg.StopGrace())
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "safety:\n  lang: zh\n  workers: 2\nclassifier:\n  tokenHosts:\n    - photon-sol.tinyastro.io\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Safety.Lang != "zh" || cfg.Safety.Workers != 2 {
		t.Fatalf("unexpected safety config: %+v", cfg.Safety)
	}
	if cfg.Safety.CacheTTLHours != 24 {
		t.Fatalf("defaults not preserved: ttl=%d", cfg.Safety.CacheTTLHours)
	}
	if len(cfg.Classifier.TokenHosts) != 1 {
		t.Fatalf("token hosts = %v", cfg.Classifier.TokenHosts)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("dedup:\n  capacity: 0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDefaultMonitorLocationIsExecutableDir(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skipf("executable path unavailable: %v", err)
	}
	cfg := NewConfig()
	if cfg.Monitor.BinDir != filepath.Dir(exe) {
		t.Fatalf("binDir = %q, want %q", cfg.Monitor.BinDir, filepath.Dir(exe))
	}
	if cfg.Monitor.ScriptPath != "" {
		t.Fatalf("script fallback should be opt-in, got %q", cfg.Monitor.ScriptPath)
	}
}
