package structive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/structive/structive-go/internal/serr"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.RefStackDepth != 256 || cfg.MaxLoopDepth != 32 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
debug: true
ref_stack_depth: 64
session:
  keep_alive: 5s
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if !cfg.Debug || cfg.RefStackDepth != 64 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	// Untouched knobs keep their defaults.
	if cfg.MaxLoopDepth != 32 {
		t.Errorf("MaxLoopDepth = %d, want default 32", cfg.MaxLoopDepth)
	}
	if cfg.Session.KeepAlive != 5*time.Second {
		t.Errorf("KeepAlive = %v, want 5s", cfg.Session.KeepAlive)
	}
	if cfg.Session.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want default 10s", cfg.Session.WriteTimeout)
	}
}

func TestParseConfigSetsDebugLogging(t *testing.T) {
	serr.SetDebug(false)
	if _, err := ParseConfig([]byte("debug: true\n")); err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if !serr.Debug() {
		t.Error("debug logging not enabled from config")
	}
	if _, err := ParseConfig([]byte("")); err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if serr.Debug() {
		t.Error("debug logging not reset by default config")
	}
}

func TestParseConfigRejectsBadYAML(t *testing.T) {
	_, err := ParseConfig([]byte("debug: [unclosed"))
	if serr.CodeOf(err) != "CFG-001" {
		t.Errorf("err = %v, want CFG-001", err)
	}
}

func TestParseConfigRejectsOutOfBounds(t *testing.T) {
	cases := []string{
		"ref_stack_depth: 2",
		"max_loop_depth: 0",
		"max_loop_depth: 99",
		"session:\n  keep_alive: 1ms",
		"session:\n  max_message_bytes: 10",
	}
	for _, src := range cases {
		if _, err := ParseConfig([]byte(src)); serr.CodeOf(err) != "CFG-002" {
			t.Errorf("ParseConfig(%q) err = %v, want CFG-002", src, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "structive.yaml")
	if err := os.WriteFile(path, []byte("metrics: true\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Metrics {
		t.Error("metrics flag not loaded")
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file did not error")
	}
}
