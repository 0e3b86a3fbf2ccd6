package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefault(t *testing.T) {
	cfg := Load("/nonexistent/path")
	if !cfg.EffectiveCheckDeep() {
		t.Error("expected default check_deep true")
	}
	if cfg.EffectiveCheckInheritance() {
		t.Error("expected default check_inheritance false")
	}
	if cfg.EffectiveLimit() != 500 {
		t.Errorf("expected default limit 500, got %d", cfg.EffectiveLimit())
	}
	if cfg.EffectiveDriver() != "sqlite" {
		t.Errorf("expected default driver sqlite, got %s", cfg.EffectiveDriver())
	}
	if cfg.EffectiveLevel() != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.EffectiveLevel())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
search:
  check_deep: false
  check_inheritance: true
  limit: 25
store:
  driver: sqlite3
  dir: /var/lib/inheritors
log:
  level: debug
  format: json
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Load(dir)
	if cfg.EffectiveCheckDeep() {
		t.Error("expected check_deep false")
	}
	if !cfg.EffectiveCheckInheritance() {
		t.Error("expected check_inheritance true")
	}
	if cfg.EffectiveLimit() != 25 {
		t.Errorf("expected limit 25, got %d", cfg.EffectiveLimit())
	}
	if cfg.EffectiveDriver() != "sqlite3" {
		t.Errorf("expected sqlite3, got %s", cfg.EffectiveDriver())
	}
	if cfg.Store.Dir != "/var/lib/inheritors" {
		t.Errorf("unexpected dir %s", cfg.Store.Dir)
	}
	if cfg.EffectiveLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.EffectiveLevel())
	}

	var buf bytes.Buffer
	cfg.NewLogger(&buf).Debug("config.test", "k", "v")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON log line, got %q", buf.String())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("not: [valid: yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := Load(dir)
	if !cfg.EffectiveCheckDeep() || cfg.EffectiveLimit() != 500 {
		t.Error("expected defaults on invalid yaml")
	}
}

func TestNonPositiveLimitFallsBack(t *testing.T) {
	zero := 0
	cfg := &Config{Search: SearchConfig{Limit: &zero}}
	if cfg.EffectiveLimit() != 500 {
		t.Errorf("expected 500, got %d", cfg.EffectiveLimit())
	}
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	Default().NewLogger(&buf).Info("config.test")
	if !strings.Contains(buf.String(), "msg=config.test") {
		t.Errorf("expected text log line, got %q", buf.String())
	}
}
