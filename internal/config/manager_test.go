package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSettings(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "nope.json"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.Console {
		t.Fatalf("defaults not applied: %+v", cfg.Logging)
	}
	if cfg.StatePath != "./config.json" {
		t.Fatalf("StatePath = %q", cfg.StatePath)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit the settings")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeSettings(t, "settings.json", `{
		"logging": {"level": "debug", "console": true},
		"telegram": {"poll_timeout": "30s", "rate_per_sec": 10},
		"state_path": "/var/lib/bot/config.json",
		"scheduler": {"workers": 4, "timezone": "Asia/Jakarta"},
		"storage": {"driver": "sqlite", "path": "./audit.db"}
	}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Level = %q", cfg.Logging.Level)
	}
	if cfg.Telegram.PollTimeout != "30s" || cfg.Telegram.RatePerSec != 10 {
		t.Fatalf("Telegram = %+v", cfg.Telegram)
	}
	if cfg.Scheduler.Workers != 4 || cfg.Scheduler.Timezone != "Asia/Jakarta" {
		t.Fatalf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("Storage = %+v", cfg.Storage)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeSettings(t, "settings.yaml", `
logging:
  level: warn
  console: true
telegram:
  poll_timeout: 15s
state_path: ./state.json
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Logging.Level != "warn" || cfg.Telegram.PollTimeout != "15s" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeSettings(t, "settings.json", `{"loging": {"level": "info"}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected an error for a misspelled key")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeSettings(t, "settings.json", `{"state_path": "a"}{"state_path": "b"}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected an error for trailing tokens")
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		in      string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{"plain", "10s", time.Second, 10 * time.Second, false},
		{"composite", "2m30s", 0, 150 * time.Second, false},
		{"empty uses default", "", 5 * time.Second, 5 * time.Second, false},
		{"zero uses default", "0s", 5 * time.Second, 5 * time.Second, false},
		{"garbage", "banana", 0, 0, true},
		{"negative", "-5s", 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Duration("poll_timeout", tc.in, tc.def)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Duration(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Fatalf("Duration(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
