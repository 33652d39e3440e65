package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	if cfg.Serial.Port != nil || cfg.Monitor.Window != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[serial]
port = "/dev/ttyUSB3"
baud = 115200

[monitor]
window = 600
noise-threshold = 0.005
auto-scale = true
presets = ["Water", "Shade"]

[record]
out = "/tmp/runs"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Serial.Port == nil || *cfg.Serial.Port != "/dev/ttyUSB3" {
		t.Fatalf("unexpected port: %v", cfg.Serial.Port)
	}
	if cfg.Serial.Baud == nil || *cfg.Serial.Baud != 115200 {
		t.Fatalf("unexpected baud: %v", cfg.Serial.Baud)
	}
	if cfg.Serial.SettleMs != nil {
		t.Fatalf("unset keys must stay nil")
	}
	if cfg.Monitor.Window == nil || *cfg.Monitor.Window != 600 {
		t.Fatalf("unexpected window: %v", cfg.Monitor.Window)
	}
	if cfg.Monitor.AutoScale == nil || !*cfg.Monitor.AutoScale {
		t.Fatalf("expected auto-scale true")
	}
	if cfg.Monitor.Presets == nil || len(*cfg.Monitor.Presets) != 2 {
		t.Fatalf("unexpected presets: %v", cfg.Monitor.Presets)
	}
	if cfg.Record.OutputDir == nil || *cfg.Record.OutputDir != "/tmp/runs" {
		t.Fatalf("unexpected output dir: %v", cfg.Record.OutputDir)
	}
}

func TestLoadConfigRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[serial\nport = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestXDGPathsHonorEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "plantmon", "config.toml") {
		t.Fatalf("unexpected config path %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "plantmon", "catalog.db") {
		t.Fatalf("unexpected db path %s", got)
	}
	if got := DefaultLogPath(); got != filepath.Join("/data", "plantmon", "plantmon.log") {
		t.Fatalf("unexpected log path %s", got)
	}
}
