package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sleepywoodpecker/plant-monitor/internal/model"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestResolveConfigDefaults(t *testing.T) {
	cmd := newRootCmd()
	configPath = filepath.Join(t.TempDir(), "missing.toml")
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.PortName != DEFAULT_PORT || cfg.BaudRate != BAUDRATE || cfg.Window != MAX_POINTS {
		t.Fatalf("unexpected serial defaults: %+v", cfg)
	}
	if cfg.ReadTimeout != 100*time.Millisecond || cfg.SettleDelay != 2*time.Second || cfg.TickInterval != 30*time.Millisecond {
		t.Fatalf("unexpected timing defaults: %+v", cfg)
	}
	if cfg.MaxLinesPerTick != 10 || cfg.NoiseThreshold != 0.002 || cfg.BandLow != 0 || cfg.BandHigh != 5 {
		t.Fatalf("unexpected monitor defaults: %+v", cfg)
	}
	if len(cfg.Presets) != 5 || cfg.Presets[0] != "Fire Stimulus" {
		t.Fatalf("unexpected presets: %v", cfg.Presets)
	}
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	cmd := newRootCmd()
	configPath = writeConfigFile(t, `
[serial]
port = "/dev/ttyUSB3"
baud = 115200
settle-ms = 0

[monitor]
window = 120
band-high = 3.3
presets = ["Water", "Shade"]

[record]
out = "/tmp/runs"
`)
	if err := cmd.ParseFlags([]string{"--baud", "57600"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.PortName != "/dev/ttyUSB3" {
		t.Fatalf("expected port from file, got %q", cfg.PortName)
	}
	if cfg.BaudRate != 57600 {
		t.Fatalf("expected flag to win, got %d", cfg.BaudRate)
	}
	if cfg.Window != 120 || cfg.BandHigh != 3.3 || cfg.SettleDelay != 0 || cfg.OutputDir != "/tmp/runs" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.Presets) != 2 || cfg.Presets[1] != "Shade" {
		t.Fatalf("unexpected presets: %v", cfg.Presets)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := model.Config{
		PortName:        "/dev/ttyACM0",
		BaudRate:        9600,
		ReadTimeout:     time.Millisecond,
		TickInterval:    time.Millisecond,
		Window:          300,
		MaxLinesPerTick: 10,
		BandLow:         0,
		BandHigh:        5,
		Presets:         []string{"a"},
	}
	if err := validateConfig(valid); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(*model.Config){
		"--baud":    func(c *model.Config) { c.BaudRate = 0 },
		"--window":  func(c *model.Config) { c.Window = 1 },
		"--port":    func(c *model.Config) { c.PortName = " " },
		"band-high": func(c *model.Config) { c.BandHigh = c.BandLow },
		"max-lines": func(c *model.Config) { c.MaxLinesPerTick = 0 },
		"preset 2":  func(c *model.Config) { c.Presets = []string{"a", ""} },
		"at most 9": func(c *model.Config) { c.Presets = strings.Split("a,b,c,d,e,f,g,h,i,j", ",") },
	}
	for want, mutate := range cases {
		cfg := valid
		mutate(&cfg)
		err := validateConfig(cfg)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error containing %q, got %v", want, err)
		}
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	tmpl := defaultConfigTemplate()
	uncommented := strings.NewReplacer("# port", "port", "# baud", "baud", "# presets", "presets").Replace(tmpl)
	cmd := newRootCmd()
	configPath = writeConfigFile(t, uncommented)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		t.Fatalf("template does not decode: %v", err)
	}
	if cfg.PortName != DEFAULT_PORT || len(cfg.Presets) != len(PRESET_LABELS) {
		t.Fatalf("unexpected config from template: %+v", cfg)
	}
}

func TestWriteSessions(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	sessions := []model.SessionSummary{{
		Session: model.Session{RunID: 3, Filename: "Run_03_100000.csv", StartedAt: start, Rows: 42},
		Events: []model.Event{{
			RunID: 3, At: start.Add(time.Second), ElapsedSec: 12.5, Voltage: 1.25, Label: "Touch",
		}},
	}}
	var buf bytes.Buffer
	if err := writeSessions(&buf, sessions); err != nil {
		t.Fatalf("writeSessions: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Run 03", "Run_03_100000.csv", "open", "42 rows", "t=12.500s", "1.25V", "Touch"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestIsShutdownSignal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"killed by context", fmt.Errorf("%w: %w", tea.ErrProgramKilled, context.Canceled), true},
		{"killed", tea.ErrProgramKilled, true},
		{"interrupted", tea.ErrInterrupted, true},
		{"cancelled", context.Canceled, true},
		{"panic", fmt.Errorf("%w: %w", tea.ErrProgramKilled, tea.ErrProgramPanic), false},
		{"other", errors.New("terminal gone"), false},
	}
	for _, tc := range cases {
		if got := isShutdownSignal(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
