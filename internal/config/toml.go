// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Serial  SerialConfig  `toml:"serial"`
	Monitor MonitorConfig `toml:"monitor"`
	Record  RecordConfig  `toml:"record"`
}

// SerialConfig maps the serial port settings.
type SerialConfig struct {
	Port          *string `toml:"port"`
	Baud          *int    `toml:"baud"`
	ReadTimeoutMs *int    `toml:"read-timeout-ms"`
	SettleMs      *int    `toml:"settle-ms"`
}

// MonitorConfig maps acquisition and display settings.
type MonitorConfig struct {
	Window         *int      `toml:"window"`
	IntervalMs     *int      `toml:"interval-ms"`
	MaxLines       *int      `toml:"max-lines"`
	NoiseThreshold *float64  `toml:"noise-threshold"`
	BandLow        *float64  `toml:"band-low"`
	BandHigh       *float64  `toml:"band-high"`
	AutoScale      *bool     `toml:"auto-scale"`
	Presets        *[]string `toml:"presets"`
}

// RecordConfig maps recording settings.
type RecordConfig struct {
	OutputDir *string `toml:"out"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
