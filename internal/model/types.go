// Package model defines shared data structures.
package model

import "time"

// Config holds the resolved monitor settings after defaults, the config
// file and flags have been applied.
type Config struct {
	PortName        string
	BaudRate        int
	ReadTimeout     time.Duration
	SettleDelay     time.Duration
	Window          int
	TickInterval    time.Duration
	MaxLinesPerTick int
	NoiseThreshold  float64
	BandLow         float64
	BandHigh        float64
	AutoScale       bool
	Presets         []string
	OutputDir       string
	DBPath          string
	LogPath         string
}

// Session describes one recording session, open or finished.
type Session struct {
	RunID     int
	Filename  string
	StartedAt time.Time
	EndedAt   time.Time
	Rows      int
}

// Event is an operator annotation consumed by an accepted sample.
// RunID is zero when no session was recording.
type Event struct {
	RunID      int
	At         time.Time
	ElapsedSec float64
	Voltage    float64
	Label      string
}

// SessionSummary is a catalog row plus its annotations, for reporting.
type SessionSummary struct {
	Session
	Events []Event
}
