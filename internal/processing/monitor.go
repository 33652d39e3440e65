package processing

import (
	"context"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sleepywoodpecker/plant-monitor/internal/model"
)

// Journal receives session lifecycle and event notifications. Failures are
// logged and never stop acquisition.
type Journal interface {
	BeginSession(ctx context.Context, s model.Session) error
	EndSession(ctx context.Context, s model.Session) error
	AddEvent(ctx context.Context, e model.Event) error
}

// Monitor owns all live state of the console. Every method must be called
// from the same goroutine (the UI update loop).
type Monitor struct {
	cfg       model.Config
	ring      *RingBuffer
	events    EventQueue
	markers   Markers
	recorder  *Recorder
	journal   Journal
	logger    *zap.Logger
	fixedBand Band

	startedAt time.Time
	lastValid float64
	accepted  int
	autoScale bool

	now func() time.Time
}

// NewMonitor builds a monitor whose clock starts at startedAt. journal may be
// nil.
func NewMonitor(cfg model.Config, startedAt time.Time, recorder *Recorder, journal Journal, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:       cfg,
		ring:      NewRingBuffer(cfg.Window, 0),
		recorder:  recorder,
		journal:   journal,
		logger:    logger,
		fixedBand: Band{Low: cfg.BandLow, High: cfg.BandHigh},
		startedAt: startedAt,
		autoScale: cfg.AutoScale,
		now:       time.Now,
	}
}

// Action is one operator command. The set of actions is closed.
type Action interface {
	action()
}

type ToggleRecord struct{}

type ToggleAutoScale struct{}

type ResetView struct{}

type SetPreset struct {
	Label string
}

type SetCustom struct {
	Text string
}

func (ToggleRecord) action()    {}
func (ToggleAutoScale) action() {}
func (ResetView) action()       {}
func (SetPreset) action()       {}
func (SetCustom) action()       {}

// Dispatch applies an operator action. Only ToggleRecord can fail.
func (m *Monitor) Dispatch(a Action) error {
	switch a := a.(type) {
	case ToggleRecord:
		return m.toggleRecord()
	case ToggleAutoScale:
		m.autoScale = !m.autoScale
		m.logger.Info("[monitor] auto scale toggled", zap.Bool("autoScale", m.autoScale))
	case ResetView:
		m.resetView()
	case SetPreset:
		m.events.Set(a.Label)
	case SetCustom:
		text := strings.TrimSpace(a.Text)
		if text != "" {
			m.events.Set(text)
		}
	}
	return nil
}

func (m *Monitor) toggleRecord() error {
	now := m.now()
	if m.recorder.Active() {
		session, err := m.recorder.Stop(now)
		if err != nil {
			m.logger.Warn("[recorder] error closing session", zap.Error(err), zap.String("outputFile", session.Filename))
		} else {
			m.logger.Info("[recorder] session saved", zap.String("outputFile", session.Filename), zap.Int("rows", session.Rows))
		}
		return multierr.Append(err, m.journalEnd(session))
	}

	session, err := m.recorder.Start(now)
	if err != nil {
		m.logger.Error("[recorder] error starting session", zap.Error(err))
		return err
	}
	m.logger.Info("[recorder] session started", zap.String("outputFile", session.Filename), zap.Int("runID", session.RunID))
	if m.journal != nil {
		if err := m.journal.BeginSession(context.Background(), session); err != nil {
			m.logger.Warn("[monitor] error storing session start", zap.Error(err), zap.Int("runID", session.RunID))
		}
	}
	return nil
}

func (m *Monitor) journalEnd(session model.Session) error {
	if m.journal == nil {
		return nil
	}
	if err := m.journal.EndSession(context.Background(), session); err != nil {
		m.logger.Warn("[monitor] error storing session end", zap.Error(err), zap.Int("runID", session.RunID))
		return err
	}
	return nil
}

// resetView clears markers and flattens the window at the last valid value.
// The recorder is left alone.
func (m *Monitor) resetView() {
	m.ring.Fill(m.lastValid)
	m.markers.Clear()
	m.logger.Info("[monitor] view reset", zap.Float64("lastValid", m.lastValid))
}

// Close stops an active session. It is safe to call more than once.
func (m *Monitor) Close() error {
	if !m.recorder.Active() {
		return nil
	}
	session, err := m.recorder.Stop(m.now())
	m.logger.Info("[recorder] session closed on shutdown", zap.String("outputFile", session.Filename), zap.Int("rows", session.Rows))
	return multierr.Append(err, m.journalEnd(session))
}

// RecorderStatus is the recording part of a Frame.
type RecorderStatus struct {
	State     RecorderState
	RunID     int
	Filename  string
	LastFile  string
	NextRunID int
	Rows      int
	LastSave  time.Time
}

// Frame is everything the renderer needs for one redraw.
type Frame struct {
	Samples   []float64
	Stats     Stats
	Trend     Trend
	Band      Band
	FixedBand Band
	AutoScale bool
	Markers   []Marker
	Pending   string
	Accepted  int
	Presets   []string
	Recorder  RecorderStatus
}

func (m *Monitor) Frame() Frame {
	samples := m.ring.Snapshot()
	stats := Summarize(samples)
	band := m.fixedBand
	if m.autoScale {
		band = AutoBand(stats)
	}
	pending, _ := m.events.Pending()

	return Frame{
		Samples:   samples,
		Stats:     stats,
		Trend:     ClassifyTrend(samples, m.cfg.NoiseThreshold),
		Band:      band,
		FixedBand: m.fixedBand,
		AutoScale: m.autoScale,
		Markers:   m.markers.List(),
		Pending:   pending,
		Accepted:  m.accepted,
		Presets:   m.cfg.Presets,
		Recorder: RecorderStatus{
			State:     m.recorder.State(),
			RunID:     m.recorder.RunID(),
			Filename:  m.recorder.Session().Filename,
			LastFile:  m.recorder.LastSession().Filename,
			NextRunID: m.recorder.RunID() + 1,
			Rows:      m.recorder.Session().Rows,
			LastSave:  m.recorder.LastSave(),
		},
	}
}
