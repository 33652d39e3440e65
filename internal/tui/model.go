// Package tui provides the Bubble Tea monitor console.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"sleepywoodpecker/plant-monitor/internal/processing"
)

const (
	defaultNote    = "Mark"
	noteCharLimit  = 64
	defaultWidth   = 100
	defaultHeight  = 30
	saveTimeLayout = "15:04:05"
	// title, panels, marker labels, presets, note, status and help
	chromeRows = 14
)

// LineSource yields decoded text lines from the instrument.
type LineSource interface {
	ReadLines(limit int) ([]string, error)
}

type samplesMsg struct {
	lines []string
	err   error
}

// Model implements the Bubble Tea monitor UI. All monitor state is touched
// from Update only; the tick command reads the line source and hands the
// lines back as a message.
type Model struct {
	monitor  *processing.Monitor
	source   LineSource
	logger   *zap.Logger
	interval time.Duration
	maxLines int

	keys    KeyMap
	help    help.Model
	note    textinput.Model
	editing bool

	width  int
	height int

	status      string
	statusIsErr bool
}

// NewModel constructs the console model.
func NewModel(monitor *processing.Monitor, source LineSource, interval time.Duration, maxLines int, logger *zap.Logger) *Model {
	note := textinput.New()
	note.Prompt = "Custom: "
	note.CharLimit = noteCharLimit
	note.SetValue(defaultNote)

	return &Model{
		monitor:  monitor,
		source:   source,
		logger:   logger,
		interval: interval,
		maxLines: maxLines,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		note:     note,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m *Model) tickCmd() tea.Cmd {
	source, limit := m.source, m.maxLines
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		lines, err := source.ReadLines(limit)
		return samplesMsg{lines: lines, err: err}
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case samplesMsg:
		m.handleReport(m.monitor.Tick(msg.lines, msg.err))
		return m, m.tickCmd()
	case tea.KeyMsg:
		if m.editing {
			return m.updateNote(msg)
		}
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Note):
		m.editing = true
		m.note.SetValue(defaultNote)
		m.note.CursorEnd()
		return m, m.note.Focus()
	}
	if action, ok := m.actionForKey(msg); ok {
		m.dispatch(action)
	}
	return m, nil
}

// actionForKey maps a key press to the monitor action it triggers.
func (m *Model) actionForKey(msg tea.KeyMsg) (processing.Action, bool) {
	switch {
	case key.Matches(msg, m.keys.Record):
		return processing.ToggleRecord{}, true
	case key.Matches(msg, m.keys.AutoScale):
		return processing.ToggleAutoScale{}, true
	case key.Matches(msg, m.keys.Reset):
		return processing.ResetView{}, true
	case key.Matches(msg, m.keys.Preset):
		idx := int(msg.String()[0]-'0') - 1
		presets := m.monitor.Frame().Presets
		if idx < 0 || idx >= len(presets) {
			return nil, false
		}
		return processing.SetPreset{Label: presets[idx]}, true
	}
	return nil, false
}

func (m *Model) updateNote(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		m.dispatch(processing.SetCustom{Text: m.note.Value()})
		m.editing = false
		m.note.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.note.Blur()
		return m, nil
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.note, cmd = m.note.Update(msg)
	return m, cmd
}

func (m *Model) dispatch(action processing.Action) {
	err := m.monitor.Dispatch(action)
	if err != nil {
		var startErr *processing.StartError
		if errors.As(err, &startErr) {
			m.setError(fmt.Sprintf("Could not create %s: %v", startErr.Filename, startErr.Err))
		} else {
			m.setError(err.Error())
		}
		m.logger.Warn("[tui] action failed", zap.Error(err), zap.String("action", fmt.Sprintf("%T", action)))
		return
	}

	frame := m.monitor.Frame()
	switch a := action.(type) {
	case processing.ToggleRecord:
		if frame.Recorder.State == processing.Active {
			m.setStatus("Recording to " + frame.Recorder.Filename)
		} else {
			m.setStatus("Saved " + frame.Recorder.LastFile)
		}
	case processing.ToggleAutoScale:
		if frame.AutoScale {
			m.setStatus("Auto scale on")
		} else {
			m.setStatus("Auto scale off")
		}
	case processing.ResetView:
		m.setStatus("View reset")
	case processing.SetPreset:
		m.setStatus("Marked: " + a.Label)
	case processing.SetCustom:
		if frame.Pending != "" {
			m.setStatus("Marked: " + frame.Pending)
		}
	}
}

func (m *Model) handleReport(report processing.TickReport) {
	switch {
	case report.ReadErr != nil:
		m.setError("Serial read error: " + report.ReadErr.Error())
	case report.WriteErr != nil:
		m.setError("Write error: " + report.WriteErr.Error())
	case report.JournalErr != nil:
		m.setError("Catalog error: " + report.JournalErr.Error())
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusIsErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusIsErr = true
}

// View implements tea.Model.
func (m *Model) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	frame := m.monitor.Frame()
	chartWidth := chartWidthFor(width)
	chartHeight := height - chromeRows
	if m.help.ShowAll {
		chartHeight -= 3
	}

	sections := []string{
		m.renderTitle(frame),
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderStatusPanel(frame), " ", m.renderStatsPanel(frame)),
		renderMarkerLabels(frame.Markers, len(frame.Samples), chartWidth),
		renderChart(frame, chartWidth, chartHeight),
		m.renderPresets(frame),
		m.renderNoteLine(frame),
		m.renderStatus(),
		m.help.View(m.keys),
	}
	return strings.Join(sections, "\n")
}

func (m *Model) renderTitle(frame processing.Frame) string {
	rec := frame.Recorder
	switch {
	case rec.State == processing.Active:
		return titleRecStyle.Render("Recording to: " + rec.Filename)
	case rec.LastFile != "":
		return titleStyle.Render(fmt.Sprintf("Plant Monitor - Paused (Last: %s)", rec.LastFile))
	default:
		return titleStyle.Render("Plant Monitor - Ready")
	}
}

func (m *Model) renderStatusPanel(frame processing.Frame) string {
	rec := frame.Recorder
	lastSave := "---"
	if !rec.LastSave.IsZero() {
		lastSave = rec.LastSave.Format(saveTimeLayout)
	}
	var lines []string
	style := panelStyle
	if rec.State == processing.Active {
		lines = []string{
			fmt.Sprintf("RUN #%d: %s", rec.RunID, rec.State),
			"File: " + rec.Filename,
			fmt.Sprintf("Rows: %d  Saved: %s", rec.Rows, lastSave),
		}
		style = style.Border(lipgloss.ThickBorder()).BorderForeground(colorRecord)
	} else {
		lines = []string{
			fmt.Sprintf("RUN #%d: %s", rec.RunID, rec.State),
			fmt.Sprintf("Next: Run_%02d...", rec.NextRunID),
			"Saved: " + lastSave,
		}
		style = style.BorderForeground(colorIdle)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderStatsPanel(frame processing.Frame) string {
	s := frame.Stats
	scale := "fixed"
	if frame.AutoScale {
		scale = "auto"
	}
	lines := []string{
		fmt.Sprintf("Current: %.4f V", s.Current),
		fmt.Sprintf("Max:     %.4f V", s.Max),
		fmt.Sprintf("Min:     %.4f V", s.Min),
		fmt.Sprintf("Avg:     %.4f V", s.Mean),
		fmt.Sprintf("Amp:     %.4f V", s.Amplitude),
		fmt.Sprintf("Trend:   %s  (%s scale)", frame.Trend, scale),
	}
	return panelStyle.BorderForeground(trendColor(frame.Trend)).Render(strings.Join(lines, "\n"))
}

func trendColor(t processing.Trend) lipgloss.Color {
	switch t {
	case processing.TrendRising:
		return colorRising
	case processing.TrendFalling:
		return colorFalling
	case processing.TrendStable:
		return colorStable
	default:
		return colorIdle
	}
}

func (m *Model) renderPresets(frame processing.Frame) string {
	parts := make([]string, 0, len(frame.Presets))
	for i, label := range frame.Presets {
		if i >= 9 {
			break
		}
		parts = append(parts, presetStyle.Render(fmt.Sprintf("%d %s", i+1, label)))
	}
	return strings.Join(parts, " ")
}

func (m *Model) renderNoteLine(frame processing.Frame) string {
	if m.editing {
		return m.note.View()
	}
	if frame.Pending != "" {
		return pendingStyle.Render("Pending: " + frame.Pending)
	}
	return ""
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if m.statusIsErr {
		return statusErrorStyle.Render(m.status)
	}
	return statusStyle.Render(m.status)
}
