package processing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sleepywoodpecker/plant-monitor/internal/model"
)

var ErrMalformedSample = errors.New("malformed sample")

// TickReport says what happened to one batch of lines. Each failing step has
// its own field so callers can tell which path was taken.
type TickReport struct {
	Accepted   int
	Discarded  int
	Events     []string
	ReadErr    error
	WriteErr   error
	JournalErr error
}

// Err combines every failure of the tick.
func (t TickReport) Err() error {
	return multierr.Combine(t.ReadErr, t.WriteErr, t.JournalErr)
}

// ParseSample decodes one text line into a voltage.
func ParseSample(line string) (float64, error) {
	v, err := strconv.ParseFloat(line, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedSample, line)
	}
	return v, nil
}

// Tick feeds one batch of serial lines through the monitor. Malformed lines
// are counted and dropped. readErr is whatever the line source reported for
// this batch; lines read before it are still processed.
func (m *Monitor) Tick(lines []string, readErr error) TickReport {
	report := TickReport{ReadErr: readErr}
	for _, line := range lines {
		voltage, err := ParseSample(line)
		if err != nil {
			report.Discarded++
			continue
		}
		m.ProcessSample(voltage, &report)
	}
	return report
}

// ProcessSample runs one accepted sample through ring, markers, pending event
// and recorder, in that order.
func (m *Monitor) ProcessSample(voltage float64, report *TickReport) {
	m.ring.Push(voltage)
	m.lastValid = voltage
	m.accepted++
	report.Accepted++

	m.markers.Age()

	now := m.now()
	note, ok := m.events.Take()
	if ok {
		m.markers.Add(note, m.ring.Len()-1)
		report.Events = append(report.Events, note)
		if err := m.logEvent(now, voltage, note); err != nil {
			report.JournalErr = multierr.Append(report.JournalErr, err)
		}
	}

	if err := m.recorder.WriteRow(now, voltage, note); err != nil {
		m.logger.Warn("[monitor] error writing sample row", zap.Error(err), zap.Float64("voltage", voltage))
		report.WriteErr = multierr.Append(report.WriteErr, err)
	}
}

func (m *Monitor) logEvent(now time.Time, voltage float64, label string) error {
	runID := 0
	if m.recorder.Active() {
		runID = m.recorder.Session().RunID
	}
	m.logger.Info("[monitor] event marked", zap.String("label", label), zap.Int("runID", runID), zap.Float64("voltage", voltage))
	if m.journal == nil {
		return nil
	}
	event := model.Event{
		RunID:      runID,
		At:         now,
		ElapsedSec: now.Sub(m.startedAt).Seconds(),
		Voltage:    voltage,
		Label:      label,
	}
	if err := m.journal.AddEvent(context.Background(), event); err != nil {
		m.logger.Warn("[monitor] error storing event", zap.Error(err), zap.String("label", label))
		return err
	}
	return nil
}
