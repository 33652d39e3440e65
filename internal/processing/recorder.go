package processing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"sleepywoodpecker/plant-monitor/internal/model"
)

const (
	rowTimeLayout     = "15:04:05.000"
	filenameTimeStamp = "150405"
)

var csvHeader = []string{"Timestamp", "Time_Sec", "Voltage", "Event_Note"}

type RecorderState int

const (
	Idle RecorderState = iota
	Active
)

func (s RecorderState) String() string {
	if s == Active {
		return "REC"
	}
	return "PAUSED"
}

type StartError struct {
	Filename string
	Err      error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("[recorder] could not start session %s: %v", e.Filename, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Recorder owns the CSV file of the current recording session. Elapsed time in
// every row is measured from processStart, not from the session start, so rows
// of different runs line up on one time axis.
type Recorder struct {
	dir          string
	processStart time.Time
	runID        int
	state        RecorderState

	session     model.Session
	lastSession model.Session
	lastSave    time.Time

	file   io.WriteCloser
	writer *csv.Writer

	create func(path string) (io.WriteCloser, error)
}

// NewRecorder returns an idle recorder. The first session gets run id
// lastRunID+1.
func NewRecorder(dir string, processStart time.Time, lastRunID int) *Recorder {
	return &Recorder{
		dir:          dir,
		processStart: processStart,
		runID:        lastRunID,
		create:       createExclusive,
	}
}

func createExclusive(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// SessionFilename derives the file name of a run.
func SessionFilename(runID int, startedAt time.Time) string {
	return fmt.Sprintf("Run_%02d_%s.csv", runID, startedAt.Format(filenameTimeStamp))
}

// Start opens a new session file and writes the header. On failure the
// recorder stays idle; the run id is consumed either way.
func (r *Recorder) Start(now time.Time) (model.Session, error) {
	if r.state == Active {
		return r.session, nil
	}

	r.runID++
	filename := SessionFilename(r.runID, now)
	path := filepath.Join(r.dir, filename)

	file, err := r.create(path)
	if err != nil {
		return model.Session{}, &StartError{Filename: filename, Err: err}
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return model.Session{}, &StartError{Filename: filename, Err: multierr.Append(err, file.Close())}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return model.Session{}, &StartError{Filename: filename, Err: multierr.Append(err, file.Close())}
	}

	r.file = file
	r.writer = writer
	r.state = Active
	r.session = model.Session{
		RunID:     r.runID,
		Filename:  filename,
		StartedAt: now,
	}
	return r.session, nil
}

// WriteRow appends one sample and flushes it right away.
func (r *Recorder) WriteRow(now time.Time, voltage float64, note string) error {
	if r.state != Active {
		return nil
	}
	elapsed := now.Sub(r.processStart).Seconds()
	row := []string{
		now.Format(rowTimeLayout),
		strconv.FormatFloat(elapsed, 'f', 3, 64),
		strconv.FormatFloat(voltage, 'f', -1, 64),
		note,
	}
	if err := r.writer.Write(row); err != nil {
		return fmt.Errorf("[recorder] failed to write row to %s: %w", r.session.Filename, err)
	}
	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		return fmt.Errorf("[recorder] failed to flush %s: %w", r.session.Filename, err)
	}
	r.session.Rows++
	r.lastSave = now
	return nil
}

// Stop flushes and closes the session file and returns the finished session.
// Stopping an idle recorder is a no-op.
func (r *Recorder) Stop(now time.Time) (model.Session, error) {
	if r.state != Active {
		return model.Session{}, nil
	}
	r.writer.Flush()
	err := multierr.Append(r.writer.Error(), r.file.Close())

	r.session.EndedAt = now
	finished := r.session
	r.lastSession = finished
	r.session = model.Session{}
	r.file = nil
	r.writer = nil
	r.state = Idle

	if err != nil {
		return finished, fmt.Errorf("[recorder] failed to close %s: %w", finished.Filename, err)
	}
	return finished, nil
}

func (r *Recorder) State() RecorderState {
	return r.state
}

func (r *Recorder) Active() bool {
	return r.state == Active
}

// Session returns the open session, or the zero value when idle.
func (r *Recorder) Session() model.Session {
	return r.session
}

// LastSession returns the most recently finished session.
func (r *Recorder) LastSession() model.Session {
	return r.lastSession
}

func (r *Recorder) RunID() int {
	return r.runID
}

func (r *Recorder) LastSave() time.Time {
	return r.lastSave
}

func (r *Recorder) Dir() string {
	return r.dir
}
