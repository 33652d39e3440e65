// r in rserial stands for "robust"
package rserial

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

type rserial struct {
	serial.Port
	lines       *lineReader
	logger      *zap.Logger
	portName    string
	readTimeout time.Duration
	settleDelay time.Duration
	// last read error logged, so a dead port is reported once, not every tick
	lastReadErr string
}

// NewRSerial opens the port and prepares it for line reads. A port that cannot
// be opened is reported to the caller; the console treats that as fatal.
func NewRSerial(portName string, baudrate int, readTimeout, settleDelay time.Duration, logger *zap.Logger) (*rserial, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		logger.Error("[rserial] error opening serial port", zap.Error(err), zap.String("portName", portName))
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	r := &rserial{
		Port:        port,
		lines:       newLineReader(port),
		logger:      logger,
		portName:    portName,
		readTimeout: readTimeout,
		settleDelay: settleDelay,
	}
	if err := r.initialize(); err != nil {
		if cerr := port.Close(); cerr != nil {
			logger.Warn("[rserial] error closing port after failed init", zap.Error(cerr), zap.String("portName", portName))
		}
		return nil, err
	}

	logger.Info("[rserial] serial port ready", zap.String("portName", portName), zap.Int("baudrate", baudrate))
	return r, nil
}

func (r *rserial) initialize() error {
	if err := r.SetReadTimeout(r.readTimeout); err != nil {
		return fmt.Errorf("failed to set read timeout on %s: %w", r.portName, err)
	}
	// most boards reset when the port opens, give them time to boot before
	// throwing away whatever is buffered
	if r.settleDelay > 0 {
		time.Sleep(r.settleDelay)
	}
	if err := r.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to reset input buffer on %s: %w", r.portName, err)
	}
	r.sync()
	return nil
}

// ReadLines drains at most limit complete lines from the port. Lines decoded
// before a read error are still returned together with the error.
func (r *rserial) ReadLines(limit int) ([]string, error) {
	lines, err := r.lines.ReadLines(limit)
	var overlong *OverlongLineError
	switch {
	case err == nil:
		if r.lastReadErr != "" {
			r.logger.Info("[rserial] reads recovered", zap.String("portName", r.portName), zap.String("lastError", r.lastReadErr))
			r.lastReadErr = ""
		}
	case errors.As(err, &overlong) && overlong.Terminated:
		r.logger.Warn("[rserial] discarded overlong line", zap.Error(err), zap.String("portName", r.portName), zap.ByteString("payload", overlong.ByteSequence))
	case errors.As(err, &overlong):
		r.logger.Warn("[rserial] discarded unterminated line", zap.Error(err), zap.String("portName", r.portName), zap.ByteString("payload", overlong.ByteSequence))
		r.sync()
	case err.Error() != r.lastReadErr:
		r.lastReadErr = err.Error()
		r.logger.Warn("[rserial] error while reading lines from serial", zap.Error(err), zap.String("portName", r.portName))
	}
	return lines, err
}

func (r *rserial) Close() error {
	r.logger.Info("[rserial] closing serial port", zap.String("portName", r.portName))
	return r.Port.Close()
}

// sync drops everything up to the next line terminator so the first line
// handed out is never a fragment.
func (r *rserial) sync() {
	r.logger.Warn("[rserial] resyncing serial port", zap.String("portName", r.portName))
	r.lines.resync()
}

// ListPorts returns the serial ports visible to the OS.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
