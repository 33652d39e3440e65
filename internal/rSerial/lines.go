package rserial

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

const MaxLineLength = 256

const lineTerminator = '\n'

// OverlongLineError reports a line longer than MaxLineLength. Terminated is
// true when the line ended normally, so the stream is still in sync.
type OverlongLineError struct {
	ByteSequence []byte
	Terminated   bool
}

func (e *OverlongLineError) Error() string {
	if e.Terminated {
		return fmt.Sprintf("[rserial] line of %d bytes exceeds %d", len(e.ByteSequence), MaxLineLength)
	}
	return fmt.Sprintf("[rserial] no line terminator within %d bytes", len(e.ByteSequence))
}

// lineReader splits a byte stream with short read timeouts into trimmed text
// lines. A zero-byte read is treated as "nothing available right now".
type lineReader struct {
	src      io.Reader
	tempBuff []byte
	pending  []byte
	synced   bool
}

func newLineReader(src io.Reader) *lineReader {
	return &lineReader{
		src:      src,
		tempBuff: make([]byte, MaxLineLength),
		synced:   true,
	}
}

func (l *lineReader) resync() {
	l.pending = l.pending[:0]
	l.synced = false
}

// ReadLines returns at most limit non-empty lines. The number of reads is bounded
// by limit+1 so a noisy source cannot hold the caller.
func (l *lineReader) ReadLines(limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	lines := make([]string, 0, limit)

	lines, err := l.drain(lines, limit)
	if err != nil {
		return lines, err
	}

	for reads := 0; len(lines) < limit && reads <= limit; reads++ {
		n, readErr := l.src.Read(l.tempBuff)
		if n > 0 {
			l.pending = append(l.pending, l.tempBuff[:n]...)
		}

		lines, err = l.drain(lines, limit)
		if readErr != nil {
			return lines, readErr
		}
		if err != nil {
			return lines, err
		}
		if n == 0 {
			break
		}
	}

	return lines, nil
}

// drain splits complete lines out of pending. Complete lines longer than
// MaxLineLength are dropped and the first of them is reported once draining
// stops; an unterminated overlong tail is reported immediately.
func (l *lineReader) drain(lines []string, limit int) ([]string, error) {
	consumed := 0
	var dropped error
	defer func() {
		if consumed > 0 {
			l.pending = append(l.pending[:0], l.pending[consumed:]...)
		}
	}()

	for len(lines) < limit {
		rest := l.pending[consumed:]
		idx := bytes.IndexByte(rest, lineTerminator)
		if idx < 0 {
			if len(rest) > MaxLineLength {
				consumed = len(l.pending)
				return lines, &OverlongLineError{ByteSequence: bytes.Clone(rest)}
			}
			return lines, dropped
		}

		raw := rest[:idx]
		consumed += idx + 1
		if !l.synced {
			l.synced = true
			continue
		}
		if len(bytes.TrimRight(raw, "\r")) > MaxLineLength {
			if dropped == nil {
				dropped = &OverlongLineError{ByteSequence: bytes.Clone(raw), Terminated: true}
			}
			continue
		}

		line := strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, dropped
}
