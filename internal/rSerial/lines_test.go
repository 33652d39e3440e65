package rserial

import (
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// chunkReader hands out one chunk per Read and returns 0, nil once empty,
// which is what a serial port does when its read timeout expires.
type chunkReader struct {
	chunks []string
	reads  int
	err    error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	c.reads++
	if len(c.chunks) == 0 {
		return 0, c.err
	}
	n := copy(p, c.chunks[0])
	if n < len(c.chunks[0]) {
		c.chunks[0] = c.chunks[0][n:]
	} else {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func TestReadLinesSplitsAndTrims(t *testing.T) {
	r := newLineReader(&chunkReader{chunks: []string{"1.25\r\n2.", "50\r\n\r\n  3.75 \n"}})
	lines, err := r.ReadLines(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"1.25", "2.50", "3.75"}
	if strings.Join(lines, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, lines)
	}
}

func TestReadLinesKeepsPartialLine(t *testing.T) {
	src := &chunkReader{chunks: []string{"1.0\n2.0"}}
	r := newLineReader(src)
	lines, err := r.ReadLines(10)
	if err != nil || len(lines) != 1 || lines[0] != "1.0" {
		t.Fatalf("expected [1.0], got %v (%v)", lines, err)
	}
	src.chunks = []string{"5\n"}
	lines, err = r.ReadLines(10)
	if err != nil || len(lines) != 1 || lines[0] != "2.05" {
		t.Fatalf("expected [2.05], got %v (%v)", lines, err)
	}
}

func TestReadLinesRespectsCap(t *testing.T) {
	src := &chunkReader{chunks: []string{"1\n2\n3\n4\n5\n"}}
	r := newLineReader(src)
	lines, _ := r.ReadLines(2)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	lines, _ = r.ReadLines(10)
	if strings.Join(lines, ",") != "3,4,5" {
		t.Fatalf("expected remaining lines from buffer, got %v", lines)
	}
}

func TestReadLinesBoundsReadCalls(t *testing.T) {
	chunks := make([]string, 100)
	for i := range chunks {
		chunks[i] = "x"
	}
	src := &chunkReader{chunks: chunks}
	r := newLineReader(src)
	if _, err := r.ReadLines(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.reads > 4 {
		t.Fatalf("expected at most 4 reads, got %d", src.reads)
	}
}

func TestReadLinesDropsInvalidUTF8(t *testing.T) {
	r := newLineReader(&chunkReader{chunks: []string{"1.5\xff\n"}})
	lines, err := r.ReadLines(1)
	if err != nil || len(lines) != 1 || lines[0] != "1.5" {
		t.Fatalf("expected [1.5], got %v (%v)", lines, err)
	}
}

func TestResyncDropsFirstFragment(t *testing.T) {
	r := newLineReader(&chunkReader{chunks: []string{".37\n4.00\n"}})
	r.resync()
	lines, err := r.ReadLines(10)
	if err != nil || len(lines) != 1 || lines[0] != "4.00" {
		t.Fatalf("expected [4.00], got %v (%v)", lines, err)
	}
}

func TestReadLinesReturnsLinesBeforeError(t *testing.T) {
	boom := errors.New("device unplugged")
	r := newLineReader(&chunkReader{chunks: []string{"1.0\n"}, err: boom})
	lines, err := r.ReadLines(10)
	if !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected buffered line to survive the error, got %v", lines)
	}
}

func TestReadLinesReportsOverlongLine(t *testing.T) {
	r := newLineReader(&chunkReader{chunks: []string{strings.Repeat("9", MaxLineLength+10)}})
	_, err := r.ReadLines(1)
	var overlong *OverlongLineError
	if !errors.As(err, &overlong) {
		t.Fatalf("expected OverlongLineError, got %v", err)
	}
	if len(r.pending) != 0 {
		t.Fatalf("expected pending bytes to be discarded, got %d", len(r.pending))
	}
}

func TestRSerialReadLinesLogsAndResyncs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	src := &chunkReader{chunks: []string{strings.Repeat("z", MaxLineLength+1), "tail\n", "2.5\n"}}
	r := &rserial{lines: newLineReader(src), logger: zap.New(core), portName: "test"}

	_, err := r.ReadLines(5)
	if err == nil {
		t.Fatalf("expected error for overlong line")
	}
	if logs.FilterMessage("[rserial] discarded unterminated line").Len() != 1 {
		t.Fatalf("expected overlong warning to be logged")
	}

	lines, err := r.ReadLines(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "2.5" {
		t.Fatalf("expected fragment to be dropped after resync, got %v", lines)
	}
}

func TestReadLinesDropsOverlongTerminatedLine(t *testing.T) {
	r := newLineReader(&chunkReader{chunks: []string{strings.Repeat("8", MaxLineLength+44) + "\n1.5\n"}})
	lines, err := r.ReadLines(5)
	var overlong *OverlongLineError
	if !errors.As(err, &overlong) || !overlong.Terminated {
		t.Fatalf("expected terminated OverlongLineError, got %v", err)
	}
	if len(lines) != 1 || lines[0] != "1.5" {
		t.Fatalf("expected only the short line, got %v", lines)
	}
}

func TestReadLinesKeepsLineAtMaxLength(t *testing.T) {
	full := strings.Repeat("7", MaxLineLength)
	r := newLineReader(&chunkReader{chunks: []string{full, "\r\n"}})
	lines, err := r.ReadLines(1)
	if err != nil || len(lines) != 1 || lines[0] != full {
		t.Fatalf("expected line of exactly %d bytes, got %d lines (%v)", MaxLineLength, len(lines), err)
	}
}

func TestRSerialTerminatedOverlongLineKeepsSync(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	src := &chunkReader{chunks: []string{strings.Repeat("z", MaxLineLength+45) + "\n2.5\n"}}
	r := &rserial{lines: newLineReader(src), logger: zap.New(core), portName: "test"}

	lines, err := r.ReadLines(5)
	if err == nil || len(lines) != 1 || lines[0] != "2.5" {
		t.Fatalf("expected [2.5] with an error, got %v (%v)", lines, err)
	}
	if logs.FilterMessage("[rserial] discarded overlong line").Len() != 1 {
		t.Fatalf("expected overlong warning to be logged")
	}

	src.chunks = []string{"3.5\n"}
	lines, err = r.ReadLines(5)
	if err != nil || len(lines) != 1 || lines[0] != "3.5" {
		t.Fatalf("expected next line to be kept without resync, got %v (%v)", lines, err)
	}
}

func TestRSerialLogsRepeatedReadErrorOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	src := &chunkReader{err: errors.New("device unplugged")}
	r := &rserial{lines: newLineReader(src), logger: zap.New(core), portName: "test"}

	for i := 0; i < 5; i++ {
		if _, err := r.ReadLines(3); err == nil {
			t.Fatalf("expected read error on call %d", i)
		}
	}
	if n := logs.FilterMessage("[rserial] error while reading lines from serial").Len(); n != 1 {
		t.Fatalf("expected one warning for a repeated error, got %d", n)
	}

	src.err = nil
	src.chunks = []string{"1.0\n"}
	if _, err := r.ReadLines(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.FilterMessage("[rserial] reads recovered").Len() != 1 {
		t.Fatalf("expected recovery to be logged")
	}

	src.err = errors.New("device unplugged")
	src.chunks = nil
	_, _ = r.ReadLines(3)
	if n := logs.FilterMessage("[rserial] error while reading lines from serial").Len(); n != 2 {
		t.Fatalf("expected the error to be logged again after recovery, got %d", n)
	}
}

var _ io.Reader = (*chunkReader)(nil)
