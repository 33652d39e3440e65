package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sleepywoodpecker/plant-monitor/internal/model"
)

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	quoted := make([]string, len(PRESET_LABELS))
	for i, label := range PRESET_LABELS {
		quoted[i] = fmt.Sprintf("%q", label)
	}
	return fmt.Sprintf(`# plantmon configuration
# Uncomment a value to enable it. CLI flags override config values.

[serial]
# port = %q       # Serial device of the board
# baud = %d              # Baud rate
# read-timeout-ms = %d    # Per-read timeout
# settle-ms = %d         # Wait after opening, the board resets on connect

[monitor]
# window = %d             # Samples visible on the chart
# interval-ms = %d         # Tick interval
# max-lines = %d           # Lines drained per tick
# noise-threshold = %g  # Trend step threshold in volts
# band-low = %.1f           # Fixed display band, volts
# band-high = %.1f
# auto-scale = false
# presets = [%s]

[record]
# out = "."               # Directory for Run_NN_HHMMSS.csv files
`,
		DEFAULT_PORT,
		BAUDRATE,
		READ_TIMEOUT_MS,
		SETTLE_MS,
		MAX_POINTS,
		TICK_INTERVAL_MS,
		MAX_LINES_PER_TICK,
		NOISE_THRESHOLD,
		BAND_LOW,
		BAND_HIGH,
		strings.Join(quoted, ", "),
	)
}

func writeSessions(w io.Writer, sessions []model.SessionSummary) error {
	for _, s := range sessions {
		ended := "open"
		if !s.EndedAt.IsZero() {
			ended = s.EndedAt.Local().Format(time.DateTime)
		}
		if _, err := fmt.Fprintf(w, "Run %02d  %s  %s -> %s  %d rows\n",
			s.RunID, s.Filename, s.StartedAt.Local().Format(time.DateTime), ended, s.Rows); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		for _, e := range s.Events {
			if _, err := fmt.Fprintf(w, "    %s  t=%.3fs  %gV  %s\n",
				e.At.Local().Format("15:04:05.000"), e.ElapsedSec, e.Voltage, e.Label); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
