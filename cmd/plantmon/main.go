// Package main provides the CLI entrypoint for plantmon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"

	"sleepywoodpecker/plant-monitor/internal/config"
	"sleepywoodpecker/plant-monitor/internal/logger"
	"sleepywoodpecker/plant-monitor/internal/model"
	"sleepywoodpecker/plant-monitor/internal/processing"
	rserial "sleepywoodpecker/plant-monitor/internal/rSerial"
	"sleepywoodpecker/plant-monitor/internal/store"
	"sleepywoodpecker/plant-monitor/internal/tui"
)

const DEFAULT_PORT = "/dev/ttyACM0"
const BAUDRATE = 9600
const READ_TIMEOUT_MS = 100
const SETTLE_MS = 2000

// MAX_POINTS is the number of samples visible on the chart
const MAX_POINTS = 300
const TICK_INTERVAL_MS = 30
const MAX_LINES_PER_TICK = 10
const NOISE_THRESHOLD = 0.002
const BAND_LOW = 0.0
const BAND_HIGH = 5.0

var PRESET_LABELS = []string{"Fire Stimulus", "Cut Leaf", "Touch", "Lights Off", "Artifact"}

var (
	configPath string

	monitorPort      string
	monitorBaud      int
	monitorWindow    int
	monitorOutDir    string
	monitorAutoScale bool

	sessionsLast int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "plantmon",
		Short:        "Live serial voltage monitor and event recorder",
		SilenceUsage: true,
		RunE:         runMonitorCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file path")
	rootCmd.Flags().StringVar(&monitorPort, "port", DEFAULT_PORT, "serial port of the board")
	rootCmd.Flags().IntVar(&monitorBaud, "baud", BAUDRATE, "serial baud rate")
	rootCmd.Flags().IntVar(&monitorWindow, "window", MAX_POINTS, "number of samples on the chart")
	rootCmd.Flags().StringVar(&monitorOutDir, "out", config.DefaultOutputDir(), "directory for session CSV files")
	rootCmd.Flags().BoolVar(&monitorAutoScale, "auto-scale", false, "start with auto scaling enabled")

	rootCmd.AddCommand(newPortsCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runMonitorCmd(cmd *cobra.Command, _ []string) (err error) {
	// elapsed seconds in every CSV row count from here
	processStart := time.Now()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("plantmon needs an interactive terminal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// first initialize the main logger
	log, err := logger.NewLogger(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()
	log.Info("[main] starting", zap.String("portName", cfg.PortName), zap.Int("baudrate", cfg.BaudRate), zap.Int("window", cfg.Window))

	// the catalog is optional, acquisition runs without it
	var journal processing.Journal
	lastRunID := 0
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Warn("[main] session catalog unavailable", zap.Error(err), zap.String("dbPath", cfg.DBPath))
	} else {
		journal = st
		if lastRunID, err = st.LastRunID(ctx); err != nil {
			log.Warn("[main] could not read last run id", zap.Error(err))
			lastRunID = 0
		}
	}

	port, err := rserial.NewRSerial(cfg.PortName, cfg.BaudRate, cfg.ReadTimeout, cfg.SettleDelay, log)
	if err != nil {
		if st != nil {
			err = multierr.Append(err, st.Close())
		}
		return err
	}

	recorder := processing.NewRecorder(cfg.OutputDir, processStart, lastRunID)
	monitor := processing.NewMonitor(cfg, processStart, recorder, journal, log)

	defer func() {
		shutdownErr := multierr.Combine(monitor.Close(), port.Close())
		if st != nil {
			shutdownErr = multierr.Append(shutdownErr, st.Close())
		}
		if shutdownErr != nil {
			log.Error("[main] error during shutdown", zap.Error(shutdownErr))
		}
		log.Info("[main] stopped")
		err = multierr.Append(err, shutdownErr)
	}()

	ui := tui.NewModel(monitor, port, cfg.TickInterval, cfg.MaxLinesPerTick, log)
	program := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if isShutdownSignal(err) {
			log.Info("[main] received shutdown signal")
			return nil
		}
		log.Error("[main] TUI stopped with error", zap.Error(err))
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// isShutdownSignal reports whether the program stopped because of a signal or
// a cancelled context. A recovered panic is also reported as killed and is
// never a clean shutdown.
func isShutdownSignal(err error) bool {
	if errors.Is(err, tea.ErrProgramPanic) {
		return false
	}
	return errors.Is(err, tea.ErrProgramKilled) ||
		errors.Is(err, tea.ErrInterrupted) ||
		errors.Is(err, context.Canceled)
}

func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "port", &monitorPort, fileCfg.Serial.Port)
	applyIntConfig(cmd, "baud", &monitorBaud, fileCfg.Serial.Baud)
	applyIntConfig(cmd, "window", &monitorWindow, fileCfg.Monitor.Window)
	applyStringConfig(cmd, "out", &monitorOutDir, fileCfg.Record.OutputDir)
	applyBoolConfig(cmd, "auto-scale", &monitorAutoScale, fileCfg.Monitor.AutoScale)

	cfg := model.Config{
		PortName:        monitorPort,
		BaudRate:        monitorBaud,
		ReadTimeout:     READ_TIMEOUT_MS * time.Millisecond,
		SettleDelay:     SETTLE_MS * time.Millisecond,
		Window:          monitorWindow,
		TickInterval:    TICK_INTERVAL_MS * time.Millisecond,
		MaxLinesPerTick: MAX_LINES_PER_TICK,
		NoiseThreshold:  NOISE_THRESHOLD,
		BandLow:         BAND_LOW,
		BandHigh:        BAND_HIGH,
		AutoScale:       monitorAutoScale,
		Presets:         append([]string(nil), PRESET_LABELS...),
		OutputDir:       monitorOutDir,
		DBPath:          config.DefaultDBPath(),
		LogPath:         config.DefaultLogPath(),
	}

	if v := fileCfg.Serial.ReadTimeoutMs; v != nil {
		cfg.ReadTimeout = time.Duration(*v) * time.Millisecond
	}
	if v := fileCfg.Serial.SettleMs; v != nil {
		cfg.SettleDelay = time.Duration(*v) * time.Millisecond
	}
	if v := fileCfg.Monitor.IntervalMs; v != nil {
		cfg.TickInterval = time.Duration(*v) * time.Millisecond
	}
	if v := fileCfg.Monitor.MaxLines; v != nil {
		cfg.MaxLinesPerTick = *v
	}
	if v := fileCfg.Monitor.NoiseThreshold; v != nil {
		cfg.NoiseThreshold = *v
	}
	if v := fileCfg.Monitor.BandLow; v != nil {
		cfg.BandLow = *v
	}
	if v := fileCfg.Monitor.BandHigh; v != nil {
		cfg.BandHigh = *v
	}
	if v := fileCfg.Monitor.Presets; v != nil {
		cfg.Presets = append([]string(nil), (*v)...)
	}
	return cfg, nil
}

func validateConfig(cfg model.Config) error {
	if strings.TrimSpace(cfg.PortName) == "" {
		return fmt.Errorf("--port must not be empty")
	}
	if cfg.BaudRate <= 0 {
		return fmt.Errorf("--baud must be > 0")
	}
	if cfg.Window < 2 {
		return fmt.Errorf("--window must be >= 2")
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read-timeout-ms must be > 0")
	}
	if cfg.SettleDelay < 0 {
		return fmt.Errorf("settle-ms must be >= 0")
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("interval-ms must be > 0")
	}
	if cfg.MaxLinesPerTick <= 0 {
		return fmt.Errorf("max-lines must be > 0")
	}
	if cfg.NoiseThreshold < 0 {
		return fmt.Errorf("noise-threshold must be >= 0")
	}
	if cfg.BandHigh <= cfg.BandLow {
		return fmt.Errorf("band-high must be greater than band-low")
	}
	if len(cfg.Presets) > 9 {
		return fmt.Errorf("at most 9 presets are supported, got %d", len(cfg.Presets))
	}
	for i, label := range cfg.Presets {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("preset %d must not be empty", i+1)
		}
	}
	return nil
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE:  runPortsCmd,
	}
}

func runPortsCmd(cmd *cobra.Command, _ []string) error {
	ports, err := rserial.ListPorts()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		logErrln("No serial ports found.")
		return nil
	}
	for _, p := range ports {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions and their events",
		Args:  cobra.NoArgs,
		RunE:  runSessionsCmd,
	}
	cmd.Flags().IntVar(&sessionsLast, "last", 0, "limit to last N sessions")
	return cmd
}

func runSessionsCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	sessions, err := st.ListSessions(cmd.Context(), sessionsLast)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		logErrln("No sessions recorded yet.")
	} else if err := writeSessions(cmd.OutOrStdout(), sessions); err != nil {
		return err
	}

	loose, err := st.ListEvents(cmd.Context(), 0)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	if len(loose) == 0 {
		return nil
	}
	return writeSessions(cmd.OutOrStdout(), []model.SessionSummary{{
		Session: model.Session{Filename: "(not recording)"},
		Events:  loose,
	}})
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}
