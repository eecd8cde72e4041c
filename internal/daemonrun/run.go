// Package daemonrun hosts the process-level entrypoint for "journaltail run".
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"journaltail/internal/config"
	"journaltail/internal/daemon"
	"journaltail/internal/logging"
	"journaltail/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel      string
	LogFormat     string
	PIDFile       string
	SkipPreflight bool
	DaemonOptions []daemon.Option
}

// ErrPreflight reports that a required preflight check failed.
var ErrPreflight = errors.New("preflight checks failed")

// Run starts the tailer and blocks until SIGINT/SIGTERM, cancellation of
// cmdCtx, or a fatal tail loop error.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	logger.Info("journaltail starting",
		logging.String(logging.FieldEventType, "startup"),
		logging.String("journal_path", cfg.Journal.Path),
		logging.Int("journal_flags", cfg.Journal.Flags),
		logging.String("seekto", cfg.Journal.SeekTo),
		logging.Bool("thisboot", cfg.Journal.ThisBoot),
		logging.String("sincedb", cfg.Sincedb.Path),
		logging.Int("write_interval", cfg.Sincedb.WriteInterval),
		logging.String("output", cfg.Output.Kind))

	if !opts.SkipPreflight {
		if err := runPreflight(signalCtx, cfg, logger); err != nil {
			return err
		}
	}

	if opts.PIDFile != "" {
		if err := writePIDFile(opts.PIDFile); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer os.Remove(opts.PIDFile)
	}

	daemonOpts := append([]daemon.Option{daemon.WithRunID(runID)}, opts.DaemonOptions...)
	d, err := daemon.New(cfg, logger, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "run 'journaltail check' to diagnose"))
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("journaltail shutting down")
	case <-d.Done():
	}

	stopErr := d.Stop()
	if loopErr := d.Err(); loopErr != nil {
		return errors.Join(loopErr, stopErr)
	}
	return stopErr
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.LogLevel == "" && opts.LogFormat == "" {
		return logging.NewFromConfig(cfg)
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	format := cfg.Logging.Format
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}
	outputs := []string{"stderr"}
	if file := strings.TrimSpace(cfg.Logging.File); file != "" {
		outputs = append(outputs, file)
	}
	return logging.New(logging.Options{Level: level, Format: format, OutputPaths: outputs})
}

func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("optional", r.Optional),
			logging.String(logging.FieldErrorHint, "run 'journaltail check' for the full report"),
			logging.String(logging.FieldImpact, "journaltail will not start"))
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, r := range failed {
			names = append(names, r.Name)
		}
		return fmt.Errorf("%w: %s", ErrPreflight, strings.Join(names, ", "))
	}
	return nil
}

func writePIDFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
