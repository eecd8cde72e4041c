package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"journaltail/internal/config"
	"journaltail/internal/logging"
	"journaltail/internal/tail"
)

// Sink accepts records in delivery order. Deliver returns only after the
// record has been handed to the destination.
type Sink interface {
	Deliver(ctx context.Context, rec tail.Record) error
	Close() error
}

// Open builds the sink selected by cfg. With cfg.Tee set the selected sink
// is paired with stdout in a Fanout.
func Open(ctx context.Context, cfg config.Output, logger *slog.Logger) (Sink, error) {
	logger = logging.NewComponentLogger(logger, "sink")
	primary, err := openPrimary(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if !cfg.Tee || cfg.Kind == "" || cfg.Kind == config.OutputStdout {
		return primary, nil
	}
	logger.Info("records also go to stdout")
	return Fanout{primary, NewWriter(os.Stdout)}, nil
}

func openPrimary(ctx context.Context, cfg config.Output, logger *slog.Logger) (Sink, error) {
	switch cfg.Kind {
	case "", config.OutputStdout:
		logger.Debug("records go to stdout")
		return NewWriter(os.Stdout), nil
	case config.OutputFile:
		s, err := OpenFile(cfg.Path, cfg.Compress == config.CompressZstd)
		if err != nil {
			return nil, err
		}
		logger.Info("records go to file",
			logging.String(logging.FieldPath, cfg.Path),
			logging.String("compress", cfg.Compress))
		return s, nil
	case config.OutputSQLite:
		archive, err := OpenArchive(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("records go to sqlite archive", logging.String(logging.FieldPath, cfg.Path))
		return archive, nil
	default:
		return nil, fmt.Errorf("unsupported output kind %q", cfg.Kind)
	}
}

// Fanout delivers every record to each sink in order and stops at the first
// failure.
type Fanout []Sink

func (f Fanout) Deliver(ctx context.Context, rec tail.Record) error {
	for _, s := range f {
		if err := s.Deliver(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
