package tail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"journaltail/internal/journal"
	"journaltail/internal/logging"
	"journaltail/internal/sincedb"
)

// DefaultWaitTimeout bounds each journal wait so cancellation is observed.
const DefaultWaitTimeout = time.Second

// Deliverer receives normalized records.
type Deliverer interface {
	Deliver(ctx context.Context, rec Record) error
}

// CursorAdvancer records the position of the last delivered entry.
type CursorAdvancer interface {
	Advance(c sincedb.Cursor)
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	Reader      journal.Reader
	Cursor      CursorAdvancer
	Sink        Deliverer
	Names       *PrettyNames
	PrettyKeys  bool
	Hostname    string
	WaitTimeout time.Duration
	Logger      *slog.Logger
}

// Loop reads entries and delivers them until cancelled.
type Loop struct {
	reader      journal.Reader
	cursor      CursorAdvancer
	sink        Deliverer
	names       *PrettyNames
	pretty      bool
	hostname    string
	waitTimeout time.Duration
	logger      *slog.Logger

	delivered atomic.Uint64
	lastTS    atomic.Uint64
}

// NewLoop validates opts and resolves the fallback hostname once.
func NewLoop(opts LoopOptions) (*Loop, error) {
	if opts.Reader == nil {
		return nil, errors.New("tail loop requires a journal reader")
	}
	if opts.Cursor == nil {
		return nil, errors.New("tail loop requires a cursor store")
	}
	if opts.Sink == nil {
		return nil, errors.New("tail loop requires a sink")
	}
	logger := logging.NewComponentLogger(opts.Logger, "tail")

	hostname := opts.Hostname
	if hostname == "" {
		name, err := os.Hostname()
		if err != nil {
			logging.WarnWithContext(logger, "hostname lookup failed", "hostname_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check /etc/hostname"),
				logging.String(logging.FieldImpact, "records without _HOSTNAME use \"localhost\""))
			name = "localhost"
		}
		hostname = name
	}
	names := opts.Names
	if names == nil {
		names = DefaultPrettyNames()
	}
	wait := opts.WaitTimeout
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}

	return &Loop{
		reader:      opts.Reader,
		cursor:      opts.Cursor,
		sink:        opts.Sink,
		names:       names,
		pretty:      opts.PrettyKeys,
		hostname:    hostname,
		waitTimeout: wait,
		logger:      logger,
	}, nil
}

// Delivered returns the number of records handed to the sink.
func (l *Loop) Delivered() uint64 { return l.delivered.Load() }

// LastTimestamp returns the realtime timestamp of the last delivered entry.
func (l *Loop) LastTimestamp() uint64 { return l.lastTS.Load() }

// Run blocks until ctx is cancelled or the reader or sink fails. Cancellation
// returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("tail loop started", logging.Duration("wait_timeout", l.waitTimeout))
	for {
		if ctx.Err() != nil {
			return nil
		}

		moved, err := l.reader.Next()
		if err != nil {
			return fmt.Errorf("journal next: %w", err)
		}
		if !moved {
			event, err := l.reader.Wait(l.waitTimeout)
			if err != nil {
				return fmt.Errorf("journal wait: %w", err)
			}
			if event == journal.WaitInvalidate {
				l.logger.Debug("journal files changed")
			}
			continue
		}

		if err := l.deliverCurrent(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}
	}
}

func (l *Loop) deliverCurrent(ctx context.Context) error {
	entry, err := l.reader.Entry()
	if err != nil {
		return fmt.Errorf("read journal entry: %w", err)
	}
	cursor, err := l.reader.Cursor()
	if err != nil {
		return fmt.Errorf("read journal cursor: %w", err)
	}

	rec := NewEntryAdapter(entry, l.names).ToRecord(l.pretty)
	rec[KeyTimestamp] = entry.RealtimeTimestamp
	if host, ok := entry.Hostname(); ok {
		rec[KeyHost] = host
	} else {
		rec[KeyHost] = l.hostname
	}
	rec[KeyCursor] = cursor

	if errs, ok := rec[KeyEncodingErrors].([]string); ok {
		logging.WarnWithContext(l.logger, "journal fields were not valid text", "record_encoding_failed",
			logging.String(logging.FieldCursor, cursor),
			logging.Any("fields", errs),
			logging.String(logging.FieldErrorHint, "inspect the entry with journalctl --cursor"),
			logging.String(logging.FieldImpact, "affected field values contain replacement characters"))
	}

	if err := l.sink.Deliver(ctx, rec); err != nil {
		return fmt.Errorf("deliver record: %w", err)
	}
	l.cursor.Advance(sincedb.Cursor(cursor))
	l.delivered.Add(1)
	l.lastTS.Store(entry.RealtimeTimestamp)
	return nil
}
