package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"journaltail/internal/config"
	"journaltail/internal/journal"
	"journaltail/internal/logging"
	"journaltail/internal/sincedb"
	"journaltail/internal/sink"
	"journaltail/internal/tail"
)

// ReaderOpener opens the journal reader.
type ReaderOpener func(journal.OpenOptions) (journal.Reader, error)

// SinkOpener builds the record sink.
type SinkOpener func(context.Context, config.Output, *slog.Logger) (sink.Sink, error)

// Option customizes a Daemon.
type Option func(*Daemon)

// WithReaderOpener replaces the sd-journal reader.
func WithReaderOpener(open ReaderOpener) Option {
	return func(d *Daemon) { d.openReader = open }
}

// WithSinkOpener replaces the configured sink.
func WithSinkOpener(open SinkOpener) Option {
	return func(d *Daemon) { d.openSink = open }
}

// WithRunID tags status output and logs with id.
func WithRunID(id string) Option {
	return func(d *Daemon) { d.runID = id }
}

// WithHostname overrides the fallback host used for entries without _HOSTNAME.
func WithHostname(name string) Option {
	return func(d *Daemon) { d.hostname = name }
}

// Daemon owns the tailer's components and their shutdown order.
type Daemon struct {
	cfg        *config.Config
	base       *slog.Logger
	logger     *slog.Logger
	openReader ReaderOpener
	openSink   SinkOpener
	runID      string
	hostname   string

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	errMu   sync.Mutex
	loopErr error

	store     *sincedb.Store
	scheduler *sincedb.Scheduler
	reader    journal.Reader
	sink      sink.Sink
	loop      *tail.Loop
	plan      tail.Plan
	api       *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool      `json:"running"`
	RunID            string    `json:"run_id,omitempty"`
	Plan             tail.Plan `json:"plan"`
	PlanDescription  string    `json:"plan_description,omitempty"`
	CurrentCursor    string    `json:"current_cursor"`
	PersistedCursor  string    `json:"persisted_cursor"`
	RecordsDelivered uint64    `json:"records_delivered"`
	LastTimestamp    uint64    `json:"last_timestamp,omitempty"`
	SincedbPath      string    `json:"sincedb_path"`
	StartedAt        time.Time `json:"started_at,omitzero"`
}

// New constructs a daemon. Nothing is opened until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:        cfg,
		base:       logger,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		openReader: journal.Open,
		openSink:   sink.Open,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start opens the sincedb, positions the reader and launches the loop and
// checkpoint scheduler.
func (d *Daemon) Start(ctx context.Context) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	var cleanup []func()
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
			d.store, d.reader, d.sink, d.loop, d.scheduler, d.api = nil, nil, nil, nil, nil, nil
		}
	}()

	store, err := sincedb.Open(d.cfg.Sincedb.Path, d.base)
	if err != nil {
		return fmt.Errorf("open sincedb: %w", err)
	}
	cleanup = append(cleanup, func() { _ = store.Close() })
	d.store = store

	reader, err := d.openReader(journal.OpenOptions{
		Path:  d.cfg.Journal.Path,
		Flags: journal.Flags(d.cfg.Journal.Flags),
	})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	cleanup = append(cleanup, func() { _ = reader.Close() })
	d.reader = reader

	planner := tail.NewPlanner(tail.PlannerOptions{
		SeekTo:   d.cfg.Journal.SeekTo,
		ThisBoot: d.cfg.Journal.ThisBoot,
		Filter:   d.cfg.Journal.Filter,
	}, d.base)
	plan, err := planner.Apply(reader, store.Current())
	if err != nil {
		if errors.Is(err, tail.ErrStaleCursor) {
			logging.ErrorWithContext(d.logger, "saved cursor rejected by journal", "stale_cursor",
				logging.String(logging.FieldCursor, string(store.Current())),
				logging.String(logging.FieldPath, store.Path()),
				logging.String(logging.FieldErrorHint, "run 'journaltail cursor reset' to start from the configured seekto"),
				logging.Error(err))
		}
		return fmt.Errorf("position journal: %w", err)
	}
	d.plan = plan

	out, err := d.openSink(ctx, d.cfg.Output, d.base)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	cleanup = append(cleanup, func() { _ = out.Close() })
	d.sink = out

	loop, err := tail.NewLoop(tail.LoopOptions{
		Reader:      reader,
		Cursor:      store,
		Sink:        out,
		PrettyKeys:  d.cfg.Journal.PrettyKeys,
		Hostname:    d.hostname,
		WaitTimeout: d.cfg.WaitTimeoutDuration(),
		Logger:      d.base,
	})
	if err != nil {
		return fmt.Errorf("create tail loop: %w", err)
	}
	d.loop = loop

	api, err := newAPIServer(d.cfg, d, d.base)
	if err != nil {
		return err
	}
	if err := api.start(); err != nil {
		return err
	}
	cleanup = append(cleanup, api.stop)
	d.api = api

	d.scheduler = sincedb.NewScheduler(store, d.cfg.WriteIntervalDuration(), d.base)
	d.scheduler.Start(ctx)

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.errMu.Lock()
	d.loopErr = nil
	d.errMu.Unlock()
	d.startedAt = time.Now().UTC()
	go d.runLoop(loopCtx, loop, d.done)

	d.running.Store(true)
	d.logger.Info("journaltail started",
		logging.String("plan", plan.Describe()),
		logging.String(logging.FieldPath, store.Path()),
		logging.String("output", d.cfg.Output.Kind))
	return nil
}

func (d *Daemon) runLoop(ctx context.Context, loop *tail.Loop, done chan struct{}) {
	defer close(done)
	if err := loop.Run(ctx); err != nil {
		logging.ErrorWithContext(d.logger, "tail loop stopped", "tail_loop_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal access and the output destination"))
		d.errMu.Lock()
		d.loopErr = err
		d.errMu.Unlock()
	}
}

// Done is closed when the tail loop exits, either after Stop or on failure.
// It returns nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err returns the error that ended the tail loop, if any.
func (d *Daemon) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.loopErr
}

// Stop halts the loop, persists the final cursor and releases every
// resource. It is a no-op when the daemon is not running.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return nil
	}
	api := d.api
	d.mu.Unlock()

	// In-flight status requests take d.mu.
	api.stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return nil
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
	}
	d.scheduler.Stop()

	var errs []error
	if err := d.store.Flush(); err != nil {
		logging.ErrorWithContext(d.logger, "final sincedb flush failed", "sincedb_final_flush_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, d.store.Path()),
			logging.String(logging.FieldErrorHint, "entries since the last checkpoint will be re-delivered on restart"))
		errs = append(errs, fmt.Errorf("final flush: %w", err))
	}
	if err := d.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close journal: %w", err))
	}
	if err := d.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}
	cursor := d.store.Persisted()
	if err := d.store.Close(); err != nil {
		errs = append(errs, err)
	}

	d.running.Store(false)
	d.logger.Info("journaltail stopped",
		logging.String(logging.FieldCursor, string(cursor)),
		logging.Uint64("records_delivered", d.loop.Delivered()))
	return errors.Join(errs...)
}

// Close is an alias for Stop.
func (d *Daemon) Close() error {
	return d.Stop()
}

// APIAddress returns the bound status API address, or "" when disabled.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := Status{
		Running:     d.running.Load(),
		RunID:       d.runID,
		Plan:        d.plan,
		SincedbPath: d.cfg.Sincedb.Path,
		StartedAt:   d.startedAt,
	}
	if d.store != nil {
		status.CurrentCursor = string(d.store.Current())
		status.PersistedCursor = string(d.store.Persisted())
		status.PlanDescription = d.plan.Describe()
	}
	if d.loop != nil {
		status.RecordsDelivered = d.loop.Delivered()
		status.LastTimestamp = d.loop.LastTimestamp()
	}
	return status
}
