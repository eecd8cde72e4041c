package sincedb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"journaltail/internal/logging"
)

// DefaultInterval is the checkpoint period used when none is configured.
const DefaultInterval = 15 * time.Second

// Scheduler periodically persists the store's cursor when it changed.
// It never performs the final shutdown flush.
type Scheduler struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler builds a scheduler for store. A non-positive interval falls
// back to DefaultInterval.
func NewScheduler(store *Store, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store:    store,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "sincedb-scheduler"),
	}
}

// Start launches the ticker goroutine. Calling Start on a running scheduler
// does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(loopCtx)
}

// Stop halts the ticker and waits for the goroutine to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	wrote, err := s.store.FlushIfChanged()
	if err != nil {
		logging.WarnWithContext(s.logger, "sincedb checkpoint failed", "sincedb_write_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, s.store.Path()),
			logging.String(logging.FieldErrorHint, "check that the sincedb directory is writable"),
			logging.String(logging.FieldImpact, "a restart may re-deliver entries read since the last checkpoint"))
		return
	}
	if wrote {
		s.logger.Debug("sincedb checkpoint written",
			logging.String(logging.FieldCursor, string(s.store.Persisted())))
	}
}
