package testsupport

import (
	"context"
	"sync"

	"journaltail/internal/tail"
)

// RecordingSink keeps every delivered record in memory.
type RecordingSink struct {
	mu      sync.Mutex
	records []tail.Record
	err     error
	closed  bool
}

// Deliver stores rec, or returns the error configured with FailWith.
func (s *RecordingSink) Deliver(_ context.Context, rec tail.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

// FailWith makes subsequent deliveries fail with err.
func (s *RecordingSink) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Records returns a snapshot of delivered records.
func (s *RecordingSink) Records() []tail.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tail.Record(nil), s.records...)
}

// Len returns the number of delivered records.
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close marks the sink closed.
func (s *RecordingSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *RecordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
