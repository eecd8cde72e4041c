package testsupport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"journaltail/internal/journal"
)

// DefaultBootID is the boot id a MemoryJournal starts with.
const DefaultBootID = "0a1b2c3d4e5f40718293a4b5c6d7e8f9"

// ErrClosed is returned by MemoryJournal operations after Close.
var ErrClosed = errors.New("memory journal closed")

// MemoryJournal is an in-process journal.Reader. Entries get strictly
// increasing cursors. Positioning follows sd-journal: SeekCursor followed by
// Next lands on the cursor's own entry, a cursor from this journal whose
// entry was vacuumed lands on the nearest later entry, and Next straight
// after SeekTail without a successful Previous starts over from the head.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	bootID  string
	clock   uint64
	notify  chan struct{}

	next        int
	cur         int
	tailPending bool
	seen        int
	matches     []map[string][]string
	closed      bool
	nextErr     error
}

// NewMemoryJournal returns an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		bootID: DefaultBootID,
		clock:  uint64(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMicro()),
		notify: make(chan struct{}),
		cur:    -1,
	}
}

// Append adds an entry and wakes waiters. _BOOT_ID and _HOSTNAME default to
// the current boot and "memhost". It returns the new entry's cursor.
func (m *MemoryJournal) Append(fields map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make(map[string]string, len(fields)+2)
	for k, v := range fields {
		copied[k] = v
	}
	if _, ok := copied[journal.FieldBootID]; !ok {
		copied[journal.FieldBootID] = m.bootID
	}
	if _, ok := copied[journal.FieldHostname]; !ok {
		copied[journal.FieldHostname] = "memhost"
	}
	m.clock += 1000
	seq := uint64(1)
	if n := len(m.entries); n > 0 {
		seq = entrySeq(m.entries[n-1]) + 1
	}
	cursor := fmt.Sprintf("%s%016x;b=%s;t=%x", cursorPrefix, seq, m.bootID, m.clock)
	m.entries = append(m.entries, journal.Entry{
		Fields:            copied,
		RealtimeTimestamp: m.clock,
		Cursor:            cursor,
	})

	close(m.notify)
	m.notify = make(chan struct{})
	return cursor
}

// AppendMessage appends an entry carrying only MESSAGE.
func (m *MemoryJournal) AppendMessage(msg string) string {
	return m.Append(map[string]string{journal.FieldMessage: msg})
}

// Vacuum drops the n oldest entries, as journal rotation does. Cursors of
// the remaining entries stay valid. The read position is reset.
func (m *MemoryJournal) Vacuum(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.entries) {
		n = len(m.entries)
	}
	m.entries = append([]journal.Entry(nil), m.entries[n:]...)
	m.next, m.cur, m.tailPending = 0, -1, false
}

// Reboot switches the boot id stamped on subsequent entries.
func (m *MemoryJournal) Reboot(bootID string) {
	m.mu.Lock()
	m.bootID = bootID
	m.mu.Unlock()
}

// Len returns the number of stored entries.
func (m *MemoryJournal) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Cursors returns every cursor in append order.
func (m *MemoryJournal) Cursors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Cursor
	}
	return out
}

// FailNext makes every following Next call return err.
func (m *MemoryJournal) FailNext(err error) {
	m.mu.Lock()
	m.nextErr = err
	m.mu.Unlock()
}

// Closed reports whether Close was called.
func (m *MemoryJournal) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reopen returns a fresh reader over a copy of the entries, as a restarted
// process would see them. Later appends go to the returned journal only.
func (m *MemoryJournal) Reopen() *MemoryJournal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &MemoryJournal{
		entries: append([]journal.Entry(nil), m.entries...),
		bootID:  m.bootID,
		clock:   m.clock,
		notify:  make(chan struct{}),
		cur:     -1,
	}
}

func (m *MemoryJournal) SeekHead() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.next, m.cur, m.tailPending = 0, -1, false
	return nil
}

func (m *MemoryJournal) SeekTail() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.next, m.cur, m.tailPending = len(m.entries), -1, true
	return nil
}

func (m *MemoryJournal) SeekCursor(cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for i, e := range m.entries {
		if e.Cursor == cursor {
			m.next, m.cur, m.tailPending = i, -1, false
			return nil
		}
	}
	want, ok := parseSeq(cursor)
	if !ok {
		return fmt.Errorf("seek cursor %q: invalid argument", cursor)
	}
	m.next, m.cur, m.tailPending = len(m.entries), -1, false
	for i, e := range m.entries {
		if entrySeq(e) > want {
			m.next = i
			break
		}
	}
	return nil
}

func (m *MemoryJournal) Next() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	if m.nextErr != nil {
		return false, m.nextErr
	}
	if m.tailPending {
		m.next, m.tailPending = 0, false
	}
	for i := m.next; i < len(m.entries); i++ {
		if m.matchLocked(m.entries[i]) {
			m.cur, m.next = i, i+1
			return true, nil
		}
	}
	m.next = len(m.entries)
	return false, nil
}

func (m *MemoryJournal) Previous() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	start := m.next
	if m.cur >= 0 {
		start = m.cur
	}
	for i := start - 1; i >= 0; i-- {
		if m.matchLocked(m.entries[i]) {
			m.cur, m.next, m.tailPending = i, i+1, false
			return true, nil
		}
	}
	return false, nil
}

// Wait returns WaitAppend as soon as entries were appended since the last
// Wait, or WaitNop after timeout.
func (m *MemoryJournal) Wait(timeout time.Duration) (journal.WaitEvent, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return journal.WaitNop, ErrClosed
	}
	if len(m.entries) > m.seen {
		m.seen = len(m.entries)
		m.mu.Unlock()
		return journal.WaitAppend, nil
	}
	notify := m.notify
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-notify:
		m.mu.Lock()
		m.seen = len(m.entries)
		m.mu.Unlock()
		return journal.WaitAppend, nil
	case <-timer.C:
		return journal.WaitNop, nil
	}
}

func (m *MemoryJournal) Entry() (journal.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur < 0 {
		return journal.Entry{}, errors.New("no current entry")
	}
	e := m.entries[m.cur]
	fields := make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	e.Fields = fields
	return e, nil
}

func (m *MemoryJournal) Cursor() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur < 0 {
		return "", errors.New("no current entry")
	}
	return m.entries[m.cur].Cursor, nil
}

// AddMatch adds field=value to the current match group. Values for the same
// field within a group are alternatives.
func (m *MemoryJournal) AddMatch(field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if field == "" {
		return errors.New("add match: empty field")
	}
	if len(m.matches) == 0 {
		m.matches = append(m.matches, map[string][]string{})
	}
	group := m.matches[len(m.matches)-1]
	group[field] = append(group[field], value)
	return nil
}

// AddConjunction starts a new match group; every group must match.
func (m *MemoryJournal) AddConjunction() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.matches) > 0 && len(m.matches[len(m.matches)-1]) > 0 {
		m.matches = append(m.matches, map[string][]string{})
	}
	return nil
}

func (m *MemoryJournal) FlushMatches() {
	m.mu.Lock()
	m.matches = nil
	m.mu.Unlock()
}

// Matches returns the active match groups rendered as FIELD=value strings.
func (m *MemoryJournal) Matches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]string
	for _, group := range m.matches {
		if len(group) == 0 {
			continue
		}
		var terms []string
		for field, values := range group {
			for _, v := range values {
				terms = append(terms, journal.MatchString(field, v))
			}
		}
		out = append(out, terms)
	}
	return out
}

func (m *MemoryJournal) BootID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bootID, nil
}

func (m *MemoryJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryJournal) matchLocked(e journal.Entry) bool {
	for _, group := range m.matches {
		for field, values := range group {
			got, ok := e.Fields[field]
			if !ok {
				return false
			}
			found := false
			for _, v := range values {
				if v == got {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

var _ journal.Reader = (*MemoryJournal)(nil)

const cursorPrefix = "s=memjournal;i="

func entrySeq(e journal.Entry) uint64 {
	seq, _ := parseSeq(e.Cursor)
	return seq
}

// parseSeq extracts the sequence number from a cursor minted by a
// MemoryJournal.
func parseSeq(cursor string) (uint64, bool) {
	rest, ok := strings.CutPrefix(cursor, cursorPrefix)
	if !ok {
		return 0, false
	}
	hex, _, _ := strings.Cut(rest, ";")
	seq, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
