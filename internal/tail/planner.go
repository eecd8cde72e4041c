package tail

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"journaltail/internal/journal"
	"journaltail/internal/logging"
	"journaltail/internal/sincedb"
)

// ErrStaleCursor is returned when the saved cursor cannot be located in the
// journal. Clearing the sincedb restarts from the configured seek position.
var ErrStaleCursor = errors.New("saved cursor is not valid for this journal")

// State describes how the reader was positioned.
type State int

const (
	// StateFresh means no cursor was saved; seekto decides the start.
	StateFresh State = iota
	// StateResuming means reading continues after the saved cursor.
	StateResuming
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateResuming:
		return "resuming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Seek positions for a fresh start.
const (
	SeekHead = "head"
	SeekTail = "tail"
)

// Plan records the positioning decision for logging and status output.
type Plan struct {
	State    State             `json:"state"`
	SeekTo   string            `json:"seekto,omitempty"`
	Cursor   sincedb.Cursor    `json:"cursor,omitempty"`
	Filter   map[string]string `json:"filter,omitempty"`
	BootID   string            `json:"boot_id,omitempty"`
	Position string            `json:"position,omitempty"`
}

// Describe renders the plan as a short human readable phrase.
func (p Plan) Describe() string {
	switch p.State {
	case StateResuming:
		return "resuming after saved cursor"
	default:
		if p.SeekTo == SeekHead {
			return "fresh start from head"
		}
		return "fresh start from tail"
	}
}

// PlannerOptions carries the fresh-start settings.
type PlannerOptions struct {
	SeekTo   string
	ThisBoot bool
	Filter   map[string]string
}

// Planner positions a reader once at startup.
type Planner struct {
	opts   PlannerOptions
	logger *slog.Logger
}

// NewPlanner returns a planner. An empty SeekTo defaults to tail.
func NewPlanner(opts PlannerOptions, logger *slog.Logger) *Planner {
	if opts.SeekTo == "" {
		opts.SeekTo = SeekTail
	}
	return &Planner{opts: opts, logger: logging.NewComponentLogger(logger, "planner")}
}

// Apply positions reader according to saved. The first Next call after
// Apply returns the first entry that should be delivered.
func (p *Planner) Apply(reader journal.Reader, saved sincedb.Cursor) (Plan, error) {
	if !saved.IsEmpty() {
		return p.resume(reader, saved)
	}
	return p.fresh(reader)
}

func (p *Planner) resume(reader journal.Reader, saved sincedb.Cursor) (Plan, error) {
	plan := Plan{State: StateResuming, Cursor: saved}
	reader.FlushMatches()
	if err := reader.SeekCursor(string(saved)); err != nil {
		return plan, fmt.Errorf("%w: %v", ErrStaleCursor, err)
	}
	moved, err := reader.Next()
	if err != nil {
		return plan, fmt.Errorf("step past saved cursor: %w", err)
	}
	if !moved {
		plan.Position = "end of journal"
		p.logger.Info("resuming from saved cursor", logging.String(logging.FieldCursor, string(saved)))
		return plan, nil
	}

	landed, err := reader.Cursor()
	if err != nil {
		return plan, fmt.Errorf("read resume cursor: %w", err)
	}
	if landed == string(saved) {
		plan.Position = "after cursor"
		p.logger.Info("resuming from saved cursor", logging.String(logging.FieldCursor, string(saved)))
		return plan, nil
	}

	// The saved entry is gone and the reader already sits on the oldest
	// surviving entry. Re-seek so the loop's first Next delivers it.
	if err := reader.SeekCursor(landed); err != nil {
		return plan, fmt.Errorf("seek nearest entry: %w", err)
	}
	logging.WarnWithContext(p.logger, "saved cursor not found, resuming from nearest entry", "resume_cursor_mismatch",
		logging.String(logging.FieldCursor, string(saved)),
		logging.String("landed_cursor", landed),
		logging.String(logging.FieldErrorHint, "journal files may have been rotated or vacuumed"),
		logging.String(logging.FieldImpact, "entries removed before this run cannot be delivered"))
	plan.Position = "nearest entry"
	return plan, nil
}

func (p *Planner) fresh(reader journal.Reader) (Plan, error) {
	plan := Plan{State: StateFresh, SeekTo: p.opts.SeekTo, Filter: copyFilter(p.opts.Filter)}

	reader.FlushMatches()
	if err := p.applyFilter(reader, &plan); err != nil {
		return plan, err
	}

	switch p.opts.SeekTo {
	case SeekHead:
		if err := reader.SeekHead(); err != nil {
			return plan, fmt.Errorf("seek head: %w", err)
		}
		plan.Position = "head"
	case SeekTail:
		if err := reader.SeekTail(); err != nil {
			return plan, fmt.Errorf("seek tail: %w", err)
		}
		moved, err := reader.Previous()
		if err != nil {
			return plan, fmt.Errorf("step back from tail: %w", err)
		}
		if moved {
			plan.Position = "last entry"
		} else {
			plan.Position = "empty journal"
		}
	default:
		return plan, fmt.Errorf("unsupported seekto %q", p.opts.SeekTo)
	}

	p.logger.Info("starting without saved cursor",
		logging.String("seekto", plan.SeekTo),
		logging.Int("filters", len(plan.Filter)),
		logging.Bool("thisboot", plan.BootID != ""))
	return plan, nil
}

// applyFilter adds one match per filter field, joined by conjunctions, in
// field name order. With ThisBoot a _BOOT_ID match for the running boot is
// added as well.
func (p *Planner) applyFilter(reader journal.Reader, plan *Plan) error {
	fields := make([]string, 0, len(plan.Filter))
	for field := range plan.Filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	added := 0
	addMatch := func(field, value string) error {
		if added > 0 {
			if err := reader.AddConjunction(); err != nil {
				return fmt.Errorf("add conjunction: %w", err)
			}
		}
		if err := reader.AddMatch(field, value); err != nil {
			return fmt.Errorf("add match %s: %w", journal.MatchString(field, value), err)
		}
		added++
		return nil
	}

	for _, field := range fields {
		if err := addMatch(field, plan.Filter[field]); err != nil {
			return err
		}
	}

	if p.opts.ThisBoot {
		bootID, err := reader.BootID()
		if err != nil {
			return fmt.Errorf("read boot id: %w", err)
		}
		if err := addMatch(journal.FieldBootID, bootID); err != nil {
			return err
		}
		plan.BootID = bootID
	}
	return nil
}

func copyFilter(filter map[string]string) map[string]string {
	if len(filter) == 0 {
		return nil
	}
	out := make(map[string]string, len(filter))
	for k, v := range filter {
		out[k] = v
	}
	return out
}
