//go:build linux && cgo

package journal

import (
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
)

type systemdReader struct {
	j *sdjournal.Journal
}

// Open attaches to the systemd journal selected by opts.
func Open(opts OpenOptions) (Reader, error) {
	src, err := opts.Resolve()
	if err != nil {
		return nil, err
	}

	var j *sdjournal.Journal
	switch {
	case src.Directory != "":
		j, err = sdjournal.NewJournalFromDir(src.Directory)
	case src.LocalOnly:
		j, err = sdjournal.NewJournal()
	default:
		j, err = sdjournal.NewJournalFromFiles(src.Files...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &systemdReader{j: j}, nil
}

func (r *systemdReader) SeekHead() error { return r.j.SeekHead() }

func (r *systemdReader) SeekTail() error { return r.j.SeekTail() }

func (r *systemdReader) SeekCursor(cursor string) error { return r.j.SeekCursor(cursor) }

func (r *systemdReader) Next() (bool, error) {
	n, err := r.j.Next()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *systemdReader) Previous() (bool, error) {
	n, err := r.j.Previous()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *systemdReader) Wait(timeout time.Duration) (WaitEvent, error) {
	switch rc := r.j.Wait(timeout); {
	case rc == sdjournal.SD_JOURNAL_NOP:
		return WaitNop, nil
	case rc == sdjournal.SD_JOURNAL_APPEND:
		return WaitAppend, nil
	case rc == sdjournal.SD_JOURNAL_INVALIDATE:
		return WaitInvalidate, nil
	default:
		return WaitNop, fmt.Errorf("journal wait failed: code %d", rc)
	}
}

func (r *systemdReader) Entry() (Entry, error) {
	raw, err := r.j.GetEntry()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Fields:            raw.Fields,
		RealtimeTimestamp: raw.RealtimeTimestamp,
		Cursor:            raw.Cursor,
	}, nil
}

func (r *systemdReader) Cursor() (string, error) { return r.j.GetCursor() }

func (r *systemdReader) AddMatch(field, value string) error {
	return r.j.AddMatch(MatchString(field, value))
}

func (r *systemdReader) AddConjunction() error { return r.j.AddConjunction() }

func (r *systemdReader) FlushMatches() { r.j.FlushMatches() }

func (r *systemdReader) BootID() (string, error) { return r.j.GetBootID() }

func (r *systemdReader) Close() error { return r.j.Close() }
