package tail_test

import (
	"errors"
	"reflect"
	"testing"

	"journaltail/internal/journal"
	"journaltail/internal/sincedb"
	"journaltail/internal/tail"
	"journaltail/internal/testsupport"
)

func nextMessage(t *testing.T, r journal.Reader) (string, bool) {
	t.Helper()
	moved, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !moved {
		return "", false
	}
	entry, err := r.Entry()
	if err != nil {
		t.Fatalf("Entry failed: %v", err)
	}
	return entry.Fields[journal.FieldMessage], true
}

func TestFreshHeadStartsAtOldestEntry(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	mj.AppendMessage("one")
	mj.AppendMessage("two")

	plan, err := tail.NewPlanner(tail.PlannerOptions{SeekTo: tail.SeekHead}, nil).Apply(mj, "")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if plan.State != tail.StateFresh {
		t.Fatalf("state = %v, want fresh", plan.State)
	}
	if msg, _ := nextMessage(t, mj); msg != "one" {
		t.Fatalf("first entry = %q, want one", msg)
	}
}

func TestFreshTailDeliversOnlyNewEntries(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	for _, msg := range []string{"old-1", "old-2", "old-3"} {
		mj.AppendMessage(msg)
	}

	if _, err := tail.NewPlanner(tail.PlannerOptions{SeekTo: tail.SeekTail}, nil).Apply(mj, ""); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if msg, ok := nextMessage(t, mj); ok {
		t.Fatalf("expected no entry before appends, got %q", msg)
	}

	mj.AppendMessage("new-1")
	mj.AppendMessage("new-2")

	var got []string
	for {
		msg, ok := nextMessage(t, mj)
		if !ok {
			break
		}
		got = append(got, msg)
	}
	if want := []string{"new-1", "new-2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
}

func TestFreshTailOnEmptyJournal(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	plan, err := tail.NewPlanner(tail.PlannerOptions{SeekTo: tail.SeekTail}, nil).Apply(mj, "")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if plan.Position != "empty journal" {
		t.Fatalf("position = %q", plan.Position)
	}
	mj.AppendMessage("first")
	if msg, _ := nextMessage(t, mj); msg != "first" {
		t.Fatalf("got %q, want first", msg)
	}
}

func TestResumeSkipsSavedEntry(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	mj.AppendMessage("a")
	saved := mj.AppendMessage("b")
	mj.AppendMessage("c")

	plan, err := tail.NewPlanner(tail.PlannerOptions{SeekTo: tail.SeekHead}, nil).Apply(mj, sincedb.Cursor(saved))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if plan.State != tail.StateResuming {
		t.Fatalf("state = %v, want resuming", plan.State)
	}
	if msg, _ := nextMessage(t, mj); msg != "c" {
		t.Fatalf("first entry after resume = %q, want c", msg)
	}
}

func TestResumeIgnoresFilter(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	saved := mj.Append(map[string]string{"MESSAGE": "a", "_SYSTEMD_UNIT": "sshd.service"})
	mj.Append(map[string]string{"MESSAGE": "b", "_SYSTEMD_UNIT": "cron.service"})

	opts := tail.PlannerOptions{
		SeekTo:   tail.SeekHead,
		ThisBoot: true,
		Filter:   map[string]string{"_SYSTEMD_UNIT": "sshd.service"},
	}
	if _, err := tail.NewPlanner(opts, nil).Apply(mj, sincedb.Cursor(saved)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(mj.Matches()) != 0 {
		t.Fatalf("expected no matches on resume, got %v", mj.Matches())
	}
	if msg, _ := nextMessage(t, mj); msg != "b" {
		t.Fatalf("got %q, want unfiltered entry b", msg)
	}
}

func TestFreshStartAppliesFilterAndBoot(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	mj.Append(map[string]string{"MESSAGE": "old boot", "_SYSTEMD_UNIT": "sshd.service"})
	mj.Reboot("feedfacefeedfacefeedfacefeedface")
	mj.Append(map[string]string{"MESSAGE": "other unit", "_SYSTEMD_UNIT": "cron.service"})
	mj.Append(map[string]string{"MESSAGE": "match", "_SYSTEMD_UNIT": "sshd.service", "PRIORITY": "6"})
	mj.Append(map[string]string{"MESSAGE": "wrong priority", "_SYSTEMD_UNIT": "sshd.service", "PRIORITY": "3"})

	opts := tail.PlannerOptions{
		SeekTo:   tail.SeekHead,
		ThisBoot: true,
		Filter:   map[string]string{"_SYSTEMD_UNIT": "sshd.service", "PRIORITY": "6"},
	}
	plan, err := tail.NewPlanner(opts, nil).Apply(mj, "")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if plan.BootID != "feedfacefeedfacefeedfacefeedface" {
		t.Fatalf("boot id = %q", plan.BootID)
	}

	wantMatches := [][]string{
		{"PRIORITY=6"},
		{"_SYSTEMD_UNIT=sshd.service"},
		{"_BOOT_ID=feedfacefeedfacefeedfacefeedface"},
	}
	if got := mj.Matches(); !reflect.DeepEqual(got, wantMatches) {
		t.Fatalf("matches = %v, want %v", got, wantMatches)
	}

	var got []string
	for {
		msg, ok := nextMessage(t, mj)
		if !ok {
			break
		}
		got = append(got, msg)
	}
	if want := []string{"match"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("filtered entries = %v, want %v", got, want)
	}
}

func TestStaleCursorIsReported(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	mj.AppendMessage("a")

	_, err := tail.NewPlanner(tail.PlannerOptions{}, nil).Apply(mj, "s=gone;i=ff")
	if !errors.Is(err, tail.ErrStaleCursor) {
		t.Fatalf("expected ErrStaleCursor, got %v", err)
	}
}

func TestResumeAfterVacuumDeliversOldestSurvivor(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	mj.AppendMessage("gone-1")
	saved := mj.AppendMessage("gone-2")
	mj.AppendMessage("survivor-1")
	mj.AppendMessage("survivor-2")
	mj.Vacuum(2)

	plan, err := tail.NewPlanner(tail.PlannerOptions{}, nil).Apply(mj, sincedb.Cursor(saved))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if plan.State != tail.StateResuming || plan.Position != "nearest entry" {
		t.Fatalf("unexpected plan %+v", plan)
	}

	var got []string
	for {
		msg, ok := nextMessage(t, mj)
		if !ok {
			break
		}
		got = append(got, msg)
	}
	if want := []string{"survivor-1", "survivor-2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("delivered after resume = %v, want %v", got, want)
	}
}

func TestResumeAfterFullVacuumWaitsForNewEntries(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	saved := mj.AppendMessage("gone")
	mj.Vacuum(1)

	plan, err := tail.NewPlanner(tail.PlannerOptions{}, nil).Apply(mj, sincedb.Cursor(saved))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if plan.Position != "end of journal" {
		t.Fatalf("position = %q, want end of journal", plan.Position)
	}
	mj.AppendMessage("fresh")
	if msg, ok := nextMessage(t, mj); !ok || msg != "fresh" {
		t.Fatalf("next entry = %q (%v), want fresh", msg, ok)
	}
}
