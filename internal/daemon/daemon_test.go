package daemon_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"journaltail/internal/config"
	"journaltail/internal/daemon"
	"journaltail/internal/journal"
	"journaltail/internal/sincedb"
	"journaltail/internal/sink"
	"journaltail/internal/tail"
	"journaltail/internal/testsupport"
)

func newTestDaemon(t *testing.T, cfg *config.Config, mj *testsupport.MemoryJournal, rs *testsupport.RecordingSink) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(cfg, nil,
		daemon.WithReaderOpener(func(journal.OpenOptions) (journal.Reader, error) { return mj, nil }),
		daemon.WithSinkOpener(func(context.Context, config.Output, *slog.Logger) (sink.Sink, error) { return rs, nil }),
		daemon.WithHostname("test-host"),
		daemon.WithRunID("run-1"),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func readSincedb(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sincedb: %v", err)
	}
	return strings.TrimSpace(string(data))
}

func TestDaemonTailRestartScenario(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSeekTo(config.SeekTail))
	mj := testsupport.NewMemoryJournal()
	first := &testsupport.RecordingSink{}
	d := newTestDaemon(t, cfg, mj, first)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var cursors []string
	for _, msg := range []string{"one", "two", "three"} {
		cursors = append(cursors, mj.AppendMessage(msg))
	}
	waitFor(t, 3*time.Second, func() bool { return first.Len() == 3 })

	records := first.Records()
	for i, rec := range records {
		if got := rec.String(tail.KeyCursor); got != cursors[i] {
			t.Fatalf("record %d cursor = %q, want %q", i, got, cursors[i])
		}
		if i > 0 && rec.String(tail.KeyCursor) <= records[i-1].String(tail.KeyCursor) {
			t.Fatalf("cursors not strictly increasing at %d", i)
		}
	}

	waitFor(t, 3*time.Second, func() bool { return readSincedb(t, cfg.Sincedb.Path) == cursors[2] })

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !mj.Closed() || !first.Closed() {
		t.Fatal("expected reader and sink closed on Stop")
	}

	restarted := mj.Reopen()
	second := &testsupport.RecordingSink{}
	d2 := newTestDaemon(t, cfg, restarted, second)
	if err := d2.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if state := d2.Status().Plan.State; state != tail.StateResuming {
		t.Fatalf("plan state after restart = %v", state)
	}

	restarted.AppendMessage("four")
	restarted.AppendMessage("five")
	waitFor(t, 3*time.Second, func() bool { return second.Len() >= 2 })
	time.Sleep(50 * time.Millisecond)

	got := second.Records()
	if len(got) != 2 || got[0].String("MESSAGE") != "four" || got[1].String("MESSAGE") != "five" {
		t.Fatalf("unexpected records after restart: %v", got)
	}
}

func TestDaemonStopFlushesFinalCursor(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSeekTo(config.SeekHead))
	cfg.Sincedb.WriteInterval = 3600
	mj := testsupport.NewMemoryJournal()
	mj.AppendMessage("a")
	last := mj.AppendMessage("b")
	rs := &testsupport.RecordingSink{}
	d := newTestDaemon(t, cfg, mj, rs)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool { return rs.Len() == 2 })
	if got := readSincedb(t, cfg.Sincedb.Path); got != "" {
		t.Fatalf("scheduler wrote before interval: %q", got)
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := readSincedb(t, cfg.Sincedb.Path); got != last {
		t.Fatalf("sincedb = %q, want %q", got, last)
	}
}

func TestDaemonStopIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, testsupport.NewMemoryJournal(), &testsupport.RecordingSink{})

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if d.Status().Running {
		t.Fatal("expected daemon stopped")
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d1 := newTestDaemon(t, cfg, testsupport.NewMemoryJournal(), &testsupport.RecordingSink{})
	if err := d1.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mj := testsupport.NewMemoryJournal()
	d2 := newTestDaemon(t, cfg, mj, &testsupport.RecordingSink{})
	if err := d2.Start(context.Background()); !errors.Is(err, sincedb.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestDaemonStaleCursorReleasesResources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.WriteFile(cfg.Sincedb.Path, []byte("s=unknown;i=1"), 0o644); err != nil {
		t.Fatalf("seed sincedb: %v", err)
	}
	mj := testsupport.NewMemoryJournal()
	mj.AppendMessage("x")
	d := newTestDaemon(t, cfg, mj, &testsupport.RecordingSink{})

	err := d.Start(context.Background())
	if !errors.Is(err, tail.ErrStaleCursor) {
		t.Fatalf("expected ErrStaleCursor, got %v", err)
	}
	if !mj.Closed() {
		t.Fatal("expected reader closed after failed start")
	}

	store, err := sincedb.Open(cfg.Sincedb.Path, nil)
	if err != nil {
		t.Fatalf("sincedb lock not released: %v", err)
	}
	_ = store.Close()
}

func TestDaemonSurfacesLoopFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSeekTo(config.SeekHead))
	mj := testsupport.NewMemoryJournal()
	rs := &testsupport.RecordingSink{}
	sinkErr := errors.New("pipe closed")
	rs.FailWith(sinkErr)
	mj.AppendMessage("undeliverable")
	d := newTestDaemon(t, cfg, mj, rs)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-d.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("loop did not stop after sink failure")
	}
	if !errors.Is(d.Err(), sinkErr) {
		t.Fatalf("Err = %v, want sink error", d.Err())
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := readSincedb(t, cfg.Sincedb.Path); got != "" {
		t.Fatalf("cursor persisted for undelivered entry: %q", got)
	}
}
