package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"journaltail/internal/config"
	"journaltail/internal/journal"
)

func TestCheckDirectoryReadable_OK(t *testing.T) {
	result := CheckDirectoryReadable("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryReadable_NotExist(t *testing.T) {
	result := CheckDirectoryReadable("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckJournalDirectory_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	result := CheckJournalDirectory(journal.OpenOptions{Path: dir})
	if !result.Passed || result.Name != "Journal directory" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCheckJournalDirectory_UnsupportedScope(t *testing.T) {
	result := CheckJournalDirectory(journal.OpenOptions{Flags: 3})
	if result.Passed {
		t.Fatalf("expected failure for unsupported scope: %+v", result)
	}
}

func TestCheckSincedbWritable(t *testing.T) {
	dir := t.TempDir()

	missing := CheckSincedbWritable(filepath.Join(dir, "nested", ".sincedb_journal"))
	if !missing.Passed {
		t.Fatalf("expected creatable path to pass, got: %s", missing.Detail)
	}

	existing := filepath.Join(dir, ".sincedb_journal")
	if err := os.WriteFile(existing, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckSincedbWritable(existing); !r.Passed {
		t.Fatalf("expected existing file to pass, got: %s", r.Detail)
	}

	if r := CheckSincedbWritable(dir); r.Passed {
		t.Fatal("expected directory path to fail")
	}
	if r := CheckSincedbWritable(""); r.Passed {
		t.Fatal("expected empty path to fail")
	}
}

func TestCheckSincedbLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sincedb_journal")
	if r := CheckSincedbLock(path); !r.Passed {
		t.Fatalf("expected free lock, got: %s", r.Detail)
	}

	holder := flock.New(path + ".lock")
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock failed: locked=%v err=%v", locked, err)
	}
	defer holder.Unlock()

	if r := CheckSincedbLock(path); r.Passed {
		t.Fatal("expected held lock to fail")
	}
}

func TestCheckAPIBind(t *testing.T) {
	ctx := context.Background()
	if r := CheckAPIBind(ctx, "127.0.0.1:0"); !r.Passed {
		t.Fatalf("expected ephemeral port to bind, got: %s", r.Detail)
	}

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	if r := CheckAPIBind(ctx, busy.Addr().String()); r.Passed {
		t.Fatal("expected bound port to fail")
	}
}

func TestRunAllIncludesOptionalChecks(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Journal.Path = dir
	cfg.Sincedb.Path = filepath.Join(dir, ".sincedb_journal")
	cfg.Output.Kind = config.OutputSQLite
	cfg.Output.Path = filepath.Join(dir, "records.db")
	cfg.API.Bind = "127.0.0.1:0"

	results := RunAll(context.Background(), &cfg)
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Journal directory", "Journal reader", "Sincedb", "Sincedb lock", "Output", "Status API"} {
		if !names[want] {
			t.Fatalf("missing check %q in %+v", want, results)
		}
	}
}

func TestFailedSkipsOptional(t *testing.T) {
	results := []Result{
		{Name: "a", Passed: true},
		{Name: "b", Passed: false},
		{Name: "c", Passed: false, Optional: true},
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "b" {
		t.Fatalf("unexpected failed set: %+v", failed)
	}
}
