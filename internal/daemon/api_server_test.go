package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"journaltail/internal/config"
	"journaltail/internal/journal"
	"journaltail/internal/sink"
	"journaltail/internal/testsupport"
)

func startStatusDaemon(t *testing.T, mj *testsupport.MemoryJournal, rs *testsupport.RecordingSink, bind string) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSeekTo(config.SeekHead), testsupport.WithAPIBind(bind))
	d, err := New(cfg, nil,
		WithReaderOpener(func(journal.OpenOptions) (journal.Reader, error) { return mj, nil }),
		WithSinkOpener(func(context.Context, config.Output, *slog.Logger) (sink.Sink, error) { return rs, nil }),
		WithRunID("run-42"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

func TestAPIServerHandleStatus(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	last := mj.AppendMessage("hello")
	rs := &testsupport.RecordingSink{}
	d := startStatusDaemon(t, mj, rs, "")

	deadline := time.Now().Add(3 * time.Second)
	for rs.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	srv := &apiServer{daemon: d}
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["running"] != true {
		t.Fatalf("expected running=true, got %v", resp["running"])
	}
	if resp["run_id"] != "run-42" {
		t.Fatalf("unexpected run_id: %v", resp["run_id"])
	}
	if resp["current_cursor"] != last {
		t.Fatalf("current_cursor = %v, want %q", resp["current_cursor"], last)
	}
	if resp["records_delivered"] != float64(1) {
		t.Fatalf("records_delivered = %v", resp["records_delivered"])
	}
	plan, ok := resp["plan"].(map[string]any)
	if !ok || plan["state"] != "fresh" || plan["seekto"] != "head" {
		t.Fatalf("unexpected plan: %v", resp["plan"])
	}
}

func TestAPIServerRejectsNonGet(t *testing.T) {
	srv := &apiServer{}
	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerListens(t *testing.T) {
	mj := testsupport.NewMemoryJournal()
	d := startStatusDaemon(t, mj, &testsupport.RecordingSink{}, "127.0.0.1:0")

	addr := d.APIAddress()
	if addr == "" {
		t.Fatal("expected API address")
	}
	resp, err := http.Get(fmt.Sprintf("http://%s/api/health", addr))
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if d.APIAddress() != "" {
		t.Fatal("expected listener closed after Stop")
	}
}
