package sink

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"journaltail/internal/config"
	"journaltail/internal/tail"
)

type stubSink struct {
	delivered int
	err       error
	closeErr  error
	closed    bool
}

func (s *stubSink) Deliver(context.Context, tail.Record) error {
	if s.err != nil {
		return s.err
	}
	s.delivered++
	return nil
}

func (s *stubSink) Close() error {
	s.closed = true
	return s.closeErr
}

func TestFanoutStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	a, b, c := &stubSink{}, &stubSink{err: boom}, &stubSink{}
	f := Fanout{a, b, c}

	if err := f.Deliver(context.Background(), tail.Record{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if a.delivered != 1 || c.delivered != 0 {
		t.Fatalf("unexpected deliveries: a=%d c=%d", a.delivered, c.delivered)
	}
}

func TestFanoutClosesAll(t *testing.T) {
	closeErr := errors.New("close failed")
	a, b := &stubSink{closeErr: closeErr}, &stubSink{}
	if err := (Fanout{a, b}).Close(); !errors.Is(err, closeErr) {
		t.Fatalf("expected joined close error, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("expected every sink closed")
	}
}

func TestOpenSelectsSink(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  config.Output
		want string
	}{
		{"stdout", config.Output{Kind: config.OutputStdout}, "*sink.Writer"},
		{"file", config.Output{Kind: config.OutputFile, Path: filepath.Join(dir, "out.ndjson")}, "*sink.Writer"},
		{"sqlite", config.Output{Kind: config.OutputSQLite, Path: filepath.Join(dir, "out.db")}, "*sink.Archive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg, nil)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer s.Close()
			switch s.(type) {
			case *Writer:
				if tt.want != "*sink.Writer" {
					t.Fatalf("got Writer, want %s", tt.want)
				}
			case *Archive:
				if tt.want != "*sink.Archive" {
					t.Fatalf("got Archive, want %s", tt.want)
				}
			default:
				t.Fatalf("unexpected sink type %T", s)
			}
		})
	}

	if _, err := Open(ctx, config.Output{Kind: "kafka"}, nil); err == nil {
		t.Fatal("expected error for unknown output kind")
	}
}

func TestOpenTeePairsOutputWithStdout(t *testing.T) {
	cfg := config.Output{Kind: config.OutputSQLite, Path: filepath.Join(t.TempDir(), "out.db"), Tee: true}
	s, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	fan, ok := s.(Fanout)
	if !ok || len(fan) != 2 {
		t.Fatalf("expected two-way Fanout, got %T", s)
	}
	if _, ok := fan[0].(*Archive); !ok {
		t.Fatalf("first sink = %T, want *Archive", fan[0])
	}
	if _, ok := fan[1].(*Writer); !ok {
		t.Fatalf("second sink = %T, want *Writer", fan[1])
	}
}
