package tail_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"journaltail/internal/journal"
	"journaltail/internal/tail"
)

func TestToRecordKeepsRawKeysWhenPrettyDisabled(t *testing.T) {
	entry := journal.Entry{Fields: map[string]string{
		"MESSAGE":       "hello",
		"_PID":          "42",
		"_SYSTEMD_UNIT": "sshd.service",
	}}
	rec := tail.NewEntryAdapter(entry, nil).ToRecord(false)

	if rec.String("MESSAGE") != "hello" || rec.String("_PID") != "42" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if _, ok := rec["message"]; ok {
		t.Fatal("pretty key present with pretty disabled")
	}
}

func TestToRecordRenamesWhenPrettyEnabled(t *testing.T) {
	entry := journal.Entry{Fields: map[string]string{
		"MESSAGE":        "hello",
		"_PID":           "42",
		"_UNKNOWN_THING": "x",
	}}
	rec := tail.NewEntryAdapter(entry, tail.DefaultPrettyNames()).ToRecord(true)

	want := map[string]string{"message": "hello", "pid": "42", "unknown_thing": "x"}
	for key, value := range want {
		if rec.String(key) != value {
			t.Fatalf("record[%q] = %v, want %q (record %v)", key, rec[key], value, rec)
		}
	}
	if _, ok := rec["MESSAGE"]; ok {
		t.Fatal("raw key kept with pretty enabled")
	}
}

func TestToRecordReencodesLatin1(t *testing.T) {
	entry := journal.Entry{Fields: map[string]string{
		"MESSAGE": "caf\xe9 cr\xe8me",
		"UTF8":    "naïve ✓",
	}}
	rec := tail.NewEntryAdapter(entry, nil).ToRecord(false)

	if got := rec.String("MESSAGE"); got != "café crème" {
		t.Fatalf("MESSAGE = %q, want %q", got, "café crème")
	}
	if got := rec.String("UTF8"); got != "naïve ✓" {
		t.Fatalf("valid UTF-8 changed: %q", got)
	}
	if _, ok := rec[tail.KeyEncodingErrors]; ok {
		t.Fatalf("unexpected encoding errors: %v", rec[tail.KeyEncodingErrors])
	}
}

func TestToRecordFlagsBinaryValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"latin1 pair", "\xff\xfe", true},
		{"truncated utf8 reads as latin1", "a\xc3", true},
		{"c1 controls", "\x80\x81\x82", false},
		{"surrogate encoding", "\xed\xa0\x80", false},
		{"nul with high bytes", "\x00\x9f\xff", false},
		{"escape byte", "\x1b[1m\xe9", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := journal.Entry{Fields: map[string]string{"_PID": "1", "BLOB": tt.raw}}
			rec := tail.NewEntryAdapter(entry, nil).ToRecord(true)

			failed, flagged := rec[tail.KeyEncodingErrors].([]string)
			if flagged == tt.ok {
				t.Fatalf("encoding_errors present = %v, want %v", flagged, !tt.ok)
			}
			if !flagged {
				return
			}
			if len(failed) != 1 || failed[0] != "blob" {
				t.Fatalf("encoding_errors = %v, want [blob]", failed)
			}
			value := rec.String("blob")
			if !utf8.ValidString(value) || !strings.Contains(value, string(utf8.RuneError)) {
				t.Fatalf("blob = %q, want sanitized UTF-8", value)
			}
			if rec.String("pid") != "1" {
				t.Fatalf("other fields must survive, pid = %q", rec.String("pid"))
			}
		})
	}
}
