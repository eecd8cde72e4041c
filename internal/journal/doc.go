// Package journal defines the reader contract the tailer drives and binds it
// to the systemd journal.
//
// The Reader interface mirrors the seek/next/previous/wait primitives of
// sd-journal. Builds with cgo on Linux use go-systemd's sdjournal binding;
// other builds get a stub whose Open reports ErrUnavailable.
package journal
