package journal

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Well-known journal fields the tailer reads directly.
const (
	FieldMessage  = "MESSAGE"
	FieldHostname = "_HOSTNAME"
	FieldBootID   = "_BOOT_ID"
)

// Standard journal directories used when no explicit path is configured.
const (
	RuntimeDir = "/run/log/journal"
	SystemDir  = "/var/log/journal"
)

// ErrUnavailable reports that the journal could not be opened at all.
var ErrUnavailable = errors.New("journal unavailable")

// Flags selects which journal files are visible when no path is given.
type Flags int

const (
	FlagAll         Flags = 0
	FlagLocalOnly   Flags = 1
	FlagRuntimeOnly Flags = 2
	FlagSystemOnly  Flags = 4
)

// Valid reports whether f is one of the supported scopes.
func (f Flags) Valid() bool {
	switch f {
	case FlagAll, FlagLocalOnly, FlagRuntimeOnly, FlagSystemOnly:
		return true
	default:
		return false
	}
}

func (f Flags) String() string {
	switch f {
	case FlagAll:
		return "all"
	case FlagLocalOnly:
		return "local-only"
	case FlagRuntimeOnly:
		return "runtime-only"
	case FlagSystemOnly:
		return "system-only"
	default:
		return fmt.Sprintf("flags(%d)", int(f))
	}
}

// WaitEvent is the outcome of a Wait call.
type WaitEvent int

const (
	// WaitNop means the timeout elapsed without changes.
	WaitNop WaitEvent = iota
	// WaitAppend means entries were appended.
	WaitAppend
	// WaitInvalidate means journal files were added or removed.
	WaitInvalidate
)

// Entry is one raw journal entry. Field values carry the raw bytes of the
// journal payload and are not guaranteed to be valid UTF-8.
type Entry struct {
	Fields            map[string]string
	RealtimeTimestamp uint64
	Cursor            string
}

// Hostname returns the entry's own _HOSTNAME field.
func (e Entry) Hostname() (string, bool) {
	host, ok := e.Fields[FieldHostname]
	if !ok || host == "" {
		return "", false
	}
	return host, true
}

// Reader is the subset of sd-journal the tailer depends on.
//
// Next and Previous report whether the read position moved onto an entry.
// Cursor and Entry describe the entry at the current position.
type Reader interface {
	SeekHead() error
	SeekTail() error
	SeekCursor(cursor string) error
	Next() (bool, error)
	Previous() (bool, error)
	Wait(timeout time.Duration) (WaitEvent, error)
	Entry() (Entry, error)
	Cursor() (string, error)
	AddMatch(field, value string) error
	AddConjunction() error
	FlushMatches()
	BootID() (string, error)
	Close() error
}

// OpenOptions selects the journal files to read.
type OpenOptions struct {
	Path  string
	Flags Flags
}

// Source is the resolved location Open attaches to. Exactly one of
// Directory, Files or LocalOnly is set.
type Source struct {
	Directory string
	Files     []string
	LocalOnly bool
}

func (s Source) String() string {
	switch {
	case s.Directory != "":
		return s.Directory
	case s.LocalOnly:
		return "local journal"
	default:
		return fmt.Sprintf("%d journal files", len(s.Files))
	}
}

// Resolve maps opts onto concrete journal files. An explicit Path opens that
// directory. Local-only uses the library default. The other scopes list
// files under RuntimeDir and SystemDir:
//
//	all           every *.journal, including remote/
//	runtime-only  *.journal under RuntimeDir
//	system-only   system*.journal under both directories
func (o OpenOptions) Resolve() (Source, error) {
	return o.resolve(RuntimeDir, SystemDir)
}

func (o OpenOptions) resolve(runtimeDir, systemDir string) (Source, error) {
	if o.Path != "" {
		return Source{Directory: o.Path}, nil
	}

	var (
		roots   []string
		pattern string
	)
	switch o.Flags {
	case FlagLocalOnly:
		return Source{LocalOnly: true}, nil
	case FlagAll:
		roots, pattern = []string{runtimeDir, systemDir}, "*.journal"
	case FlagRuntimeOnly:
		roots, pattern = []string{runtimeDir}, "*.journal"
	case FlagSystemOnly:
		roots, pattern = []string{runtimeDir, systemDir}, "system*.journal"
	default:
		return Source{}, fmt.Errorf("unsupported journal scope %s", o.Flags)
	}

	var files []string
	for _, root := range roots {
		matches, err := filepath.Glob(filepath.Join(root, "*", pattern))
		if err != nil {
			return Source{}, fmt.Errorf("list journal files: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return Source{}, fmt.Errorf("%w: no %s journal files under %s", ErrUnavailable, o.Flags, strings.Join(roots, ", "))
	}
	sort.Strings(files)
	return Source{Files: files}, nil
}

// MatchString renders a FIELD=value match expression.
func MatchString(field, value string) string {
	return field + "=" + value
}
