package tail

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"journaltail/internal/journal"
)

// Keys the loop merges into every record.
const (
	KeyTimestamp      = "timestamp"
	KeyHost           = "host"
	KeyCursor         = "cursor"
	KeyEncodingErrors = "encoding_errors"
)

// Record is the normalized, sink-ready form of one journal entry.
type Record map[string]any

// String returns the string value stored under key, if any.
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Timestamp returns the realtime timestamp in microseconds since the epoch.
func (r Record) Timestamp() uint64 {
	if v, ok := r[KeyTimestamp].(uint64); ok {
		return v
	}
	return 0
}

// EntryAdapter converts a raw journal entry into a Record.
type EntryAdapter struct {
	entry journal.Entry
	names *PrettyNames
}

// NewEntryAdapter wraps entry. A nil names table selects DefaultPrettyNames.
func NewEntryAdapter(entry journal.Entry, names *PrettyNames) EntryAdapter {
	if names == nil {
		names = DefaultPrettyNames()
	}
	return EntryAdapter{entry: entry, names: names}
}

// ToRecord copies every entry field into a Record. With pretty enabled keys
// are renamed through the pretty-name table; otherwise raw field names are
// kept. Values are re-encoded as UTF-8. Fields whose bytes could not be
// decoded keep a sanitized value and are listed under KeyEncodingErrors.
func (a EntryAdapter) ToRecord(pretty bool) Record {
	rec := make(Record, len(a.entry.Fields)+3)
	var failed []string
	for field, raw := range a.entry.Fields {
		key := field
		if pretty {
			key = a.names.Name(field)
		}
		value, ok := decodeText(raw)
		if !ok {
			failed = append(failed, key)
		}
		rec[key] = value
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		rec[KeyEncodingErrors] = failed
	}
	return rec
}

// decodeText returns raw unchanged when it is valid UTF-8 and otherwise
// reinterprets it as ISO-8859-1. Bytes that are not Latin-1 text report
// false and come back with invalid sequences replaced.
func decodeText(raw string) (string, bool) {
	if utf8.ValidString(raw) {
		return raw, true
	}
	if isLatin1Text(raw) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().String(raw); err == nil {
			return decoded, true
		}
	}
	return strings.ToValidUTF8(raw, string(utf8.RuneError)), false
}

// isLatin1Text reports whether every byte of s is a printable ISO-8859-1
// character or tab, newline or carriage return. NUL, the other C0 controls,
// DEL and the C1 range mark binary payloads.
func isLatin1Text(s string) bool {
	for i := 0; i < len(s); i++ {
		switch b := s[i]; {
		case b == '\t', b == '\n', b == '\r':
		case b < 0x20, b >= 0x7f && b < 0xa0:
			return false
		}
	}
	return true
}
