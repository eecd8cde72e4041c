// Package sincedb persists the journal read position.
//
// Store owns a single opaque cursor string. The tail loop advances the
// in-memory value after each delivered record; Scheduler writes it to disk
// on a fixed interval when it changed, and the shutdown path calls Flush
// once more. An advisory lock on "<path>.lock" keeps a second process from
// writing the same file.
package sincedb
