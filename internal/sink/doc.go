// Package sink delivers normalized journal records downstream.
//
// Writers emit newline-delimited JSON to stdout or a file (optionally zstd
// compressed). Archive stores records in SQLite keyed by cursor, so records
// re-delivered after a restart are stored once.
package sink
