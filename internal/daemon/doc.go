// Package daemon coordinates the long-running journaltail process.
//
// It wires configuration, the sincedb store and checkpoint scheduler, the
// journal reader, the resumption planner, the tail loop and the record sink
// into a single lifecycle. Stop tears them down in a fixed order: the loop
// is cancelled and drained, the scheduler halted, the cursor flushed one
// final time, and only then are the reader, sink and sincedb lock released.
//
// An optional HTTP status endpoint reports the plan, cursors and counters.
package daemon
