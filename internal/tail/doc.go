// Package tail positions a journal reader and streams its entries.
//
// Planner decides once per process where reading starts: the oldest or
// newest entry on a fresh start, or just past the saved cursor when
// resuming. Loop then reads entries until its context is cancelled,
// converts each into a Record, hands it to the configured sink and only
// afterwards advances the in-memory cursor, so the persisted position never
// runs ahead of delivered records.
package tail
