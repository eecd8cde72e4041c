// Package logging assembles structured slog loggers and formatting helpers used
// across journaltail.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes the field keys and warn/error helpers that keep
// diagnostics uniform (event_type, error_hint, impact). Log output defaults to
// stderr because stdout is reserved for emitted records.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
