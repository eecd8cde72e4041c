// Package config loads, normalizes, and validates journaltail configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and resolves the sincedb location from SINCEDB_DIR or HOME when
// no explicit path is configured. Downstream code receives sanitized values
// and clear validation errors.
package config
