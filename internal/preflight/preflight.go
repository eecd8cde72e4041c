package preflight

import (
	"context"

	"journaltail/internal/config"
	"journaltail/internal/journal"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Optional bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	opts := journal.OpenOptions{Path: cfg.Journal.Path, Flags: journal.Flags(cfg.Journal.Flags)}

	var results []Result
	results = append(results, CheckJournalDirectory(opts))
	results = append(results, CheckJournalOpen(opts))
	results = append(results, CheckSincedbWritable(cfg.Sincedb.Path))
	results = append(results, CheckSincedbLock(cfg.Sincedb.Path))

	switch cfg.Output.Kind {
	case config.OutputFile, config.OutputSQLite:
		results = append(results, CheckOutputWritable(cfg.Output.Path))
	}

	if cfg.API.Bind != "" {
		results = append(results, CheckAPIBind(ctx, cfg.API.Bind))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
