// Package preflight provides readiness checks for the journal source and the
// filesystem paths journaltail writes to.
//
// The CLI "journaltail check" command runs RunAll and renders the results.
// "journaltail run" runs the same checks before starting and refuses to start
// when a required check fails.
package preflight
