// Package trace is the structured log of astrols.
//
// Diagnostic passes, snapshot updates and module resolutions are recorded
// as spans and points. The CLI writes them to stderr or a file; the
// language server can keep the last events in a ring and write them when
// it exits.
//
//	astrols check --trace=- --trace-level=detail src/
//	astrols lsp --trace=/tmp/astrols.ndjson --trace-mode=ring
//
// Levels gate scopes: phase records commands and passes, detail adds
// per-file work, debug adds every diagnostic the filter judges.
//
// Spans nest through the context:
//
//	ctx, span := trace.Start(ctx, tracer, trace.ScopePass, "diagnostics")
//	defer span.End("")
package trace
