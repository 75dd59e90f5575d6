// Package diag defines the diagnostic model handed to callers of the bridge.
//
// # Purpose
//
//   - Provide deterministic, serialisable records for diagnostics that survived
//     boundary filtering and were mapped to line/character positions.
//   - Offer light-weight utilities (Reporter, Bag) so producers emit records
//     without coupling to storage or formatting layers.
//
// # Scope
//
// Package diag does not perform any formatting, IO, or filtering. Rendering
// lives in internal/diagfmt; filtering and position mapping live in
// internal/diagnostics.
//
// # Data model
//
// Record is the central type. It contains:
//
//   - Path – the real (caller-visible) path, never a virtual one.
//   - Range – zero-based line/character start and end.
//   - Severity – Error, Warning, Information or Hint, numbered like the editor protocol.
//   - Source – "ts" for TSX-kind files, "js" otherwise.
//   - Code – the engine's numeric code (see codes.go); parser failures use 9001–9005.
//   - Tags – Unnecessary / Deprecated presentation hints.
//
// # Consumers
//
//   - internal/diagfmt: renders records as pretty, short, json or msgpack output.
//   - internal/lsp: converts records to publishDiagnostics payloads.
//   - cmd/astrols: collects records for many files into a Bag.
//
// Keep the data model deterministic: Bag.Sort orders by path, position,
// severity and code so CLI output and tests are stable.
package diag
