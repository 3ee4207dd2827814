// Package builder supplies the two-phase Constructor/ApplyTo orchestration
// used to assemble and rebuild a core.Graph: a deterministic sequence of
// mutating steps applied in order, each wrapped in a uniform function type
// so a caller can compose arbitrarily many of them into one call.
//
// ereignisgraph's rebuild is the only caller today: it runs one Constructor
// per target node, then one per target edge, against the same long-lived
// graph via ApplyTo, so state a rebuild doesn't explicitly touch survives it.
package builder
