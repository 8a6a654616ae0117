// Package progress keeps aggregated process lifecycle counters (created,
// running, suspended, ended) for one manager. A tracker is fed either with
// explicit deltas or as an event sink, and can travel in a context.
package progress
