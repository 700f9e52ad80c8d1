// Package assignment orchestrates per-layer experiment assignment:
// eligibility filtering, ramp gating, splitter invocation, and the hand-off
// of finalized assignment records to the logger collaborator.
//
// # Mutual exclusivity
//
// A layer aggregates potentially many experiments, but a unit lands in at
// most one experiment per layer. Candidates are evaluated in ascending
// experiment id order and the first non-excluded decision wins; a unit that
// every experiment excludes is simply unassigned for the layer, not an
// error.
//
// # Purity and concurrency
//
// Assignment is a pure function over an immutable layer snapshot (aside
// from the optional logging side effect). It takes no locks and is safe on
// unboundedly many concurrent calls against the same snapshot. Logger
// failures are surfaced as a distinct error next to the already-computed
// result; they never invalidate it.
package assignment
