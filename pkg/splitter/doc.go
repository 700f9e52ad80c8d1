// Package splitter implements the deterministic bucketing algorithms that
// map a traffic unit to an experiment variant or to exclusion.
//
// # Two-stage bucketing
//
// Every splitter shares the same two-stage shape. Stage one is the ramp
// gate: a hash of (layer salt, experiment id, "gate", unit id) admits the
// unit iff it falls below the experiment's traffic percentage. Stage two
// picks the variant from an independent hash of (layer salt, experiment id,
// "variant", unit id) walked over cumulative allocation boundaries in
// lexicographic variant order.
//
// Because the two hashes are independent, ramping the traffic percentage up
// only admits previously excluded units; it never changes the variant of a
// unit that was already eligible.
//
// # Dimension splitters
//
// The segment, geo, and stratum splitters differ from the hash splitter only
// in stage two: the caller-supplied dimension value selects an inner
// allocation table before the same boundary walk. A dimension value with no
// table excludes the unit; that is configuration absence, not an error.
//
// Splitters are pure functions of their inputs and are safe for unbounded
// concurrent use against an immutable config snapshot.
package splitter
