// Package experiment defines the domain model for the traffic allocation
// engine: layers, experiments, and assignment records.
//
// # Model
//
// A Layer is a bounded traffic pool with a fixed salt and logical slot
// capacity. It hosts a set of mutually exclusive experiments, each consuming
// a share of the layer's traffic. An Experiment splits its admitted traffic
// across a fixed set of variants according to an allocation table. An
// Assignment is the transient record produced when a unit lands in a variant.
//
// # Immutability and snapshots
//
// Layer and Experiment values loaded from a store are snapshots: callers
// receive deep copies (see Clone) and never share mutable state with the
// store or with other callers. The Version field on Layer is the optimistic
// concurrency token used by the sync service; it is advanced on every commit.
package experiment
