// Package config defines the YAML schema for layer configuration documents,
// loads them from files and directories, and validates candidate
// definitions against the engine's structural and semantic invariants.
//
// # Documents
//
// One YAML document describes one layer: its identity, salt, capacity, and
// the full list of experiment definitions it owns. Loading applies defaults
// but does not validate; validation is a separate, pure step so that the
// sync service can validate against prior persisted state.
//
// # Validation
//
// Validate collects every violation in a single pass rather than stopping at
// the first, so one round trip surfaces every problem in a document.
// Malformed-but-well-typed input is a validation violation, never a panic.
package config
