// Package storage provides persistence backends for layer and experiment
// state.
//
// # Backends
//
//   - SQLite: embedded database for single-node deployments
//   - Memory: in-memory store for testing and ephemeral use
//
// # Optimistic versioning
//
// Every layer carries a monotonically increasing version token. PutLayer
// commits only if the caller's expected version is still current; a stale
// token fails with ErrStaleVersion and never results in a partial write.
// Reads return deep copies, so callers always work on an isolated snapshot.
package storage
