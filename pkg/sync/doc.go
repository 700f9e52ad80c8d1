// Package sync reconciles validated layer configuration against persisted
// state under the engine's immutability and monotonicity rules.
//
// # Sync safety
//
// The sync service is the sole mutator of persisted layer/experiment state.
// Each layer's change set is applied atomically: the whole set commits or
// none of it does. Experiments are never deleted by sync; retirement is the
// explicit completed status, and an experiment absent from the incoming
// config is simply left untouched.
//
// Changes to variants, splitter type, or layer membership on an existing
// experiment are rejected as immutability violations; so is any mutation of
// a completed experiment. Allocation changes are rejected unless they are a
// winner rollout (one variant at 1.0) paired with retirement in the same
// change. Traffic percentages may only ramp up, and the combined footprint
// of non-completed experiments may not exceed the layer's capacity.
//
// Concurrent syncs against the same layer are resolved by the store's
// optimistic version token: a stale token rejects the layer's change set,
// and the caller re-reads and retries. Cross-layer syncs are independent.
package sync
