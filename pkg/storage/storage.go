package storage

import (
	"context"
	"errors"

	"avos-hq/avos/pkg/experiment"
)

// ErrNotFound is returned when a requested layer does not exist.
var ErrNotFound = errors.New("layer not found")

// ErrStaleVersion is returned when a commit carries a version token that is
// no longer current. The caller must re-read and retry; nothing was written.
var ErrStaleVersion = errors.New("stale layer version")

// Store is the persistence interface for layer/experiment state.
//
// Implementations must be safe for concurrent use. GetLayer and ListLayers
// return deep copies; mutating a returned layer never affects the store.
type Store interface {
	// GetLayer returns a snapshot of the layer, including its current
	// version token. Returns ErrNotFound if the layer does not exist.
	GetLayer(ctx context.Context, layerID string) (*experiment.Layer, error)

	// ListLayers returns snapshots of all layers, ordered by layer id.
	ListLayers(ctx context.Context) ([]*experiment.Layer, error)

	// PutLayer commits the layer atomically. expectedVersion must be zero
	// to create a new layer, or the version token read from the snapshot
	// the change was derived from. A mismatch fails with ErrStaleVersion
	// and leaves persisted state untouched. On success the stored layer's
	// version is expectedVersion+1.
	PutLayer(ctx context.Context, layer *experiment.Layer, expectedVersion int64) error

	// Close releases any resources held by the store.
	Close() error
}
