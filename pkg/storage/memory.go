package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"avos-hq/avos/pkg/experiment"
)

// MemoryStore implements Store using an in-memory map. It is intended for
// testing and ephemeral single-process use.
type MemoryStore struct {
	layers map[string]*experiment.Layer
	mu     sync.RWMutex
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		layers: make(map[string]*experiment.Layer),
		now:    time.Now,
	}
}

// GetLayer returns a snapshot of the layer.
func (s *MemoryStore) GetLayer(ctx context.Context, layerID string) (*experiment.Layer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layer, ok := s.layers[layerID]
	if !ok {
		return nil, fmt.Errorf("layer %q: %w", layerID, ErrNotFound)
	}
	return layer.Clone(), nil
}

// ListLayers returns snapshots of all layers ordered by layer id.
func (s *MemoryStore) ListLayers(ctx context.Context) ([]*experiment.Layer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*experiment.Layer, 0, len(s.layers))
	for _, layer := range s.layers {
		out = append(out, layer.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LayerID < out[j].LayerID })
	return out, nil
}

// PutLayer commits the layer if the expected version token is still current.
func (s *MemoryStore) PutLayer(ctx context.Context, layer *experiment.Layer, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.layers[layer.LayerID]
	switch {
	case !exists && expectedVersion != 0:
		return fmt.Errorf("layer %q: %w", layer.LayerID, ErrStaleVersion)
	case exists && current.Version != expectedVersion:
		return fmt.Errorf("layer %q: expected version %d, have %d: %w",
			layer.LayerID, expectedVersion, current.Version, ErrStaleVersion)
	}

	stored := layer.Clone()
	stored.Version = expectedVersion + 1
	now := s.now().UTC()
	if !exists {
		stored.CreatedAt = now
	} else {
		stored.CreatedAt = current.CreatedAt
	}
	stored.UpdatedAt = now
	s.layers[layer.LayerID] = stored
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }
