package sync

import (
	"fmt"

	"avos-hq/avos/pkg/storage"
)

// ImmutabilityViolation reports an attempt to change a field that is fixed
// after creation, or to mutate a completed experiment.
type ImmutabilityViolation struct {
	LayerID      string
	ExperimentID string // empty for layer-level fields
	Field        string
	Message      string
}

// Error implements the error interface.
func (e *ImmutabilityViolation) Error() string {
	if e.ExperimentID == "" {
		return fmt.Sprintf("layer %q: field %s is immutable: %s", e.LayerID, e.Field, e.Message)
	}
	return fmt.Sprintf("experiment %q in layer %q: field %s is immutable: %s",
		e.ExperimentID, e.LayerID, e.Field, e.Message)
}

// RampDownViolation reports a decrease of traffic_percentage on a
// non-retiring experiment.
type RampDownViolation struct {
	LayerID      string
	ExperimentID string
	Prior        float64
	Proposed     float64
}

// Error implements the error interface.
func (e *RampDownViolation) Error() string {
	return fmt.Sprintf("experiment %q in layer %q: traffic_percentage may not decrease from %g to %g",
		e.ExperimentID, e.LayerID, e.Prior, e.Proposed)
}

// CapacityViolation reports that the combined traffic footprint of a layer's
// non-completed experiments would exceed its capacity.
type CapacityViolation struct {
	LayerID   string
	Footprint float64
	Capacity  float64
}

// Error implements the error interface.
func (e *CapacityViolation) Error() string {
	return fmt.Sprintf("layer %q: combined traffic footprint %g exceeds capacity %g",
		e.LayerID, e.Footprint, e.Capacity)
}

// StaleVersionError reports an optimistic-concurrency conflict: the layer
// was committed by another sync between read and write. The caller must
// re-read and retry. Nothing was written.
type StaleVersionError struct {
	LayerID string
	Err     error
}

// Error implements the error interface.
func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("layer %q: concurrent sync detected, re-read and retry: %v", e.LayerID, e.Err)
}

// Unwrap exposes storage.ErrStaleVersion for errors.Is checks.
func (e *StaleVersionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return storage.ErrStaleVersion
}
