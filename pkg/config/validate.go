package config

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"avos-hq/avos/pkg/experiment"
)

// FieldError represents a validation violation on a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the offending field
	// (e.g., "experiments.hero_button_colors_v1.traffic_allocation").
	Field string

	// Message is a human-readable description of the violation.
	Message string
}

// Error returns the message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every violation found in a layer document. It
// implements the error interface and is only returned non-empty.
type ValidationError struct {
	// LayerID identifies the document the violations belong to.
	LayerID string

	// Errors contains all violations, in the order they were found.
	Errors []FieldError
}

// Error returns a formatted string containing all violations.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("layer %q validation failed: %s", e.LayerID, e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("layer %q validation failed with %d errors:\n", e.LayerID, len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks a layer document against the engine's structural and
// semantic invariants and returns a *ValidationError collecting every
// violation, or nil if the document is valid.
//
// prior is the currently persisted state of the same layer, or nil for a new
// layer. It participates only in the ramp-up check: an existing experiment's
// traffic_percentage may not decrease unless the incoming status retires it.
// Cross-version immutability and capacity rules are enforced by the sync
// service, which owns prior-state reconciliation.
//
// Validate never panics on well-typed input; malformed content is reported
// as a violation.
func Validate(cfg *LayerConfig, prior *experiment.Layer) error {
	var errs []FieldError

	errs = append(errs, validateLayerFields(cfg)...)

	seen := make(map[string]bool, len(cfg.Experiments))
	for i := range cfg.Experiments {
		exp := &cfg.Experiments[i]
		prefix := fmt.Sprintf("experiments.%s", exp.ExperimentID)
		if exp.ExperimentID == "" {
			prefix = fmt.Sprintf("experiments[%d]", i)
			errs = append(errs, FieldError{
				Field:   prefix + ".experiment_id",
				Message: "experiment id is required",
			})
		} else if seen[exp.ExperimentID] {
			errs = append(errs, FieldError{
				Field:   prefix + ".experiment_id",
				Message: "duplicate experiment id within layer",
			})
		}
		seen[exp.ExperimentID] = true

		errs = append(errs, validateExperiment(cfg, exp, prefix)...)
		errs = append(errs, validateRamp(exp, prior, prefix)...)
	}

	if len(errs) > 0 {
		return &ValidationError{LayerID: cfg.LayerID, Errors: errs}
	}
	return nil
}

func validateLayerFields(cfg *LayerConfig) []FieldError {
	var errs []FieldError

	if cfg.LayerID == "" {
		errs = append(errs, FieldError{
			Field:   "layer_id",
			Message: "layer id is required",
		})
	}
	if cfg.LayerSalt == "" {
		errs = append(errs, FieldError{
			Field:   "layer_salt",
			Message: "layer salt is required",
		})
	}
	if cfg.TotalSlots <= 0 {
		errs = append(errs, FieldError{
			Field:   "total_slots",
			Message: fmt.Sprintf("total slots must be positive, got %d", cfg.TotalSlots),
		})
	}
	if cfg.TotalTrafficPercentage <= 0 || cfg.TotalTrafficPercentage > 1 {
		errs = append(errs, FieldError{
			Field:   "total_traffic_percentage",
			Message: fmt.Sprintf("total traffic percentage must be in (0,1], got %g", cfg.TotalTrafficPercentage),
		})
	}

	return errs
}

func validateExperiment(cfg *LayerConfig, exp *ExperimentConfig, prefix string) []FieldError {
	var errs []FieldError

	if exp.LayerID != cfg.LayerID {
		errs = append(errs, FieldError{
			Field:   prefix + ".layer_id",
			Message: fmt.Sprintf("layer id %q does not match enclosing layer %q", exp.LayerID, cfg.LayerID),
		})
	}

	if !experiment.Status(exp.Status).Valid() {
		errs = append(errs, FieldError{
			Field:   prefix + ".status",
			Message: fmt.Sprintf("unknown status %q", exp.Status),
		})
	}

	splitterType := experiment.SplitterType(exp.SplitterType)
	if !splitterType.Valid() {
		errs = append(errs, FieldError{
			Field:   prefix + ".splitter_type",
			Message: fmt.Sprintf("unknown splitter type %q", exp.SplitterType),
		})
	}

	// Variants: non-empty set of unique names.
	if len(exp.Variants) == 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".variants",
			Message: "at least one variant is required",
		})
	}
	variantSet := make(map[string]bool, len(exp.Variants))
	for _, v := range exp.Variants {
		if variantSet[v] {
			errs = append(errs, FieldError{
				Field:   prefix + ".variants",
				Message: fmt.Sprintf("duplicate variant %q", v),
			})
		}
		variantSet[v] = true
	}

	errs = append(errs, validateAllocation(exp.TrafficAllocation, variantSet, prefix+".traffic_allocation")...)

	if exp.TrafficPercentage < 0 || exp.TrafficPercentage > 1 {
		errs = append(errs, FieldError{
			Field:   prefix + ".traffic_percentage",
			Message: fmt.Sprintf("traffic percentage must be in [0,1], got %g", exp.TrafficPercentage),
		})
	}

	errs = append(errs, validateDimensionMaps(exp, splitterType, variantSet, prefix)...)

	if exp.StartDate != nil && exp.EndDate != nil && !exp.StartDate.Before(*exp.EndDate) {
		errs = append(errs, FieldError{
			Field:   prefix + ".start_date",
			Message: "start date must precede end date",
		})
	}

	return errs
}

// validateAllocation checks one variant->fraction table: keys exactly equal
// the variant set, every fraction in [0,1], and the sum within Epsilon of 1.
func validateAllocation(allocation map[string]float64, variants map[string]bool, field string) []FieldError {
	var errs []FieldError

	if len(allocation) == 0 {
		return append(errs, FieldError{
			Field:   field,
			Message: "allocation table is required",
		})
	}

	var sum float64
	keys := make([]string, 0, len(allocation))
	for k := range allocation {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, variant := range keys {
		fraction := allocation[variant]
		if !variants[variant] {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("allocation references unknown variant %q", variant),
			})
		}
		if fraction < 0 || fraction > 1 {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("fraction for variant %q must be in [0,1], got %g", variant, fraction),
			})
		}
		sum += fraction
	}
	for variant := range variants {
		if _, ok := allocation[variant]; !ok {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("variant %q is missing from the allocation", variant),
			})
		}
	}

	if math.Abs(sum-1.0) > experiment.Epsilon {
		errs = append(errs, FieldError{
			Field:   field,
			Message: fmt.Sprintf("fractions must sum to 1.0, got %g", sum),
		})
	}

	return errs
}

// validateDimensionMaps enforces cross-field consistency between the
// splitter type and the three dimension allocation maps: exactly the
// matching map must be present for dimension splitters, and none for the
// hash splitter. Every inner table obeys the same key/sum rules as
// traffic_allocation.
func validateDimensionMaps(exp *ExperimentConfig, splitterType experiment.SplitterType, variants map[string]bool, prefix string) []FieldError {
	var errs []FieldError

	maps := []struct {
		field       string
		matches     experiment.SplitterType
		allocations map[string]map[string]float64
	}{
		{"segment_allocations", experiment.SplitterSegment, exp.SegmentAllocations},
		{"geo_allocations", experiment.SplitterGeo, exp.GeoAllocations},
		{"stratum_allocations", experiment.SplitterStratum, exp.StratumAllocations},
	}

	for _, m := range maps {
		field := prefix + "." + m.field
		switch {
		case splitterType == m.matches && len(m.allocations) == 0:
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("required for splitter type %q", splitterType),
			})
		case splitterType != m.matches && m.allocations != nil:
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("not allowed for splitter type %q", splitterType),
			})
		case splitterType == m.matches:
			values := make([]string, 0, len(m.allocations))
			for value := range m.allocations {
				values = append(values, value)
			}
			sort.Strings(values)
			for _, value := range values {
				errs = append(errs, validateAllocation(m.allocations[value], variants, fmt.Sprintf("%s.%s", field, value))...)
			}
		}
	}

	return errs
}

// validateRamp enforces monotonic ramp-up against the prior persisted
// version of the experiment: traffic_percentage must not decrease unless the
// experiment is newly created or the incoming change retires it.
func validateRamp(exp *ExperimentConfig, prior *experiment.Layer, prefix string) []FieldError {
	if prior == nil {
		return nil
	}
	existing := prior.Experiment(exp.ExperimentID)
	if existing == nil {
		return nil
	}
	if experiment.Status(exp.Status) == experiment.StatusCompleted {
		return nil
	}
	if exp.TrafficPercentage < existing.TrafficPercentage-experiment.Epsilon {
		return []FieldError{{
			Field: prefix + ".traffic_percentage",
			Message: fmt.Sprintf("ramp down from %g to %g is not allowed",
				existing.TrafficPercentage, exp.TrafficPercentage),
		}}
	}
	return nil
}
