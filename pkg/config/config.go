package config

import (
	"time"

	"avos-hq/avos/pkg/experiment"
)

// LayerConfig is the YAML document describing one layer and the experiments
// it owns.
type LayerConfig struct {
	// LayerID uniquely identifies the layer. Immutable once created.
	LayerID string `yaml:"layer_id"`

	// LayerSalt seeds all hashing for the layer. Immutable once created.
	LayerSalt string `yaml:"layer_salt"`

	// TotalSlots is the layer's logical slot capacity.
	// Default: 100
	TotalSlots int `yaml:"total_slots"`

	// TotalTrafficPercentage caps the combined traffic share of the layer's
	// active experiments, as a fraction in (0,1].
	// Default: 1.0
	TotalTrafficPercentage float64 `yaml:"total_traffic_percentage"`

	// Experiments is the list of experiment definitions for this layer.
	Experiments []ExperimentConfig `yaml:"experiments"`
}

// ExperimentConfig is one experiment definition within a layer document.
type ExperimentConfig struct {
	// ExperimentID uniquely identifies the experiment within the layer.
	ExperimentID string `yaml:"experiment_id"`

	// LayerID must match the enclosing layer document. Immutable.
	LayerID string `yaml:"layer_id"`

	// Name is a human-readable label.
	Name string `yaml:"name"`

	// Variants is the fixed set of variant names. Immutable once created.
	Variants []string `yaml:"variants"`

	// TrafficAllocation maps each variant to its fraction of admitted
	// traffic. Keys must equal Variants; values must sum to 1.0.
	TrafficAllocation map[string]float64 `yaml:"traffic_allocation"`

	// Status is one of "draft", "active", "completed".
	// Default: "draft"
	Status string `yaml:"status"`

	// SplitterType is one of "hash", "segment", "geo", "stratum".
	// Immutable once created.
	// Default: "hash"
	SplitterType string `yaml:"splitter_type"`

	// TrafficPercentage is the fraction of layer units admitted into the
	// experiment, in [0,1]. May only increase while not completed.
	TrafficPercentage float64 `yaml:"traffic_percentage"`

	// SegmentAllocations, GeoAllocations, and StratumAllocations map a
	// dimension value to a per-variant allocation table. Exactly the map
	// matching SplitterType must be present for dimension splitters.
	SegmentAllocations map[string]map[string]float64 `yaml:"segment_allocations"`
	GeoAllocations     map[string]map[string]float64 `yaml:"geo_allocations"`
	StratumAllocations map[string]map[string]float64 `yaml:"stratum_allocations"`

	// StartDate and EndDate bound the serving window. When both are set,
	// StartDate must precede EndDate.
	StartDate *time.Time `yaml:"start_date"`
	EndDate   *time.Time `yaml:"end_date"`
}

// ToExperiment converts the definition into a domain experiment. Timestamps
// are left zero; the sync service stamps them on commit.
func (c *ExperimentConfig) ToExperiment() *experiment.Experiment {
	exp := &experiment.Experiment{
		ExperimentID:      c.ExperimentID,
		LayerID:           c.LayerID,
		Name:              c.Name,
		Variants:          append([]string(nil), c.Variants...),
		TrafficAllocation: cloneAllocation(c.TrafficAllocation),
		Status:            experiment.Status(c.Status),
		SplitterType:      experiment.SplitterType(c.SplitterType),
		TrafficPercentage: c.TrafficPercentage,
	}
	exp.SegmentAllocations = cloneDimension(c.SegmentAllocations)
	exp.GeoAllocations = cloneDimension(c.GeoAllocations)
	exp.StratumAllocations = cloneDimension(c.StratumAllocations)
	if c.StartDate != nil {
		t := c.StartDate.UTC()
		exp.StartDate = &t
	}
	if c.EndDate != nil {
		t := c.EndDate.UTC()
		exp.EndDate = &t
	}
	return exp
}

// ToLayer converts the document into a domain layer with all its
// experiments. Version and timestamps are left zero.
func (c *LayerConfig) ToLayer() *experiment.Layer {
	layer := &experiment.Layer{
		LayerID:                c.LayerID,
		LayerSalt:              c.LayerSalt,
		TotalSlots:             c.TotalSlots,
		TotalTrafficPercentage: c.TotalTrafficPercentage,
	}
	for i := range c.Experiments {
		layer.Experiments = append(layer.Experiments, c.Experiments[i].ToExperiment())
	}
	return layer
}

// Experiment returns the experiment config with the given id, or nil.
func (c *LayerConfig) Experiment(experimentID string) *ExperimentConfig {
	for i := range c.Experiments {
		if c.Experiments[i].ExperimentID == experimentID {
			return &c.Experiments[i]
		}
	}
	return nil
}

func cloneAllocation(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneDimension(m map[string]map[string]float64) map[string]map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]map[string]float64, len(m))
	for k, v := range m {
		out[k] = cloneAllocation(v)
	}
	return out
}
