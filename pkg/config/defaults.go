package config

// Default values for layer configuration fields.
const (
	// DefaultTotalSlots is the logical slot capacity applied when a layer
	// document omits total_slots.
	DefaultTotalSlots = 100

	// DefaultTotalTrafficPercentage admits the whole layer when
	// total_traffic_percentage is omitted.
	DefaultTotalTrafficPercentage = 1.0

	// DefaultStatus is the lifecycle state for experiments that omit status.
	DefaultStatus = "draft"

	// DefaultSplitterType is the bucketing algorithm for experiments that
	// omit splitter_type.
	DefaultSplitterType = "hash"
)

// ApplyDefaults fills in default values for omitted fields. It mutates the
// config in place and is idempotent.
func ApplyDefaults(cfg *LayerConfig) {
	if cfg.TotalSlots == 0 {
		cfg.TotalSlots = DefaultTotalSlots
	}
	if cfg.TotalTrafficPercentage == 0 {
		cfg.TotalTrafficPercentage = DefaultTotalTrafficPercentage
	}
	for i := range cfg.Experiments {
		exp := &cfg.Experiments[i]
		if exp.LayerID == "" {
			exp.LayerID = cfg.LayerID
		}
		if exp.Status == "" {
			exp.Status = DefaultStatus
		}
		if exp.SplitterType == "" {
			exp.SplitterType = DefaultSplitterType
		}
	}
}
