// Avos is a deterministic traffic allocation and experiment assignment
// engine.
//
// It assigns traffic units to experiment variants inside bounded traffic
// layers, reproducibly and without ever reshuffling units that were already
// bucketed, while validated config syncs keep layer and experiment
// definitions consistent over time.
//
// Usage:
//
//	# Validate layer config documents
//	avos validate --config-dir ./configs
//
//	# Apply config documents to the layer store
//	avos sync --config-dir ./configs --db data/avos.db
//
//	# Compute the assignment for one unit
//	avos assign --db data/avos.db --layer homepage_hero --unit user_42
//
//	# Preview a layer's distribution and SRM verdict over sampled units
//	avos preview --db data/avos.db --layer homepage_hero --samples 10000
//
//	# Show version information
//	avos version
package main

func main() {
	Execute()
}
