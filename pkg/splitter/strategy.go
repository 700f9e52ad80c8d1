package splitter

import (
	"fmt"
	"sort"

	"avos-hq/avos/pkg/experiment"
)

// Exclusion reasons reported on a Decision. They feed logging and metrics;
// none of them is an error condition.
const (
	// ReasonRampGate: the unit fell outside the experiment's traffic
	// percentage.
	ReasonRampGate = "ramp_gate"
	// ReasonNoDimensionValue: a dimension splitter was called without the
	// matching dimension value.
	ReasonNoDimensionValue = "no_dimension_value"
	// ReasonNoDimensionEntry: the supplied dimension value has no entry in
	// the experiment's allocation map.
	ReasonNoDimensionEntry = "no_dimension_entry"
)

// Context carries the caller-supplied dimension values a splitter may need.
// Unused fields are ignored; the hash splitter needs none of them.
type Context struct {
	Segment string
	Geo     string
	Stratum string
}

// Decision is the outcome of a splitter evaluation: either a variant, or an
// exclusion with a reason.
type Decision struct {
	Variant  string
	Excluded bool
	Reason   string
}

func excluded(reason string) Decision {
	return Decision{Excluded: true, Reason: reason}
}

// Splitter deterministically maps a (experiment, unit) pair to a variant or
// to exclusion. Implementations are stateless and safe for concurrent use;
// for a fixed config snapshot, Decide is a pure function of unitID and ctx.
type Splitter interface {
	// Decide evaluates the unit against the experiment. The experiment is a
	// read-only snapshot; implementations must not retain or mutate it.
	Decide(exp *experiment.Experiment, layerSalt, unitID string, ctx Context) Decision

	// Type returns the splitter type this strategy implements.
	Type() experiment.SplitterType
}

// For returns the splitter for the given type. The dispatch set is closed;
// an unknown type is a programming error surfaced as an error, not a panic.
func For(t experiment.SplitterType) (Splitter, error) {
	switch t {
	case experiment.SplitterHash:
		return hashSplitter{}, nil
	case experiment.SplitterSegment:
		return segmentSplitter{}, nil
	case experiment.SplitterGeo:
		return geoSplitter{}, nil
	case experiment.SplitterStratum:
		return stratumSplitter{}, nil
	}
	return nil, fmt.Errorf("unknown splitter type %q", t)
}

// gateAdmits applies the stage-one ramp gate. The gate hash is independent
// of the variant hash so that ramping traffic_percentage never reshuffles
// variants of already-eligible units.
func gateAdmits(exp *experiment.Experiment, layerSalt, unitID string) bool {
	h := HashToUnit(layerSalt, exp.ExperimentID, "gate", unitID)
	return h < exp.TrafficPercentage
}

// variantHash computes the stage-two bucketing hash.
func variantHash(exp *experiment.Experiment, layerSalt, unitID string) float64 {
	return HashToUnit(layerSalt, exp.ExperimentID, "variant", unitID)
}

// pickVariant walks the allocation table in lexicographic variant order,
// accumulating cumulative fraction boundaries, and returns the first variant
// whose upper boundary exceeds h. Floating accumulation can leave the final
// boundary a hair under 1.0, so the last variant is the fallback.
func pickVariant(allocation map[string]float64, h float64) string {
	variants := make([]string, 0, len(allocation))
	for v := range allocation {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	var cumulative float64
	for _, v := range variants {
		cumulative += allocation[v]
		if h < cumulative {
			return v
		}
	}
	return variants[len(variants)-1]
}
