package splitter

import "avos-hq/avos/pkg/experiment"

// decideByDimension is the shared stage-two for segment, geo, and stratum
// splitters: look up the caller-supplied dimension value in the experiment's
// allocation map, then run the same cumulative boundary walk over the inner
// table. A missing value or missing entry excludes the unit.
func decideByDimension(exp *experiment.Experiment, layerSalt, unitID, dimensionValue string, allocations map[string]map[string]float64) Decision {
	if dimensionValue == "" {
		return excluded(ReasonNoDimensionValue)
	}
	allocation, ok := allocations[dimensionValue]
	if !ok {
		return excluded(ReasonNoDimensionEntry)
	}
	if !gateAdmits(exp, layerSalt, unitID) {
		return excluded(ReasonRampGate)
	}
	h := variantHash(exp, layerSalt, unitID)
	return Decision{Variant: pickVariant(allocation, h)}
}

// segmentSplitter buckets within the allocation table of the caller's
// segment.
type segmentSplitter struct{}

func (segmentSplitter) Type() experiment.SplitterType { return experiment.SplitterSegment }

func (segmentSplitter) Decide(exp *experiment.Experiment, layerSalt, unitID string, ctx Context) Decision {
	return decideByDimension(exp, layerSalt, unitID, ctx.Segment, exp.SegmentAllocations)
}

// geoSplitter buckets within the allocation table of the caller's geo code.
type geoSplitter struct{}

func (geoSplitter) Type() experiment.SplitterType { return experiment.SplitterGeo }

func (geoSplitter) Decide(exp *experiment.Experiment, layerSalt, unitID string, ctx Context) Decision {
	return decideByDimension(exp, layerSalt, unitID, ctx.Geo, exp.GeoAllocations)
}

// stratumSplitter buckets within the allocation table of the caller's
// stratum.
type stratumSplitter struct{}

func (stratumSplitter) Type() experiment.SplitterType { return experiment.SplitterStratum }

func (stratumSplitter) Decide(exp *experiment.Experiment, layerSalt, unitID string, ctx Context) Decision {
	return decideByDimension(exp, layerSalt, unitID, ctx.Stratum, exp.StratumAllocations)
}
