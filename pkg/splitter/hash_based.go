package splitter

import "avos-hq/avos/pkg/experiment"

// hashSplitter buckets purely on the unit id: ramp gate, then a cumulative
// boundary walk over the experiment's traffic allocation.
type hashSplitter struct{}

func (hashSplitter) Type() experiment.SplitterType { return experiment.SplitterHash }

func (hashSplitter) Decide(exp *experiment.Experiment, layerSalt, unitID string, _ Context) Decision {
	if !gateAdmits(exp, layerSalt, unitID) {
		return excluded(ReasonRampGate)
	}
	h := variantHash(exp, layerSalt, unitID)
	return Decision{Variant: pickVariant(exp.TrafficAllocation, h)}
}
