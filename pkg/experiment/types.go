package experiment

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Epsilon is the tolerance used for all floating-point comparisons on
// allocation fractions and traffic percentages (sum checks, ramp
// comparisons, capacity accounting).
const Epsilon = 1e-6

// Status is the lifecycle state of an experiment.
//
// The lifecycle is monotonic: an experiment may move draft -> active ->
// completed, but never leaves completed. Retirement is modeled by the
// completed status; experiments are never physically deleted.
type Status string

const (
	// StatusDraft marks an experiment that is defined but not yet serving.
	StatusDraft Status = "draft"
	// StatusActive marks an experiment that is eligible for assignment.
	StatusActive Status = "active"
	// StatusCompleted marks a retired experiment. Completed experiments are
	// immutable and never receive traffic.
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// SplitterType identifies the deterministic algorithm used to map a unit to
// a variant. The set is closed: adding a dimension type means a new constant
// plus a validator rule, not a new subclass hierarchy.
type SplitterType string

const (
	// SplitterHash buckets purely on the unit id.
	SplitterHash SplitterType = "hash"
	// SplitterSegment buckets using a per-segment allocation table.
	SplitterSegment SplitterType = "segment"
	// SplitterGeo buckets using a per-geo allocation table.
	SplitterGeo SplitterType = "geo"
	// SplitterStratum buckets using a per-stratum allocation table.
	SplitterStratum SplitterType = "stratum"
)

// Valid reports whether t is a known splitter type.
func (t SplitterType) Valid() bool {
	switch t {
	case SplitterHash, SplitterSegment, SplitterGeo, SplitterStratum:
		return true
	}
	return false
}

// Experiment is a single experiment definition within a layer.
//
// Variants, SplitterType, and LayerID are immutable after creation; the sync
// service rejects changes to them. TrafficPercentage may only ramp up while
// the experiment is not completed.
type Experiment struct {
	// ExperimentID uniquely identifies the experiment within its layer.
	ExperimentID string

	// LayerID references the owning layer. Immutable.
	LayerID string

	// Name is a human-readable label.
	Name string

	// Variants is the fixed, non-empty set of variant names. Immutable.
	Variants []string

	// TrafficAllocation maps each variant to its fraction of admitted
	// traffic. Keys are exactly Variants; values sum to 1.0 within Epsilon.
	TrafficAllocation map[string]float64

	// Status is the lifecycle state.
	Status Status

	// SplitterType selects the bucketing algorithm. Immutable.
	SplitterType SplitterType

	// TrafficPercentage is the fraction of the layer's units admitted into
	// the experiment, in [0,1]. Non-decreasing while not completed.
	TrafficPercentage float64

	// SegmentAllocations, GeoAllocations, and StratumAllocations map a
	// dimension value to a per-variant allocation table. Exactly the map
	// matching SplitterType is set for dimension splitters; all are nil for
	// the hash splitter.
	SegmentAllocations map[string]map[string]float64
	GeoAllocations     map[string]map[string]float64
	StratumAllocations map[string]map[string]float64

	// StartDate and EndDate bound the serving window. When set, the
	// experiment serves only while now is within [StartDate, EndDate).
	StartDate *time.Time
	EndDate   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActiveAt reports whether the experiment is serving at the given time:
// status active and, when dates are set, now within [StartDate, EndDate).
func (e *Experiment) ActiveAt(now time.Time) bool {
	if e.Status != StatusActive {
		return false
	}
	if e.StartDate != nil && now.Before(*e.StartDate) {
		return false
	}
	if e.EndDate != nil && !now.Before(*e.EndDate) {
		return false
	}
	return true
}

// SortedVariants returns the variant names in the canonical lexicographic
// order used for cumulative-boundary selection.
func (e *Experiment) SortedVariants() []string {
	out := make([]string, len(e.Variants))
	copy(out, e.Variants)
	sort.Strings(out)
	return out
}

// DimensionAllocations returns the allocation map matching the experiment's
// splitter type, or nil for the hash splitter.
func (e *Experiment) DimensionAllocations() map[string]map[string]float64 {
	switch e.SplitterType {
	case SplitterSegment:
		return e.SegmentAllocations
	case SplitterGeo:
		return e.GeoAllocations
	case SplitterStratum:
		return e.StratumAllocations
	}
	return nil
}

// SlotFootprint returns the number of logical slots the experiment consumes
// in a layer with the given capacity. Slots are aggregate accounting only;
// they are never individually tracked.
func (e *Experiment) SlotFootprint(totalSlots int) int {
	return int(math.Round(e.TrafficPercentage * float64(totalSlots)))
}

// Clone returns a deep copy of the experiment.
func (e *Experiment) Clone() *Experiment {
	out := *e
	out.Variants = append([]string(nil), e.Variants...)
	out.TrafficAllocation = cloneAllocation(e.TrafficAllocation)
	out.SegmentAllocations = cloneDimension(e.SegmentAllocations)
	out.GeoAllocations = cloneDimension(e.GeoAllocations)
	out.StratumAllocations = cloneDimension(e.StratumAllocations)
	out.StartDate = cloneTime(e.StartDate)
	out.EndDate = cloneTime(e.EndDate)
	return &out
}

// Layer is a bounded traffic pool hosting mutually exclusive experiments.
//
// LayerID and LayerSalt are immutable after creation; TotalSlots is fixed as
// well because resizing would reshuffle slot footprints.
type Layer struct {
	// LayerID uniquely identifies the layer.
	LayerID string

	// LayerSalt seeds all hashing for the layer. Immutable; changing it
	// would silently reassign every unit.
	LayerSalt string

	// TotalSlots is the layer's logical slot capacity. Positive.
	TotalSlots int

	// TotalTrafficPercentage caps the combined traffic share of the layer's
	// active experiments, in (0,1].
	TotalTrafficPercentage float64

	// Version is the optimistic concurrency token. Zero means "not yet
	// persisted"; the store advances it on every successful commit.
	Version int64

	// Experiments is the set of experiments owned by the layer. Order is
	// not significant; use SortedExperiments for deterministic traversal.
	Experiments []*Experiment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Experiment returns the experiment with the given id, or nil.
func (l *Layer) Experiment(experimentID string) *Experiment {
	for _, e := range l.Experiments {
		if e.ExperimentID == experimentID {
			return e
		}
	}
	return nil
}

// SortedExperiments returns the layer's experiments ordered by ascending
// experiment id, the canonical cross-experiment precedence order.
func (l *Layer) SortedExperiments() []*Experiment {
	out := make([]*Experiment, len(l.Experiments))
	copy(out, l.Experiments)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExperimentID < out[j].ExperimentID
	})
	return out
}

// ActiveTraffic returns the summed traffic percentage of all non-completed
// experiments, the footprint checked against TotalTrafficPercentage.
func (l *Layer) ActiveTraffic() float64 {
	var sum float64
	for _, e := range l.Experiments {
		if e.Status != StatusCompleted {
			sum += e.TrafficPercentage
		}
	}
	return sum
}

// Clone returns a deep copy of the layer and all its experiments.
func (l *Layer) Clone() *Layer {
	out := *l
	out.Experiments = make([]*Experiment, len(l.Experiments))
	for i, e := range l.Experiments {
		out.Experiments[i] = e.Clone()
	}
	return &out
}

// Info summarizes the layer's logical slot utilization.
type Info struct {
	LayerID              string
	TotalSlots           int
	UsedSlots            int
	FreeSlots            int
	UtilizationPercent   float64
	ActiveExperiments    int
	ExperimentSlotCounts map[string]int
}

// Info returns the layer's utilization report. Completed experiments hold no
// footprint.
func (l *Layer) Info() *Info {
	info := &Info{
		LayerID:              l.LayerID,
		TotalSlots:           l.TotalSlots,
		ExperimentSlotCounts: make(map[string]int, len(l.Experiments)),
	}
	for _, e := range l.Experiments {
		footprint := 0
		if e.Status != StatusCompleted {
			footprint = e.SlotFootprint(l.TotalSlots)
		}
		info.ExperimentSlotCounts[e.ExperimentID] = footprint
		info.UsedSlots += footprint
		if e.Status == StatusActive {
			info.ActiveExperiments++
		}
	}
	info.FreeSlots = info.TotalSlots - info.UsedSlots
	if info.TotalSlots > 0 {
		info.UtilizationPercent = float64(info.UsedSlots) / float64(info.TotalSlots) * 100
	}
	return info
}

// Assignment is the transient record produced when a unit is bucketed into a
// variant. The engine hands it to the assignment logger and keeps no history.
type Assignment struct {
	// AssignmentID is a unique id for the record, assigned at creation.
	AssignmentID string

	LayerID        string
	ExperimentID   string
	ExperimentName string
	UnitID         string
	Variant        string

	// Timestamp is the assignment time in UTC.
	Timestamp time.Time
}

// NewAssignment builds an assignment record with a fresh id.
func NewAssignment(layerID, experimentID, experimentName, unitID, variant string, at time.Time) Assignment {
	return Assignment{
		AssignmentID:   uuid.NewString(),
		LayerID:        layerID,
		ExperimentID:   experimentID,
		ExperimentName: experimentName,
		UnitID:         unitID,
		Variant:        variant,
		Timestamp:      at.UTC(),
	}
}

// AllocationsEqual reports whether two allocation tables assign the same
// fraction to the same variants within Epsilon.
func AllocationsEqual(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for variant, fa := range a {
		fb, ok := b[variant]
		if !ok || math.Abs(fa-fb) > Epsilon {
			return false
		}
	}
	return true
}

// IsWinnerRollout reports whether an allocation table sends all traffic to a
// single variant: exactly one variant at 1.0 and every other at 0.0.
func IsWinnerRollout(allocation map[string]float64) bool {
	winners := 0
	for _, fraction := range allocation {
		switch {
		case math.Abs(fraction-1.0) <= Epsilon:
			winners++
		case math.Abs(fraction) <= Epsilon:
		default:
			return false
		}
	}
	return winners == 1
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

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
