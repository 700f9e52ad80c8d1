package experiment

import (
	"testing"
	"time"
)

func TestStatus_Valid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusDraft, true},
		{StatusActive, true},
		{StatusCompleted, true},
		{Status("paused"), false},
		{Status(""), false},
	}
	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("Status(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSplitterType_Valid(t *testing.T) {
	tests := []struct {
		st   SplitterType
		want bool
	}{
		{SplitterHash, true},
		{SplitterSegment, true},
		{SplitterGeo, true},
		{SplitterStratum, true},
		{SplitterType("random"), false},
		{SplitterType(""), false},
	}
	for _, tt := range tests {
		if got := tt.st.Valid(); got != tt.want {
			t.Errorf("SplitterType(%q).Valid() = %v, want %v", tt.st, got, tt.want)
		}
	}
}

func TestExperiment_ActiveAt(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	start := base.Add(24 * time.Hour)
	end := base.Add(48 * time.Hour)

	tests := []struct {
		name   string
		status Status
		start  *time.Time
		end    *time.Time
		now    time.Time
		want   bool
	}{
		{"active no dates", StatusActive, nil, nil, base, true},
		{"draft never serves", StatusDraft, nil, nil, base, false},
		{"completed never serves", StatusCompleted, nil, nil, base, false},
		{"before start", StatusActive, &start, &end, base, false},
		{"at start inclusive", StatusActive, &start, &end, start, true},
		{"inside window", StatusActive, &start, &end, start.Add(time.Hour), true},
		{"at end exclusive", StatusActive, &start, &end, end, false},
		{"after end", StatusActive, &start, &end, end.Add(time.Hour), false},
		{"only start set, after it", StatusActive, &start, nil, end, true},
		{"only end set, before it", StatusActive, nil, &end, base, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Experiment{Status: tt.status, StartDate: tt.start, EndDate: tt.end}
			if got := e.ActiveAt(tt.now); got != tt.want {
				t.Errorf("ActiveAt(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestExperiment_SortedVariants(t *testing.T) {
	e := &Experiment{Variants: []string{"green", "blue", "red"}}
	got := e.SortedVariants()

	want := []string{"blue", "green", "red"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedVariants() = %v, want %v", got, want)
		}
	}
	// The original slice must be untouched.
	if e.Variants[0] != "green" {
		t.Errorf("SortedVariants mutated the receiver: %v", e.Variants)
	}
}

func TestExperiment_SlotFootprint(t *testing.T) {
	tests := []struct {
		traffic float64
		slots   int
		want    int
	}{
		{0.5, 100, 50},
		{0.6, 100, 60},
		{1.0, 100, 100},
		{0.333, 100, 33},
		{0.335, 100, 34},
		{0.0, 100, 0},
		{0.25, 1000, 250},
	}
	for _, tt := range tests {
		e := &Experiment{TrafficPercentage: tt.traffic}
		if got := e.SlotFootprint(tt.slots); got != tt.want {
			t.Errorf("SlotFootprint(%v of %d) = %d, want %d", tt.traffic, tt.slots, got, tt.want)
		}
	}
}

func TestExperiment_Clone_Isolation(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := &Experiment{
		ExperimentID:      "exp_1",
		Variants:          []string{"a", "b"},
		TrafficAllocation: map[string]float64{"a": 0.5, "b": 0.5},
		SegmentAllocations: map[string]map[string]float64{
			"premium": {"a": 1.0, "b": 0.0},
		},
		StartDate: &start,
	}

	clone := orig.Clone()
	clone.Variants[0] = "mutated"
	clone.TrafficAllocation["a"] = 0.9
	clone.SegmentAllocations["premium"]["a"] = 0.1
	*clone.StartDate = start.Add(time.Hour)

	if orig.Variants[0] != "a" {
		t.Error("Clone shares the variants slice")
	}
	if orig.TrafficAllocation["a"] != 0.5 {
		t.Error("Clone shares the allocation map")
	}
	if orig.SegmentAllocations["premium"]["a"] != 1.0 {
		t.Error("Clone shares the dimension allocation map")
	}
	if !orig.StartDate.Equal(start) {
		t.Error("Clone shares the start date pointer")
	}
}

func TestLayer_SortedExperiments(t *testing.T) {
	layer := &Layer{Experiments: []*Experiment{
		{ExperimentID: "zeta"},
		{ExperimentID: "alpha"},
		{ExperimentID: "mid"},
	}}

	got := layer.SortedExperiments()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i].ExperimentID != want[i] {
			t.Fatalf("SortedExperiments order = %v, want %v", got, want)
		}
	}
}

func TestLayer_ActiveTraffic_ExcludesCompleted(t *testing.T) {
	layer := &Layer{Experiments: []*Experiment{
		{ExperimentID: "a", Status: StatusActive, TrafficPercentage: 0.4},
		{ExperimentID: "b", Status: StatusDraft, TrafficPercentage: 0.3},
		{ExperimentID: "c", Status: StatusCompleted, TrafficPercentage: 0.5},
	}}

	got := layer.ActiveTraffic()
	if got < 0.7-Epsilon || got > 0.7+Epsilon {
		t.Errorf("ActiveTraffic() = %v, want 0.7 (completed excluded)", got)
	}
}

func TestLayer_Info(t *testing.T) {
	layer := &Layer{
		LayerID:    "homepage",
		TotalSlots: 100,
		Experiments: []*Experiment{
			{ExperimentID: "a", Status: StatusActive, TrafficPercentage: 0.6},
			{ExperimentID: "b", Status: StatusDraft, TrafficPercentage: 0.2},
			{ExperimentID: "c", Status: StatusCompleted, TrafficPercentage: 0.5},
		},
	}

	info := layer.Info()
	if info.UsedSlots != 80 {
		t.Errorf("UsedSlots = %d, want 80", info.UsedSlots)
	}
	if info.FreeSlots != 20 {
		t.Errorf("FreeSlots = %d, want 20", info.FreeSlots)
	}
	if info.UtilizationPercent != 80 {
		t.Errorf("UtilizationPercent = %v, want 80", info.UtilizationPercent)
	}
	if info.ActiveExperiments != 1 {
		t.Errorf("ActiveExperiments = %d, want 1", info.ActiveExperiments)
	}
	if info.ExperimentSlotCounts["c"] != 0 {
		t.Errorf("completed experiment footprint = %d, want 0", info.ExperimentSlotCounts["c"])
	}
}

func TestNewAssignment(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("PST", -8*3600))
	a := NewAssignment("layer_1", "exp_1", "Test", "user_1", "blue", at)

	if a.AssignmentID == "" {
		t.Error("expected a generated assignment id")
	}
	if a.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", a.Timestamp.Location())
	}
	b := NewAssignment("layer_1", "exp_1", "Test", "user_1", "blue", at)
	if a.AssignmentID == b.AssignmentID {
		t.Error("expected distinct assignment ids for distinct records")
	}
}

func TestAllocationsEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]float64
		want bool
	}{
		{"identical", map[string]float64{"x": 0.5, "y": 0.5}, map[string]float64{"x": 0.5, "y": 0.5}, true},
		{"within epsilon", map[string]float64{"x": 0.5}, map[string]float64{"x": 0.5 + 1e-9}, true},
		{"beyond epsilon", map[string]float64{"x": 0.5}, map[string]float64{"x": 0.51}, false},
		{"different keys", map[string]float64{"x": 0.5}, map[string]float64{"y": 0.5}, false},
		{"different sizes", map[string]float64{"x": 1.0}, map[string]float64{"x": 0.5, "y": 0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllocationsEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("AllocationsEqual = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsWinnerRollout(t *testing.T) {
	tests := []struct {
		name       string
		allocation map[string]float64
		want       bool
	}{
		{"single winner", map[string]float64{"a": 1.0, "b": 0.0}, true},
		{"winner alone", map[string]float64{"a": 1.0}, true},
		{"even split", map[string]float64{"a": 0.5, "b": 0.5}, false},
		{"two winners", map[string]float64{"a": 1.0, "b": 1.0}, false},
		{"partial", map[string]float64{"a": 0.9, "b": 0.1}, false},
		{"empty", map[string]float64{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWinnerRollout(tt.allocation); got != tt.want {
				t.Errorf("IsWinnerRollout(%v) = %v, want %v", tt.allocation, got, tt.want)
			}
		})
	}
}
