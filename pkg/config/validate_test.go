package config

import (
	"strings"
	"testing"
	"time"

	"avos-hq/avos/pkg/experiment"
)

func validLayerConfig() *LayerConfig {
	return &LayerConfig{
		LayerID:                "homepage_hero",
		LayerSalt:              "homepage_salt_2025",
		TotalSlots:             100,
		TotalTrafficPercentage: 1.0,
		Experiments: []ExperimentConfig{{
			ExperimentID:      "hero_button_colors_v1",
			LayerID:           "homepage_hero",
			Name:              "Hero button colors",
			Variants:          []string{"blue", "green"},
			TrafficAllocation: map[string]float64{"blue": 0.5, "green": 0.5},
			Status:            "active",
			SplitterType:      "hash",
			TrafficPercentage: 0.6,
		}},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validLayerConfig(), nil); err != nil {
		t.Errorf("expected valid config to pass validation, got: %v", err)
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	cfg := &LayerConfig{
		// Missing layer_id and layer_salt, zero slots, zero traffic.
		Experiments: []ExperimentConfig{{
			ExperimentID: "exp_1",
			// Missing variants and allocation, bad status.
			Status:       "paused",
			SplitterType: "hash",
		}},
	}

	err := Validate(cfg, nil)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Errors) < 5 {
		t.Errorf("expected all violations collected, got %d: %v", len(verr.Errors), verr)
	}
	if !strings.Contains(verr.Error(), "validation failed with") {
		t.Errorf("error message should mention the count: %s", verr.Error())
	}
}

func TestValidate_LayerFields(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*LayerConfig)
		wantField string
	}{
		{"missing layer id", func(c *LayerConfig) { c.LayerID = ""; c.Experiments = nil }, "layer_id"},
		{"missing salt", func(c *LayerConfig) { c.LayerSalt = "" }, "layer_salt"},
		{"zero slots", func(c *LayerConfig) { c.TotalSlots = 0 }, "total_slots"},
		{"negative slots", func(c *LayerConfig) { c.TotalSlots = -5 }, "total_slots"},
		{"zero traffic", func(c *LayerConfig) { c.TotalTrafficPercentage = 0 }, "total_traffic_percentage"},
		{"traffic above one", func(c *LayerConfig) { c.TotalTrafficPercentage = 1.5 }, "total_traffic_percentage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validLayerConfig()
			tt.mutate(cfg)
			assertFieldError(t, Validate(cfg, nil), tt.wantField)
		})
	}
}

func TestValidate_ExperimentFields(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*ExperimentConfig)
		wantField string
	}{
		{
			"layer id mismatch",
			func(e *ExperimentConfig) { e.LayerID = "other_layer" },
			"experiments.hero_button_colors_v1.layer_id",
		},
		{
			"unknown status",
			func(e *ExperimentConfig) { e.Status = "paused" },
			"experiments.hero_button_colors_v1.status",
		},
		{
			"unknown splitter type",
			func(e *ExperimentConfig) { e.SplitterType = "random" },
			"experiments.hero_button_colors_v1.splitter_type",
		},
		{
			"no variants",
			func(e *ExperimentConfig) { e.Variants = nil; e.TrafficAllocation = nil },
			"experiments.hero_button_colors_v1.variants",
		},
		{
			"duplicate variants",
			func(e *ExperimentConfig) { e.Variants = []string{"blue", "blue"} },
			"experiments.hero_button_colors_v1.variants",
		},
		{
			"traffic percentage above one",
			func(e *ExperimentConfig) { e.TrafficPercentage = 1.2 },
			"experiments.hero_button_colors_v1.traffic_percentage",
		},
		{
			"negative traffic percentage",
			func(e *ExperimentConfig) { e.TrafficPercentage = -0.1 },
			"experiments.hero_button_colors_v1.traffic_percentage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validLayerConfig()
			tt.mutate(&cfg.Experiments[0])
			assertFieldError(t, Validate(cfg, nil), tt.wantField)
		})
	}
}

func TestValidate_Allocation(t *testing.T) {
	tests := []struct {
		name       string
		allocation map[string]float64
		wantMsg    string
	}{
		{"sum below one", map[string]float64{"blue": 0.5, "green": 0.4}, "sum to 1.0"},
		{"sum above one", map[string]float64{"blue": 0.6, "green": 0.6}, "sum to 1.0"},
		{"unknown variant", map[string]float64{"blue": 0.5, "red": 0.5}, "unknown variant"},
		{"missing variant", map[string]float64{"blue": 1.0}, "missing from the allocation"},
		{"negative fraction", map[string]float64{"blue": -0.5, "green": 1.5}, "must be in [0,1]"},
		{"empty table", nil, "allocation table is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validLayerConfig()
			cfg.Experiments[0].TrafficAllocation = tt.allocation
			err := Validate(cfg, nil)
			if err == nil {
				t.Fatal("expected validation to fail")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_AllocationSumWithinEpsilon(t *testing.T) {
	cfg := validLayerConfig()
	cfg.Experiments[0].Variants = []string{"a", "b", "c"}
	cfg.Experiments[0].TrafficAllocation = map[string]float64{
		"a": 1.0 / 3, "b": 1.0 / 3, "c": 1.0 / 3,
	}
	if err := Validate(cfg, nil); err != nil {
		t.Errorf("thirds summing to ~1.0 should pass, got: %v", err)
	}
}

func TestValidate_DuplicateExperimentID(t *testing.T) {
	cfg := validLayerConfig()
	dup := cfg.Experiments[0]
	cfg.Experiments = append(cfg.Experiments, dup)
	assertFieldError(t, Validate(cfg, nil), "experiments.hero_button_colors_v1.experiment_id")
}

func TestValidate_DimensionMaps(t *testing.T) {
	table := map[string]map[string]float64{
		"US": {"blue": 0.5, "green": 0.5},
	}

	tests := []struct {
		name      string
		mutate    func(*ExperimentConfig)
		wantField string
		wantMsg   string
	}{
		{
			"geo splitter missing geo map",
			func(e *ExperimentConfig) { e.SplitterType = "geo" },
			"experiments.hero_button_colors_v1.geo_allocations",
			"required for splitter type",
		},
		{
			"hash splitter with segment map",
			func(e *ExperimentConfig) { e.SegmentAllocations = table },
			"experiments.hero_button_colors_v1.segment_allocations",
			"not allowed for splitter type",
		},
		{
			"geo splitter with stratum map",
			func(e *ExperimentConfig) {
				e.SplitterType = "geo"
				e.GeoAllocations = table
				e.StratumAllocations = table
			},
			"experiments.hero_button_colors_v1.stratum_allocations",
			"not allowed for splitter type",
		},
		{
			"inner table bad sum",
			func(e *ExperimentConfig) {
				e.SplitterType = "segment"
				e.SegmentAllocations = map[string]map[string]float64{
					"premium": {"blue": 0.5, "green": 0.4},
				}
			},
			"experiments.hero_button_colors_v1.segment_allocations.premium",
			"sum to 1.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validLayerConfig()
			tt.mutate(&cfg.Experiments[0])
			err := Validate(cfg, nil)
			assertFieldError(t, err, tt.wantField)
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_ValidDimensionSplitter(t *testing.T) {
	cfg := validLayerConfig()
	cfg.Experiments[0].SplitterType = "geo"
	cfg.Experiments[0].GeoAllocations = map[string]map[string]float64{
		"US": {"blue": 0.5, "green": 0.5},
		"DE": {"blue": 1.0, "green": 0.0},
	}
	if err := Validate(cfg, nil); err != nil {
		t.Errorf("expected valid geo config to pass, got: %v", err)
	}
}

func TestValidate_DateWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	cfg := validLayerConfig()
	cfg.Experiments[0].StartDate = &start
	cfg.Experiments[0].EndDate = &end
	assertFieldError(t, Validate(cfg, nil), "experiments.hero_button_colors_v1.start_date")
}

func TestValidate_RampAgainstPrior(t *testing.T) {
	prior := &experiment.Layer{
		LayerID: "homepage_hero",
		Experiments: []*experiment.Experiment{{
			ExperimentID:      "hero_button_colors_v1",
			TrafficPercentage: 0.6,
		}},
	}

	tests := []struct {
		name    string
		traffic float64
		status  string
		wantErr bool
	}{
		{"ramp up", 0.8, "active", false},
		{"unchanged", 0.6, "active", false},
		{"ramp down", 0.4, "active", true},
		{"ramp down on retirement", 0.4, "completed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validLayerConfig()
			cfg.Experiments[0].TrafficPercentage = tt.traffic
			cfg.Experiments[0].Status = tt.status
			if tt.status == "completed" {
				// Winner rollouts accompany retirement in practice; keep the
				// structural rules satisfied.
				cfg.Experiments[0].TrafficAllocation = map[string]float64{"blue": 1.0, "green": 0.0}
			}

			err := Validate(cfg, prior)
			if tt.wantErr && err == nil {
				t.Fatal("expected ramp-down rejection")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr && !strings.Contains(err.Error(), "ramp down") {
				t.Errorf("error %q should mention ramp down", err.Error())
			}
		})
	}
}

func TestValidate_NewExperimentIgnoresPrior(t *testing.T) {
	prior := &experiment.Layer{
		LayerID: "homepage_hero",
		Experiments: []*experiment.Experiment{{
			ExperimentID:      "some_other_experiment",
			TrafficPercentage: 0.9,
		}},
	}
	cfg := validLayerConfig()
	cfg.Experiments[0].TrafficPercentage = 0.1
	if err := Validate(cfg, prior); err != nil {
		t.Errorf("new experiment should not be ramp-checked, got: %v", err)
	}
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a violation on %q", field)
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	for _, fe := range verr.Errors {
		if fe.Field == field {
			return
		}
	}
	t.Errorf("no violation on field %q in: %v", field, verr)
}
