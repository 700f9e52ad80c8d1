package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleLayerYAML = `layer_id: homepage_hero
layer_salt: homepage_salt_2025
total_slots: 100
total_traffic_percentage: 0.8
experiments:
  - experiment_id: hero_button_colors_v1
    name: Hero button colors
    variants: [blue, green]
    traffic_allocation:
      blue: 0.5
      green: 0.5
    status: active
    traffic_percentage: 0.6
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLayerConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "homepage.yaml", sampleLayerYAML)

	cfg, err := LoadLayerConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LayerID != "homepage_hero" {
		t.Errorf("LayerID = %q", cfg.LayerID)
	}
	if cfg.TotalTrafficPercentage != 0.8 {
		t.Errorf("TotalTrafficPercentage = %v, want 0.8", cfg.TotalTrafficPercentage)
	}
	if len(cfg.Experiments) != 1 {
		t.Fatalf("len(Experiments) = %d, want 1", len(cfg.Experiments))
	}

	exp := cfg.Experiments[0]
	if exp.TrafficAllocation["blue"] != 0.5 {
		t.Errorf("TrafficAllocation[blue] = %v", exp.TrafficAllocation["blue"])
	}
	// Defaults fill omitted fields.
	if exp.SplitterType != DefaultSplitterType {
		t.Errorf("SplitterType = %q, want default %q", exp.SplitterType, DefaultSplitterType)
	}
	if exp.LayerID != "homepage_hero" {
		t.Errorf("experiment LayerID = %q, want inherited layer id", exp.LayerID)
	}
}

func TestLoadLayerConfig_MissingFile(t *testing.T) {
	if _, err := LoadLayerConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadLayerConfig_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "layer_id: [unclosed")
	if _, err := LoadLayerConfig(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestLoadLayerConfigsFromDir_Ordering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_checkout.yaml", "layer_id: checkout\nlayer_salt: s2\n")
	writeFile(t, dir, "a_homepage.yml", "layer_id: homepage\nlayer_salt: s1\n")
	writeFile(t, dir, "notes.txt", "not yaml")
	writeFile(t, dir, ".hidden.yaml", "layer_id: hidden\nlayer_salt: s3\n")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	configs, err := LoadLayerConfigsFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(configs) != 2 {
		t.Fatalf("len(configs) = %d, want 2", len(configs))
	}
	if configs[0].LayerID != "homepage" || configs[1].LayerID != "checkout" {
		t.Errorf("order = [%s, %s], want lexicographic filename order",
			configs[0].LayerID, configs[1].LayerID)
	}
}

func TestLoadLayerConfigsFromDir_MissingDir(t *testing.T) {
	if _, err := LoadLayerConfigsFromDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &LayerConfig{
		LayerID:   "checkout",
		LayerSalt: "salt",
		Experiments: []ExperimentConfig{
			{ExperimentID: "exp_1"},
			{ExperimentID: "exp_2", Status: "active", SplitterType: "geo", LayerID: "checkout"},
		},
	}

	ApplyDefaults(cfg)

	if cfg.TotalSlots != DefaultTotalSlots {
		t.Errorf("TotalSlots = %d, want %d", cfg.TotalSlots, DefaultTotalSlots)
	}
	if cfg.TotalTrafficPercentage != DefaultTotalTrafficPercentage {
		t.Errorf("TotalTrafficPercentage = %v, want %v", cfg.TotalTrafficPercentage, DefaultTotalTrafficPercentage)
	}
	if cfg.Experiments[0].Status != DefaultStatus {
		t.Errorf("Status = %q, want default %q", cfg.Experiments[0].Status, DefaultStatus)
	}
	if cfg.Experiments[0].SplitterType != DefaultSplitterType {
		t.Errorf("SplitterType = %q, want default %q", cfg.Experiments[0].SplitterType, DefaultSplitterType)
	}
	if cfg.Experiments[0].LayerID != "checkout" {
		t.Errorf("LayerID = %q, want inherited", cfg.Experiments[0].LayerID)
	}
	// Explicit values are preserved.
	if cfg.Experiments[1].Status != "active" || cfg.Experiments[1].SplitterType != "geo" {
		t.Errorf("explicit values overwritten: %+v", cfg.Experiments[1])
	}

	// Idempotent.
	ApplyDefaults(cfg)
	if cfg.Experiments[1].SplitterType != "geo" {
		t.Error("second ApplyDefaults changed values")
	}
}

func TestToLayer_DeepCopies(t *testing.T) {
	cfg := &LayerConfig{
		LayerID:   "homepage",
		LayerSalt: "salt",
		Experiments: []ExperimentConfig{{
			ExperimentID:      "exp_1",
			LayerID:           "homepage",
			Variants:          []string{"a", "b"},
			TrafficAllocation: map[string]float64{"a": 0.5, "b": 0.5},
		}},
	}

	layer := cfg.ToLayer()
	layer.Experiments[0].TrafficAllocation["a"] = 0.9

	if cfg.Experiments[0].TrafficAllocation["a"] != 0.5 {
		t.Error("ToLayer shares the allocation map with the config")
	}
}
