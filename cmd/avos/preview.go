package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"avos-hq/avos/pkg/assignment"
	"avos-hq/avos/pkg/splitter"
	"avos-hq/avos/pkg/srm"
	"avos-hq/avos/pkg/storage"
)

var previewFlags struct {
	layerID string
	samples int
	alpha   float64
	segment string
	geo     string
	stratum string
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview a layer's assignment distribution with an SRM verdict",
	Long: `Assign a synthetic sample of unit ids through the layer (without
logging), tally the per-variant distribution for every experiment, and run
a sample-ratio-mismatch test against each experiment's configured
allocation.

Examples:
  # 10k sampled units at the default significance level
  avos preview --db data/avos.db --layer homepage_hero --samples 10000`,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVar(&previewFlags.layerID, "layer", "", "layer id (required)")
	previewCmd.Flags().IntVar(&previewFlags.samples, "samples", 10000, "number of synthetic unit ids")
	previewCmd.Flags().Float64Var(&previewFlags.alpha, "alpha", srm.DefaultAlpha, "SRM significance level")
	previewCmd.Flags().StringVar(&previewFlags.segment, "segment", "", "segment id for segment splitters")
	previewCmd.Flags().StringVar(&previewFlags.geo, "geo", "", "geo code for geo splitters")
	previewCmd.Flags().StringVar(&previewFlags.stratum, "stratum", "", "stratum id for stratum splitters")
	previewCmd.MarkFlagRequired("layer")
}

func runPreview(cmd *cobra.Command, args []string) error {
	store, err := storage.NewSQLiteStore(&storage.SQLiteConfig{Path: dbPath})
	if err != nil {
		return err
	}
	defer store.Close()

	layer, err := store.GetLayer(cmd.Context(), previewFlags.layerID)
	if err != nil {
		return err
	}

	unitIDs := make([]string, previewFlags.samples)
	for i := range unitIDs {
		unitIDs[i] = fmt.Sprintf("preview_unit_%d", i)
	}

	service := assignment.NewService()
	tester := &srm.Tester{Alpha: previewFlags.alpha}
	preview, err := service.PreviewAssignmentMetrics(layer, unitIDs, splitter.Context{
		Segment: previewFlags.segment,
		Geo:     previewFlags.geo,
		Stratum: previewFlags.stratum,
	}, tester)
	if err != nil {
		return err
	}

	fmt.Printf("layer %s: %d units, %d assigned, %d unassigned\n",
		layer.LayerID, preview.TotalUnits, preview.Assigned, preview.Unassigned)

	experimentIDs := make([]string, 0, len(preview.Experiments))
	for id := range preview.Experiments {
		experimentIDs = append(experimentIDs, id)
	}
	sort.Strings(experimentIDs)

	for _, id := range experimentIDs {
		ep := preview.Experiments[id]
		fmt.Printf("\nexperiment %s\n", id)
		variants := make([]string, 0, len(ep.Counts))
		for v := range ep.Counts {
			variants = append(variants, v)
		}
		sort.Strings(variants)
		for _, v := range variants {
			fmt.Printf("  %-20s %d (expected %.1f%%)\n", v, ep.Counts[v], ep.Expected[v]*100)
		}
		if ep.Verdict != nil {
			fmt.Printf("  srm: %s\n", ep.Verdict)
		}
	}
	return nil
}
