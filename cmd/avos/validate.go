package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"avos-hq/avos/pkg/config"
)

var validateFlags struct {
	configDir string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate layer config documents",
	Long: `Check every layer document in a directory against the engine's
structural and semantic invariants: slot and traffic bounds, allocation
sums, variant uniqueness, splitter/dimension-map consistency, and date
windows.

All violations in a document are reported together, so one run surfaces
every problem.

Examples:
  # Validate all documents in a directory
  avos validate --config-dir ./configs`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateFlags.configDir, "config-dir", "./configs", "directory of layer YAML documents")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configs, err := config.LoadLayerConfigsFromDir(validateFlags.configDir)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return fmt.Errorf("no layer documents found in %q", validateFlags.configDir)
	}

	failed := 0
	for i := range configs {
		cfg := &configs[i]
		if err := config.Validate(cfg, nil); err != nil {
			failed++
			fmt.Printf("FAIL %s\n%v\n", cfg.LayerID, err)
			continue
		}
		fmt.Printf("OK   %s (%d experiments)\n", cfg.LayerID, len(cfg.Experiments))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d layer documents failed validation", failed, len(configs))
	}
	fmt.Printf("all %d layer documents valid\n", len(configs))
	return nil
}
