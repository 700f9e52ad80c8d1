package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "avos",
	Short: "Avos - deterministic traffic allocation and experiment assignment",
	Long: `Avos assigns traffic units to experiment variants inside bounded traffic
layers, deterministically and reproducibly.

It provides:
  - Hash, segment, geo, and stratum splitters with two-stage ramp gating
  - Config validation guarding allocation sums, immutability, and ramps
  - Safe online config sync with optimistic per-layer versioning
  - Assignment logging and sample-ratio-mismatch detection`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "data/avos.db", "layer store database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
