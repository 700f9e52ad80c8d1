package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"avos-hq/avos/pkg/config"
	"avos-hq/avos/pkg/storage"
	syncsvc "avos-hq/avos/pkg/sync"
)

var syncFlags struct {
	configDir string
	watch     bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Apply layer config documents to the store",
	Long: `Reconcile layer documents against persisted state and commit the
accepted change sets. Each layer is applied atomically; a rejected layer
reports every violated rule and leaves its persisted state untouched.

Examples:
  # One-shot sync
  avos sync --config-dir ./configs --db data/avos.db

  # Keep watching the directory and re-sync on change
  avos sync --config-dir ./configs --db data/avos.db --watch`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncFlags.configDir, "config-dir", "./configs", "directory of layer YAML documents")
	syncCmd.Flags().BoolVar(&syncFlags.watch, "watch", false, "watch the directory and re-sync on change")
}

func runSync(cmd *cobra.Command, args []string) error {
	store, err := storage.NewSQLiteStore(&storage.SQLiteConfig{Path: dbPath})
	if err != nil {
		return err
	}
	defer store.Close()

	service := syncsvc.NewService(store)
	ctx := cmd.Context()

	configs, err := config.LoadLayerConfigsFromDir(syncFlags.configDir)
	if err != nil {
		return err
	}
	result, err := service.Apply(ctx, configs)
	if err != nil {
		return err
	}
	printSyncResult(result)

	if !syncFlags.watch {
		if len(result.Rejections) > 0 {
			return fmt.Errorf("%d layer change sets rejected", len(result.Rejections))
		}
		return nil
	}

	watcher, err := syncsvc.NewWatcher(syncFlags.configDir, service)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Printf("watching %s for changes (ctrl-c to stop)\n", syncFlags.configDir)
	<-ctx.Done()
	return nil
}

func printSyncResult(result *syncsvc.Result) {
	for _, change := range result.Applied {
		if change.ExperimentID == "" {
			fmt.Printf("applied  %-22s %s\n", change.Op, change.LayerID)
		} else {
			fmt.Printf("applied  %-22s %s/%s\n", change.Op, change.LayerID, change.ExperimentID)
		}
	}
	for _, rej := range result.Rejections {
		fmt.Printf("rejected %s\n%v\n", rej.LayerID, rej.Err)
	}
	if len(result.Applied) == 0 && len(result.Rejections) == 0 {
		fmt.Println("no changes")
	}
}
