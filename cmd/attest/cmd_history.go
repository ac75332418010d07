package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"attest/internal/config"
	"attest/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the result store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootDir)
		if err != nil {
			return err
		}
		if cfg.Store == "" {
			return fmt.Errorf("no result store configured (set store: in %s)", config.DefaultFile)
		}

		results, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer results.Close()

		runs, err := results.RecentRuns(historyLimit)
		if err != nil {
			return err
		}
		for _, run := range runs {
			started := time.UnixMilli(run.StartedAt).Format(time.RFC3339)
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  %3d tests  %3d failed  %dms\n",
				started, run.Mode, run.Total, run.Failed, run.DurationMs)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "how many runs to show")
	rootCmd.AddCommand(historyCmd)
}
