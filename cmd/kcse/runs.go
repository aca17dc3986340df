package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kmuchiri/kcse-results/internal/common"
	"github.com/kmuchiri/kcse-results/internal/store"
)

func newRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent processing runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.LoadConfig()
			runs, err := store.Open(cfg.Store.DBPath)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer func() { _ = runs.Close() }()

			recent, err := runs.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recent) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}
			fmt.Printf("%-36s  %-20s  %-7s  %6s  %6s  %s\n",
				"ID", "STARTED", "STATUS", "OK", "FAIL", "OUTPUT")
			for _, r := range recent {
				fmt.Printf("%-36s  %-20s  %-7s  %6d  %6d  %s\n",
					r.ID,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Status,
					r.Processed,
					r.Failed,
					r.OutputFile,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
