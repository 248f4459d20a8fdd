package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/oncospatial/litsync/internal/config"
	"github.com/oncospatial/litsync/internal/runlog"
)

func newHistoryCommand() *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past sync runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			store, err := runlog.Open(cfg.RunLog.Path)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(entries))
			return nil
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 20, "maximum number of runs to list")
	return cmd
}

func renderHistory(entries []runlog.Entry) string {
	headers := []string{"Started", "Run ID", "Tier", "Dry", "Outcome", "Fetched", "Created", "Updated", "Skipped", "Failed"}
	aligns := []columnAlignment{
		alignLeft, alignLeft, alignLeft, alignLeft, alignLeft,
		alignRight, alignRight, alignRight, alignRight, alignRight,
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		dry := ""
		if e.DryRun {
			dry = "yes"
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format(time.DateTime),
			shortRunID(e.RunID),
			e.Tier,
			dry,
			e.Outcome,
			strconv.Itoa(e.Fetched),
			strconv.Itoa(e.Created),
			strconv.Itoa(e.Updated),
			strconv.Itoa(e.Skipped),
			strconv.Itoa(e.Failed),
		})
	}
	return renderTable(headers, rows, aligns)
}

// shortRunID trims a UUID to its first segment for display.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
