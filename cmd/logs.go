package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"auto_update_reviews/internal/domain"
)

func newLogsCommand(configFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent ingestion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}
			a, err := newStoreApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.scheduler.RecentLogs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRunLogs(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func newStatsCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show scheduler state, the last runs and the number of stored reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}
			a, err := newStoreApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.scheduler.Stats(cmd.Context())
			if err != nil {
				return err
			}
			status := a.scheduler.Status()

			rows := [][]string{
				{"Scheduler enabled", strconv.FormatBool(stats.Enabled)},
				{"Schedule", status.Schedule},
				{"Stored reviews", strconv.Itoa(stats.TotalAdded)},
				{"Last run", describeRun(stats.LastRun)},
				{"Last success", describeRun(stats.LastSuccess)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}

func renderRunLogs(entries []*domain.RunLog) string {
	headers := []string{"ID", "Time", "Trigger", "Status", "Found", "Added", "Message"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp.Local().Format(time.DateTime),
			string(e.Trigger),
			string(e.Status),
			strconv.Itoa(e.Found),
			strconv.Itoa(e.Added),
			e.Message,
		})
	}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func describeRun(entry *domain.RunLog) string {
	if entry == nil {
		return "never"
	}
	return fmt.Sprintf("%s %s (%s)", entry.Timestamp.Local().Format(time.DateTime), entry.Status, entry.Message)
}
