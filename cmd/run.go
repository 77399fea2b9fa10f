package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRunCommand(configFlag *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion pass now and print its counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			result, runErr := a.scheduler.TriggerManualRun(cmd.Context())

			headers := []string{"Found", "Accepted", "Unique", "Added", "Rejected", "Fallback"}
			rows := [][]string{{
				strconv.Itoa(result.Found),
				strconv.Itoa(result.Accepted),
				strconv.Itoa(result.Unique),
				strconv.Itoa(result.Added),
				strconv.Itoa(result.Rejected),
				strconv.FormatBool(result.FallbackUsed),
			}}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}))
			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "dry run: nothing was written to the database")
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Use in-memory stores instead of the database")
	return cmd
}
