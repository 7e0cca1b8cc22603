package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past pipeline runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			runs, err := ledger.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.InputFile,
					run.Status,
					formatTimestamp(run.UpdatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Input", "Status", "Updated"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its stage outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			run, err := ledger.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s (%s)\n", run.ID, run.Status)
			fmt.Fprintf(out, "input: %s\n", run.InputFile)
			if run.Error != "" {
				fmt.Fprintf(out, "error: %s\n", run.Error)
			}

			stages, err := ledger.ListStages(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if len(stages) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(stages))
			for _, stage := range stages {
				detail := stage.Detail
				if stage.Error != "" {
					detail = stage.Error
				}
				rows = append(rows, []string{
					stage.Stage,
					stage.Status,
					formatStageDuration(stage.StartedAt, stage.FinishedAt),
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Status", "Duration", "Detail"}, rows, 3))
			return nil
		},
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatStageDuration(started, finished time.Time) string {
	if started.IsZero() || finished.IsZero() {
		return ""
	}
	return finished.Sub(started).Round(time.Second).String()
}
