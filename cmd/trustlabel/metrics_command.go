package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show queue metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			metrics, err := apiClient.Metrics(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, metrics)
			}

			rows := [][]string{
				{"Pending", strconv.Itoa(metrics.TotalPending)},
				{"Assigned", strconv.Itoa(metrics.TotalAssigned)},
				{"In progress", strconv.Itoa(metrics.TotalInProgress)},
				{"Completed", strconv.Itoa(metrics.TotalCompleted)},
				{"Active", strconv.Itoa(metrics.TotalActive)},
				{"Overdue", strconv.Itoa(metrics.OverdueCount)},
				{"Avg processing (min)", fmt.Sprintf("%.0f", metrics.AvgProcessingMin)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Metric", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}
