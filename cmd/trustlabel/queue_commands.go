package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trustlabel/internal/api"
	"trustlabel/internal/client"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the validation queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueAssignCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueHistoryCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var opts client.ListOptions
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			page, err := apiClient.ListQueue(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, page)
			}

			if len(page.Entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}

			rows := make([][]string, 0, len(page.Entries))
			for _, entry := range page.Entries {
				rows = append(rows, []string{
					shortID(entry.ID),
					entry.ProductID,
					entry.Category,
					entry.Priority,
					entry.Status,
					orDash(entry.AssignedToID),
					formatDue(entry.DueDate),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Product", "Category", "Priority", "Status", "Assignee", "Due"},
				rows,
				nil,
			))
			fmt.Fprintf(out, "Page %d of %d (%d entries)\n",
				page.Pagination.Page, page.Pagination.Pages, page.Pagination.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Filter by category")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Entries per page")
	cmd.Flags().StringVar(&opts.SortBy, "sort", "", "Sort field (createdAt, dueDate, priority, status)")
	cmd.Flags().StringVar(&opts.SortOrder, "order", "", "Sort order (asc, desc)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")

	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var req client.CreateEntryRequest

	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Submit a product for validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ProductID = strings.TrimSpace(args[0])
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			entry, err := apiClient.CreateEntry(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created queue entry %s (%s, due %s)\n",
				entry.ID, entry.Status, formatDue(entry.DueDate))
			if entry.AssignedToID != "" {
				fmt.Fprintf(out, "Auto-assigned to %s\n", entry.AssignedToID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Category, "category", "", "Validation category (required)")
	cmd.Flags().StringVar(&req.Priority, "priority", "", "Priority (URGENT, HIGH, NORMAL, LOW)")
	cmd.Flags().IntVar(&req.EstimatedDuration, "estimate", 0, "Estimated duration in minutes")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Free-form notes")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show one queue entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			entry, err := apiClient.GetEntry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entry)
			}
			printEntry(cmd, entry)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newQueueAssignCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign <entry-id> <validator-id>",
		Short: "Assign a pending entry to a validator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			entry, err := apiClient.Assign(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entry %s assigned to %s\n", shortID(entry.ID), entry.AssignedToID)
			return nil
		},
	}
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "status <entry-id> <new-status>",
		Short: "Advance an entry through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			entry, err := apiClient.UpdateStatus(cmd.Context(), args[0], strings.ToUpper(args[1]), reason)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Entry %s is now %s\n", shortID(entry.ID), entry.Status)
			if entry.ActualMinutes != nil {
				fmt.Fprintf(out, "Actual duration: %d minutes\n", *entry.ActualMinutes)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the audit trail")
	return cmd
}

func newQueueHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history <entry-id>",
		Short: "Show the audit trail of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			records, err := apiClient.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, records)
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					formatDue(record.CreatedAt),
					record.Action,
					orDash(record.PreviousStatus),
					record.NewStatus,
					record.PerformedByID,
					record.Reason,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"When", "Action", "From", "To", "By", "Reason"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func printEntry(cmd *cobra.Command, entry *api.QueueEntry) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:         %s\n", entry.ID)
	fmt.Fprintf(out, "Product:    %s\n", entry.ProductID)
	fmt.Fprintf(out, "Category:   %s\n", entry.Category)
	fmt.Fprintf(out, "Priority:   %s\n", entry.Priority)
	fmt.Fprintf(out, "Status:     %s\n", entry.Status)
	fmt.Fprintf(out, "Requested:  %s\n", entry.RequestedByID)
	fmt.Fprintf(out, "Assignee:   %s\n", orDash(entry.AssignedToID))
	fmt.Fprintf(out, "Due:        %s\n", formatDue(entry.DueDate))
	fmt.Fprintf(out, "Estimate:   %d minutes\n", entry.EstimatedMinutes)
	if entry.ActualMinutes != nil {
		fmt.Fprintf(out, "Actual:     %d minutes\n", *entry.ActualMinutes)
	}
	if entry.Notes != "" {
		fmt.Fprintf(out, "Notes:      %s\n", entry.Notes)
	}
}

func writeJSON(cmd *cobra.Command, payload any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDue(value string) string {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04")
}
