package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spboyer/staffeval/internal/models"
	"github.com/spboyer/staffeval/internal/verdict"
	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and seed role assignment history",
	}
	cmd.AddCommand(newHistoryListCommand(opts))
	cmd.AddCommand(newHistoryRecordCommand(opts))
	return cmd
}

func newHistoryListCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <role>",
		Short: "List the most recent assignments of a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			records, err := a.svc.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No assignments recorded for %s\n", args[0]) //nolint:errcheck
				return nil
			}
			t := newTable("MODEL", "ASSIGNED", "REMOVED", "SCORE")
			for _, r := range records {
				removed := "current"
				if r.RemovedAt != nil {
					removed = r.RemovedAt.Format(time.DateTime)
				}
				t.add(r.ModelID, r.AssignedAt.Format(time.DateTime), removed, strconv.FormatFloat(r.InterviewAvgScore, 'f', 2, 64))
			}
			t.render(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", verdict.HistoryDepth, "Number of records to show")
	return cmd
}

func newHistoryRecordCommand(opts *rootOptions) *cobra.Command {
	var rec models.AssignmentRecord

	cmd := &cobra.Command{
		Use:   "record <role>",
		Short: "Append an assignment to a role's history",
		Long: `Append an assignment to a role's history.

Use this to seed the current holder of a role before its first interview.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec.Role = args[0]

			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if err := a.svc.RecordAssignment(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s\n", rec.ModelID, rec.Role) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&rec.ModelID, "model", "", "Model id of the assignee")
	cmd.Flags().Float64Var(&rec.InterviewAvgScore, "score", 0, "Average interview score of the assignee")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
