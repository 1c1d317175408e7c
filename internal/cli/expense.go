package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"finledger/internal/services"
)

func newExpenseCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record and query expenses",
	}
	cmd.AddCommand(
		newExpenseAddCommand(opts),
		newExpenseListCommand(opts),
		newExpenseUpdateCommand(opts),
		newExpenseDeleteCommand(opts),
		newExpenseSummaryCommand(opts),
	)
	return cmd
}

func newExpenseAddCommand(opts *rootOptions) *cobra.Command {
	var in services.ExpenseInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			e, err := opts.app.Ledger.AddExpense(cmd.Context(), h, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}

	cmd.Flags().StringVar(&in.Date, "date", "", "date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&in.Amount, "amount", "", "amount, e.g. 12.50 (required)")
	cmd.Flags().StringVar(&in.Category, "category", "", "category")
	cmd.Flags().StringVar(&in.Subcategory, "subcategory", "", "subcategory")
	cmd.Flags().StringVar(&in.Note, "note", "", "note")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newExpenseListCommand(opts *rootOptions) *cobra.Command {
	var q services.ListQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			list, err := opts.app.Ledger.ListExpenses(cmd.Context(), h, q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}

	addRangeFlags(cmd, &q)
	cmd.Flags().StringVar(&q.Category, "category", "", "only this category")

	return cmd
}

func newExpenseUpdateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			e, err := opts.app.Ledger.UpdateExpense(cmd.Context(), h, id, services.ExpensePatch{
				Date:        optional(cmd, "date"),
				Amount:      optional(cmd, "amount"),
				Category:    optional(cmd, "category"),
				Subcategory: optional(cmd, "subcategory"),
				Note:        optional(cmd, "note"),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}

	cmd.Flags().String("date", "", "new date YYYY-MM-DD")
	cmd.Flags().String("amount", "", "new amount")
	cmd.Flags().String("category", "", "new category")
	cmd.Flags().String("subcategory", "", "new subcategory")
	cmd.Flags().String("note", "", "new note")

	return cmd
}

func newExpenseDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			if err := opts.app.Ledger.DeleteExpense(cmd.Context(), h, id); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), deleted{Status: "deleted", ID: id})
		},
	}
}

func newExpenseSummaryCommand(opts *rootOptions) *cobra.Command {
	var q services.ListQuery

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total expenses per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			summary, err := opts.app.Ledger.SummarizeExpenses(cmd.Context(), h, q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}

	addRangeFlags(cmd, &q)
	cmd.Flags().StringVar(&q.Category, "category", "", "only this category")

	return cmd
}

type deleted struct {
	Status string `json:"status"`
	ID     int64  `json:"id,omitempty"`
	Key    string `json:"key,omitempty"`
}

func addRangeFlags(cmd *cobra.Command, q *services.ListQuery) {
	cmd.Flags().StringVar(&q.From, "from", "", "first date YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVar(&q.To, "to", "", "last date YYYY-MM-DD (inclusive)")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
