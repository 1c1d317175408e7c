package cli

import (
	"github.com/spf13/cobra"

	"finledger/internal/services"
)

func newBudgetCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage monthly category budgets",
	}
	cmd.AddCommand(
		newBudgetWriteCommand(opts, "set", "Set or replace a budget limit"),
		newBudgetWriteCommand(opts, "update", "Change the limit of an existing budget"),
		newBudgetListCommand(opts),
		newBudgetDeleteCommand(opts),
		newBudgetCheckCommand(opts),
	)
	return cmd
}

func newBudgetWriteCommand(opts *rootOptions, use, short string) *cobra.Command {
	var in services.BudgetInput

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			write := opts.app.Ledger.SetBudget
			if use == "update" {
				write = opts.app.Ledger.UpdateBudget
			}
			b, err := write(cmd.Context(), h, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		},
	}

	cmd.Flags().StringVar(&in.Category, "category", "", "category (required)")
	cmd.Flags().StringVar(&in.Period, "period", "", "month YYYY-MM (required)")
	cmd.Flags().StringVar(&in.Limit, "limit", "", "limit amount (required)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("limit")

	return cmd
}

func newBudgetListCommand(opts *rootOptions) *cobra.Command {
	var category, period string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List budgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			list, err := opts.app.Ledger.ListBudgets(cmd.Context(), h, category, period)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only this category")
	cmd.Flags().StringVar(&period, "period", "", "only this month YYYY-MM")

	return cmd
}

func newBudgetDeleteCommand(opts *rootOptions) *cobra.Command {
	var category, period string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			if err := opts.app.Ledger.DeleteBudget(cmd.Context(), h, category, period); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), deleted{Status: "deleted", Key: category + "/" + period})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category (required)")
	cmd.Flags().StringVar(&period, "period", "", "month YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func newBudgetCheckCommand(opts *rootOptions) *cobra.Command {
	var category, period string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare a month's spending with its budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			status, err := opts.app.Ledger.CheckBudget(cmd.Context(), h, category, period)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category (required)")
	cmd.Flags().StringVar(&period, "period", "", "month YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}
