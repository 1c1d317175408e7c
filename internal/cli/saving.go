package cli

import (
	"github.com/spf13/cobra"

	"finledger/internal/services"
)

func newSavingCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saving",
		Short: "Record and query savings",
	}
	cmd.AddCommand(
		newSavingAddCommand(opts),
		newSavingListCommand(opts),
		newSavingUpdateCommand(opts),
		newSavingDeleteCommand(opts),
	)
	return cmd
}

func newSavingAddCommand(opts *rootOptions) *cobra.Command {
	var in services.SavingInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a saving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			sv, err := opts.app.Ledger.AddSaving(cmd.Context(), h, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sv)
		},
	}

	cmd.Flags().StringVar(&in.Date, "date", "", "date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&in.Amount, "amount", "", "amount (required)")
	cmd.Flags().StringVar(&in.Source, "source", "", "source, e.g. salary")
	cmd.Flags().StringVar(&in.Note, "note", "", "note")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newSavingListCommand(opts *rootOptions) *cobra.Command {
	var q services.ListQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List savings by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			list, err := opts.app.Ledger.ListSavings(cmd.Context(), h, q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}

	addRangeFlags(cmd, &q)
	cmd.Flags().StringVar(&q.Category, "source", "", "only this source")

	return cmd
}

func newSavingUpdateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a saving",
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
			sv, err := opts.app.Ledger.UpdateSaving(cmd.Context(), h, id, services.SavingPatch{
				Date:   optional(cmd, "date"),
				Amount: optional(cmd, "amount"),
				Source: optional(cmd, "source"),
				Note:   optional(cmd, "note"),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sv)
		},
	}

	cmd.Flags().String("date", "", "new date YYYY-MM-DD")
	cmd.Flags().String("amount", "", "new amount")
	cmd.Flags().String("source", "", "new source")
	cmd.Flags().String("note", "", "new note")

	return cmd
}

func newSavingDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saving",
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
			if err := opts.app.Ledger.DeleteSaving(cmd.Context(), h, id); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), deleted{Status: "deleted", ID: id})
		},
	}
}
