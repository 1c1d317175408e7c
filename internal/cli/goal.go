package cli

import (
	"github.com/spf13/cobra"

	"finledger/internal/core"
	"finledger/internal/services"
)

func newGoalCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage saving goals",
	}
	cmd.AddCommand(
		newGoalAddCommand(opts),
		newGoalListCommand(opts),
		newGoalUpdateCommand(opts),
		newGoalDeleteCommand(opts),
		newGoalContributeCommand(opts),
		newGoalInsightCommand(opts),
	)
	return cmd
}

func newGoalAddCommand(opts *rootOptions) *cobra.Command {
	var in services.GoalInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a saving goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			g, err := opts.app.Ledger.AddGoal(cmd.Context(), h, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), g)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "goal name (required)")
	cmd.Flags().StringVar(&in.TargetAmount, "target", "", "target amount (required)")
	cmd.Flags().StringVar(&in.TargetDate, "by", "", "target date YYYY-MM-DD, after today (required)")
	cmd.Flags().StringVar(&in.Note, "note", "", "note")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}

func newGoalListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List goals by target date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.handle(cmd)
			if err != nil {
				return err
			}
			goals, err := opts.app.Ledger.ListGoals(cmd.Context(), h)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), goals)
		},
	}
}

func newGoalUpdateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a goal",
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
			g, err := opts.app.Ledger.UpdateGoal(cmd.Context(), h, id, services.GoalPatch{
				Name:         optional(cmd, "name"),
				TargetAmount: optional(cmd, "target"),
				TargetDate:   optional(cmd, "by"),
				Note:         optional(cmd, "note"),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), g)
		},
	}

	cmd.Flags().String("name", "", "new name")
	cmd.Flags().String("target", "", "new target amount")
	cmd.Flags().String("by", "", "new target date YYYY-MM-DD")
	cmd.Flags().String("note", "", "new note")

	return cmd
}

func newGoalDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a goal, keeping its contributions as savings",
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
			if err := opts.app.Ledger.DeleteGoal(cmd.Context(), h, id); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), deleted{Status: "deleted", ID: id})
		},
	}
}

func newGoalContributeCommand(opts *rootOptions) *cobra.Command {
	var in services.ContributionInput

	cmd := &cobra.Command{
		Use:   "contribute <id>",
		Short: "Put money towards a goal",
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
			sv, g, err := opts.app.Ledger.ContributeToGoal(cmd.Context(), h, id, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Saving core.Saving `json:"saving"`
				Goal   core.Goal   `json:"goal"`
			}{sv, g})
		},
	}

	cmd.Flags().StringVar(&in.Amount, "amount", "", "amount (required)")
	cmd.Flags().StringVar(&in.Date, "date", "", "date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&in.Source, "source", "", "source of the money")
	cmd.Flags().StringVar(&in.Note, "note", "", "note")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newGoalInsightCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insight <id>",
		Short: "Show pace and projection for a goal",
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
			insight, err := opts.app.Ledger.GoalInsight(cmd.Context(), h, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), insight)
		},
	}
}
