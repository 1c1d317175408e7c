package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"finledger/internal/amqp"
	"finledger/internal/worker"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect ledger events",
	}
	cmd.AddCommand(newEventsTailCommand(opts), newEventsWatchBudgetsCommand(opts))
	return cmd
}

func newEventsTailCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print ledger events from the queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.app.AMQP
			if client == nil {
				return errors.New("events need a reachable AMQP_URL")
			}

			ctx, cancel := GracefulShutdown(cmd.Context(), opts.app.Logger)
			defer cancel()

			out := cmd.OutOrStdout()
			err := client.ConsumeLedgerEvents(ctx, func(evt *amqp.LedgerEvent) error {
				if opts.user != "" && !strings.EqualFold(evt.UserID, opts.user) {
					return nil
				}
				return printJSON(out, evt)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newEventsWatchBudgetsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch-budgets",
		Short: "Print a budget alert whenever an expense leaves a budget near or over its limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.app.AMQP
			if client == nil {
				return errors.New("events need a reachable AMQP_URL")
			}

			ctx, cancel := GracefulShutdown(cmd.Context(), opts.app.Logger)
			defer cancel()

			out := cmd.OutOrStdout()
			w := worker.NewBudgetWorker(opts.app.Registry, opts.app.Ledger, opts.app.Logger, func(a worker.BudgetAlert) error {
				return printJSON(out, a)
			})
			err := client.ConsumeLedgerEvents(ctx, func(evt *amqp.LedgerEvent) error {
				return w.HandleLedgerEvent(ctx, evt)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
