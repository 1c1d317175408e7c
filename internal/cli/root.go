package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"finledger/internal/registry"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	user string
	app  *App
}

// Execute runs the command tree with args and releases the engine afterwards,
// whether or not the command succeeded.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &rootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	defer opts.close()
	return cmd.ExecuteContext(ctx)
}

// newRootCommand creates the root CLI command with all subcommands registered.
func newRootCommand(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "finledger",
		Short:   "Per-user personal finance ledger",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			LoadEnvFile()
			cfg, err := LoadAndValidateConfig()
			if err != nil {
				return err
			}
			logger, err := SetupLogger(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.app, err = NewApp(cfg, logger)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.user, "user", "u", os.Getenv("FINLEDGER_USER"), "user id owning the ledger (env FINLEDGER_USER)")

	rootCmd.AddCommand(
		newExpenseCommand(opts),
		newSavingCommand(opts),
		newBudgetCommand(opts),
		newGoalCommand(opts),
		newVocabCommand(opts),
		newEventsCommand(opts),
	)

	return rootCmd
}

func (o *rootOptions) close() {
	if o.app == nil {
		return
	}
	if err := o.app.Close(); err != nil {
		o.app.Logger.Error("Failed to close ledger", "error", err)
	}
}

// handle resolves the --user ledger.
func (o *rootOptions) handle(cmd *cobra.Command) (*registry.Handle, error) {
	if o.user == "" {
		return nil, fmt.Errorf("--user is required")
	}
	return o.app.Registry.Resolve(cmd.Context(), o.user)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// optional returns a pointer to the flag value when the flag was given.
func optional(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}
