package cli

import (
	"github.com/spf13/cobra"
)

func newVocabCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vocab",
		Short: "Print the accepted categories, subcategories and sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := opts.app.Ledger.Vocabulary()
			categories := make(map[string][]string)
			for _, c := range v.Categories() {
				categories[c] = v.Subcategories(c)
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Categories map[string][]string `json:"categories"`
				Sources    []string            `json:"sources"`
			}{categories, v.Sources()})
		},
	}
}
