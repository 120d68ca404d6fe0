package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/termex/pkg/termex/lexicon"
	"github.com/cognicore/termex/pkg/termex/review"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export review results",
	}

	var out string
	dict := &cobra.Command{
		Use:   "dict",
		Short: "Write accepted dictionary suggestions as a user dictionary",
		Long: `Write every accepted dictionary suggestion as a user dictionary YAML file
that extract --dict accepts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := root.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			terms, err := review.AcceptedDictionary(cmd.Context(), st)
			if err != nil {
				return err
			}
			if err := lexicon.WriteYAML(out, terms); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d nouns to %s\n", len(terms), out)
			return nil
		},
	}
	dict.Flags().StringVar(&out, "out", "", "Output YAML file (required)")
	dict.MarkFlagRequired("out")

	cmd.AddCommand(dict)
	return cmd
}
