package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cognicore/termex/pkg/termex/store"
)

func newRunsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect extraction runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := root.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDOCS\tCANDIDATES\tDICTIONARY")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.Status, r.StartedAt.Local().Format(time.DateTime),
					r.TotalDocuments, r.Candidates, r.DictionaryCandidates)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")

	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := root.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			r, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(cmd, r)
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func printRun(cmd *cobra.Command, r store.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:        %s\n", r.ID)
	fmt.Fprintf(out, "Status:     %s\n", r.Status)
	fmt.Fprintf(out, "Started:    %s\n", r.StartedAt.Local().Format(time.RFC3339))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(out, "Finished:   %s (%s)\n", r.FinishedAt.Local().Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "Documents:  %d\n", r.TotalDocuments)
	fmt.Fprintf(out, "Candidates: %d\n", r.Candidates)
	fmt.Fprintf(out, "Dictionary: %d\n", r.DictionaryCandidates)
	if r.Error != "" {
		fmt.Fprintf(out, "Error:      %s\n", r.Error)
	}
}
