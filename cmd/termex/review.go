package main

import (
	"fmt"
	"log"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cognicore/termex/pkg/termex/review"
	"github.com/cognicore/termex/pkg/termex/review/llm"
	"github.com/cognicore/termex/pkg/termex/store"
)

func newReviewCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review the candidates of a run",
	}
	cmd.AddCommand(
		newReviewListCmd(root),
		newDecideCmd(root, "accept", store.StatusAccepted),
		newDecideCmd(root, "reject", store.StatusRejected),
		newReviewAutoCmd(root),
	)
	return cmd
}

func kindOf(dictionary bool) store.Kind {
	if dictionary {
		return store.KindDictionary
	}
	return store.KindCandidate
}

func newReviewListCmd(root *rootOptions) *cobra.Command {
	var (
		status     string
		dictionary bool
	)
	cmd := &cobra.Command{
		Use:   "list RUN_ID",
		Short: "List candidates (or dictionary suggestions) of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := root.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if dictionary {
				rows, err := st.ListDictionaryCandidates(cmd.Context(), args[0], store.Status(status))
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "SUGGESTED\tORIGINAL\tCOUNT\tDOCS\tNPMI\tCONFIDENCE\tSTATUS\tREASONS")
				for _, c := range rows {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
						c.SuggestedTerm, c.OriginalTerm, c.Count, c.DocCount, c.NPMI, c.Confidence, c.Status,
						strings.Join(c.Reasons, "; "))
				}
				return w.Flush()
			}

			rows, err := st.ListCandidates(cmd.Context(), args[0], store.Status(status))
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "TERM\tSURFACE\tCOUNT\tDOCS\tNPMI\tRELEVANCE\tSTATUS")
			for _, c := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					c.Term, c.Surface, c.Count, c.DocCount, c.NPMI, c.RelevanceScore, c.Status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only rows with this status (pending, accepted, rejected)")
	cmd.Flags().BoolVar(&dictionary, "dictionary", false, "List dictionary suggestions instead of candidates")
	return cmd
}

func newDecideCmd(root *rootOptions, verb string, status store.Status) *cobra.Command {
	var dictionary bool
	cmd := &cobra.Command{
		Use:   verb + " RUN_ID TERM...",
		Short: fmt.Sprintf("Mark terms of a run as %s", status),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := root.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			svc := &review.Service{Store: st}
			kind := kindOf(dictionary)
			for _, term := range args[1:] {
				if status == store.StatusAccepted {
					err = svc.Accept(cmd.Context(), args[0], term, kind)
				} else {
					err = svc.Reject(cmd.Context(), args[0], term, kind)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", kind, term, status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dictionary, "dictionary", false, "TERM is a dictionary suggestion")
	return cmd
}

func newReviewAutoCmd(root *rootOptions) *cobra.Command {
	var (
		endpoint      string
		apiKey        string
		minRelevance  string
		minConfidence string
	)
	cmd := &cobra.Command{
		Use:   "auto RUN_ID",
		Short: "Decide pending rows above the thresholds, optionally via an LLM reviewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			th := review.DefaultThresholds()
			var err error
			if minRelevance != "" {
				if th.MinRelevance, err = decimal.NewFromString(minRelevance); err != nil {
					return fmt.Errorf("--min-relevance: %w", err)
				}
			}
			if minConfidence != "" {
				if th.MinConfidence, err = decimal.NewFromString(minConfidence); err != nil {
					return fmt.Errorf("--min-confidence: %w", err)
				}
			}

			st, err := root.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			auto := &review.AutoReviewer{Store: st, Thresholds: th}
			if endpoint != "" {
				auto.Reviewer = &llm.Client{Endpoint: endpoint, APIKey: apiKey}
				log.Printf("Routing eligible rows through reviewer %s", endpoint)
			}
			rep, err := auto.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accepted %d, rejected %d, left pending %d\n", rep.Accepted, rep.Rejected, rep.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "llm-endpoint", "", "Optional: reviewer endpoint ({\"prompt\"} -> {\"approve\"})")
	cmd.Flags().StringVar(&apiKey, "llm-api-key", "", "Optional: API key for the reviewer endpoint")
	cmd.Flags().StringVar(&minRelevance, "min-relevance", "", "Minimum candidate relevance (default 0.5)")
	cmd.Flags().StringVar(&minConfidence, "min-confidence", "", "Minimum suggestion confidence (default 0.7)")
	return cmd
}
