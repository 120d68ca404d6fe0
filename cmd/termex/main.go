// Command termex extracts terminology candidates from a document corpus,
// stores the runs and drives their review.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cognicore/termex/pkg/termex/store"
	"github.com/cognicore/termex/pkg/termex/store/sqlite"
)

const defaultDB = "termex.db"

type rootOptions struct {
	db      string
	verbose bool
}

func main() {
	// A .env file may set TERMEX_DB.
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("termex: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "termex",
		Short: "Corpus terminology candidate extraction",
		Long: `termex finds multi-word domain terms in a corpus using PMI/NPMI
co-occurrence statistics, and suggests dictionary entries for word pairs the
tokenizer keeps splitting.

Examples:
  termex extract --input docs/ --min-count 2
  termex runs list
  termex review list RUN_ID
  termex review accept RUN_ID 공유주차장
  termex export dict --out user-dict.yaml`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
		},
	}

	dbDefault := os.Getenv("TERMEX_DB")
	if dbDefault == "" {
		dbDefault = defaultDB
	}
	cmd.PersistentFlags().StringVar(&opts.db, "db", dbDefault, "SQLite database path (env TERMEX_DB)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log per-document progress")

	cmd.AddCommand(
		newExtractCmd(opts),
		newRunsCmd(opts),
		newReviewCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

func (o *rootOptions) openStore(ctx context.Context) (store.Store, error) {
	return sqlite.OpenSQLite(ctx, o.db)
}
