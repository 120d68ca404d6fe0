package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cognicore/termex/internal/corpus"
	"github.com/cognicore/termex/pkg/termex"
	"github.com/cognicore/termex/pkg/termex/batch"
	"github.com/cognicore/termex/pkg/termex/config"
	"github.com/cognicore/termex/pkg/termex/lexicon"
	"github.com/cognicore/termex/pkg/termex/nounseq"
	"github.com/cognicore/termex/pkg/termex/nounseq/hangul"
	"github.com/cognicore/termex/pkg/termex/review"
	"github.com/cognicore/termex/pkg/termex/store"
)

const sourceCacheSize = 4096

type extractOptions struct {
	input     string
	config    string
	dict      string
	stopwords string
	minCount  int
	npmi      string
	relevance string
	workers   int
	noStore   bool
	out       string
}

// extractOutput is what extract prints: the run (when stored) and the result.
type extractOutput struct {
	RunID string `json:"run_id,omitempty"`
	termex.Result
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract term candidates from a corpus",
		Long: `Load documents (.jsonl, .txt, .md, .html or a directory of them), run the
extraction and print the result as JSON.

Terms already accepted or rejected in earlier runs are excluded unless
--no-store is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "Corpus file or directory (required)")
	f.StringVar(&opts.config, "config", "", "Extraction config YAML")
	f.StringVar(&opts.dict, "dict", "", "User dictionary YAML")
	f.StringVar(&opts.stopwords, "stopwords", "", "Stopword list YAML (terms: [...])")
	f.IntVar(&opts.minCount, "min-count", 0, "Minimum occurrences (overrides config)")
	f.StringVar(&opts.npmi, "npmi", "", "NPMI threshold (overrides config)")
	f.StringVar(&opts.relevance, "relevance", "", "Relevance threshold (overrides config)")
	f.IntVar(&opts.workers, "workers", 0, "Parallel documents, 0 = GOMAXPROCS (overrides config)")
	f.BoolVar(&opts.noStore, "no-store", false, "Do not record the run in the database")
	f.StringVar(&opts.out, "out", "", "Write JSON to this file instead of stdout")
	cmd.MarkFlagRequired("input")
	return cmd
}

func runExtract(cmd *cobra.Command, root *rootOptions, opts *extractOptions) error {
	ctx := cmd.Context()

	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		return err
	}

	docs, err := corpus.Load(opts.input)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d documents from %s", len(docs), opts.input)

	source, err := newSource(opts.dict)
	if err != nil {
		return err
	}
	extractor := termex.New(termex.Options{Source: source})

	var out extractOutput
	if opts.noStore {
		out.Result, err = extractor.Extract(ctx, corpus.Texts(docs), cfg)
		if err != nil {
			return err
		}
	} else {
		st, err := root.openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := excludeDecided(cmd, st, &cfg); err != nil {
			return err
		}
		runner := &batch.Runner{Store: st, Extractor: extractor}
		run, res, err := runner.Run(ctx, corpus.Texts(docs), cfg)
		if err != nil {
			return runError(run, err)
		}
		out.RunID = run.ID
		out.Result = res
		log.Printf("Run %s: %d candidates, %d dictionary suggestions", run.ID, run.Candidates, run.DictionaryCandidates)
	}

	return writeJSON(cmd, opts.out, out)
}

// runError names the run in err when one was recorded.
func runError(run store.Run, err error) error {
	if run.ID == "" {
		return err
	}
	return fmt.Errorf("run %s: %w", run.ID, err)
}

func buildConfig(cmd *cobra.Command, opts *extractOptions) (config.Extraction, error) {
	cfg := config.Default()
	if opts.config != "" {
		loaded, err := config.LoadYAML(opts.config)
		if err != nil {
			return config.Extraction{}, err
		}
		cfg = loaded
	}
	if opts.stopwords != "" {
		terms, err := config.LoadTermList(opts.stopwords)
		if err != nil {
			return config.Extraction{}, err
		}
		cfg.Stopwords = append(cfg.Stopwords, terms...)
	}

	flags := cmd.Flags()
	if flags.Changed("min-count") {
		cfg.MinCount = opts.minCount
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("npmi") {
		v, err := decimal.NewFromString(opts.npmi)
		if err != nil {
			return config.Extraction{}, fmt.Errorf("--npmi: %w", err)
		}
		cfg.NPMIThreshold = v
	}
	if flags.Changed("relevance") {
		v, err := decimal.NewFromString(opts.relevance)
		if err != nil {
			return config.Extraction{}, fmt.Errorf("--relevance: %w", err)
		}
		cfg.RelevanceThreshold = v
	}
	return cfg, cfg.Validate()
}

func excludeDecided(cmd *cobra.Command, st store.Store, cfg *config.Extraction) error {
	decided, err := review.ExcludedTerms(cmd.Context(), st)
	if err != nil {
		return err
	}
	if len(decided) > 0 {
		log.Printf("Excluding %d already reviewed terms", len(decided))
	}
	cfg.ExcludedTerms = append(cfg.ExcludedTerms, decided...)
	return nil
}

func newSource(dictPath string) (nounseq.Source, error) {
	var lex *lexicon.Lexicon
	if dictPath != "" {
		var err error
		lex, err = lexicon.LoadFromYAML(dictPath)
		if err != nil {
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
		stats := lex.Stats()
		log.Printf("Loaded dictionary %s: %+v", dictPath, stats)
	}
	return nounseq.NewCachedSource(hangul.New(hangul.Options{Lexicon: lex}), sourceCacheSize)
}

func writeJSON(cmd *cobra.Command, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Printf("Wrote %s", path)
	return nil
}
