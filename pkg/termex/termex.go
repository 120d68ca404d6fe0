package termex

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/termex/pkg/termex/candidate"
	"github.com/cognicore/termex/pkg/termex/config"
	"github.com/cognicore/termex/pkg/termex/dictgap"
	"github.com/cognicore/termex/pkg/termex/internalerr"
	"github.com/cognicore/termex/pkg/termex/nounseq"
	"github.com/cognicore/termex/pkg/termex/pmi"
	"github.com/cognicore/termex/pkg/termex/stats"
)

// Extractor is the term extraction facade. It is safe for concurrent use as
// long as its Source is.
type Extractor struct {
	source nounseq.Source
	calc   *pmi.Calculator
	log    *slog.Logger
}

// Options configures an Extractor.
type Options struct {
	Source nounseq.Source
	// Logger receives progress at debug level and a summary at info level.
	// nil uses slog.Default().
	Logger *slog.Logger
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		source: opts.Source,
		calc:   pmi.NewCalculator(),
		log:    logger,
	}
}

// Result is the full output of one extraction.
type Result struct {
	TotalDocuments       int                 `json:"total_documents"`
	Unigrams             []stats.UnigramStat `json:"unigrams"`
	Ngrams               []stats.NgramStat   `json:"ngrams"`
	Candidates           []candidate.Stat    `json:"candidates"`
	DictionaryCandidates []dictgap.Candidate `json:"dictionary_candidates"`
}

func emptyResult() Result {
	return Result{
		Unigrams:             []stats.UnigramStat{},
		Ngrams:               []stats.NgramStat{},
		Candidates:           []candidate.Stat{},
		DictionaryCandidates: []dictgap.Candidate{},
	}
}

// Extract runs the pipeline over documents. The result depends only on
// documents, cfg and the source. Any source failure aborts the whole batch
// with an error wrapping internalerr.ErrSourceFailed; no partial result is
// returned.
func (e *Extractor) Extract(ctx context.Context, documents []string, cfg config.Extraction) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if e.source == nil {
		return Result{}, fmt.Errorf("%w: no noun sequence source configured", internalerr.ErrInvalidConfig)
	}
	if len(documents) == 0 {
		return emptyResult(), nil
	}

	corpus, s, err := e.aggregate(ctx, documents, cfg.Workers)
	if err != nil {
		return Result{}, err
	}

	ngrams := pmi.ScoreBigrams(s, e.calc)
	outcome := candidate.NewBuilder(cfg, e.calc).Build(corpus, s, ngrams)
	gaps := dictgap.NewDetector(cfg).Detect(s, ngrams, outcome)

	e.log.Info("term extraction complete",
		"documents", s.TotalDocs,
		"unigrams", len(s.Unigram),
		"bigrams", len(ngrams),
		"spans", len(outcome.Spans),
		"candidates", len(outcome.Candidates),
		"dictionary_candidates", len(gaps),
	)

	return Result{
		TotalDocuments:       s.TotalDocs,
		Unigrams:             s.Unigrams(),
		Ngrams:               ngrams,
		Candidates:           outcome.Candidates,
		DictionaryCandidates: gaps,
	}, nil
}

// aggregate runs the source over every document in parallel, each worker
// counting into its own Aggregator, and merges the partials in document
// order.
func (e *Extractor) aggregate(ctx context.Context, documents []string, workers int) (candidate.Corpus, stats.Stats, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	corpus := make(candidate.Corpus, len(documents))
	partials := make([]*stats.Aggregator, len(documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range documents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seqs, err := e.source.ExtractWithOffsets(doc)
			if err != nil {
				return fmt.Errorf("document %d: %w: %w", i, internalerr.ErrSourceFailed, err)
			}
			agg := stats.NewAggregator()
			agg.Add(i, seqs)
			corpus[i] = seqs
			partials[i] = agg
			e.log.Debug("document analyzed", "index", i, "sequences", len(seqs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats.Stats{}, err
	}

	total := stats.NewAggregator()
	for _, p := range partials {
		total.Merge(p)
	}
	return corpus, total.Snapshot(), nil
}
