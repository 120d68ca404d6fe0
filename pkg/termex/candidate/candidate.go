package candidate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cognicore/termex/pkg/termex/config"
	"github.com/cognicore/termex/pkg/termex/nounseq"
	"github.com/cognicore/termex/pkg/termex/pmi"
	"github.com/cognicore/termex/pkg/termex/stats"
)

// Corpus holds the noun sequences of each document, indexed by document.
type Corpus [][]nounseq.NounSequence

// Stat is a multi-token candidate term and its span statistics.
type Stat struct {
	Term       string   `json:"term"`
	Components []string `json:"components"`
	// Surface is the original text of the first occurrence.
	Surface        string          `json:"surface"`
	Count          int64           `json:"count"`
	DocCount       int64           `json:"doc_count"`
	PMI            decimal.Decimal `json:"pmi"`
	NPMI           decimal.Decimal `json:"npmi"`
	IDF            decimal.Decimal `json:"idf"`
	AvgTFIDF       decimal.Decimal `json:"avg_tfidf"`
	RelevanceScore decimal.Decimal `json:"relevance_score"`
}

// Rejection is the reason a span was not accepted as a candidate.
type Rejection string

const (
	Accepted          Rejection = ""
	RejectedStopword  Rejection = "stopword or excluded term"
	RejectedComponent Rejection = "stopword component"
	RejectedMinCount  Rejection = "below minimum count"
	RejectedNPMI      Rejection = "below npmi threshold"
	RejectedRelevance Rejection = "below relevance threshold"
)

// Span is a distinct agglomerated span with its filter outcome.
type Span struct {
	Stat
	Rejection Rejection
}

// Outcome is the result of a Build.
type Outcome struct {
	// Candidates are the accepted spans ordered by relevance desc, term asc.
	Candidates []Stat
	// Spans lists every distinct span in discovery order.
	Spans []Span
}

// Strong reports whether a bigram may seed or extend a span.
func Strong(ng stats.NgramStat, cfg config.Extraction) bool {
	return ng.Scored && ng.Count >= int64(cfg.MinCount) && ng.NPMI.GreaterThanOrEqual(cfg.NPMIThreshold)
}

// Builder grows strong bigrams into multi-token candidates and filters them.
type Builder struct {
	cfg       config.Extraction
	calc      *pmi.Calculator
	stopwords map[string]struct{}
	excluded  map[string]struct{}
}

// NewBuilder creates a builder for cfg.
func NewBuilder(cfg config.Extraction, calc *pmi.Calculator) *Builder {
	if calc == nil {
		calc = pmi.NewCalculator()
	}
	return &Builder{
		cfg:       cfg,
		calc:      calc,
		stopwords: cfg.StopwordSet(),
		excluded:  cfg.ExcludedSet(),
	}
}

// spanKey locates one occurrence of a span.
type spanKey struct {
	doc, seq, start, end int
}

// Build agglomerates the strong bigrams of ngrams over corpus, recomputes the
// statistics of every distinct span from s and corpus, and filters them.
// Relevance is computed only once every span is scored, since its IDF and
// TF-IDF terms are scaled to the range the whole span set covers.
func (b *Builder) Build(corpus Corpus, s stats.Stats, ngrams []stats.NgramStat) Outcome {
	strong := make(map[stats.Pair]struct{})
	for _, ng := range ngrams {
		if Strong(ng, b.cfg) {
			strong[ng.Pair()] = struct{}{}
		}
	}

	var (
		order []spanKey
		first = make(map[string]spanKey)
	)
	for d, seqs := range corpus {
		for q, seq := range seqs {
			for _, sp := range agglomerate(seq, strong) {
				key := spanKey{doc: d, seq: q, start: sp[0], end: sp[1]}
				term := seq.Join(key.start, key.end)
				if _, ok := first[term]; ok {
					continue
				}
				first[term] = key
				order = append(order, key)
			}
		}
	}

	idx := newPositionIndex(corpus)
	scored := make([]Stat, 0, len(order))
	for _, key := range order {
		seq := corpus[key.doc][key.seq]
		components := seq.Terms()[key.start : key.end+1]
		scored = append(scored, b.score(components, seq.Text(key.start, key.end), idx.occurrences(components), s))
	}

	idf := rangeOf(scored, func(st Stat) decimal.Decimal { return st.IDF })
	tfidf := rangeOf(scored, func(st Stat) decimal.Decimal { return st.AvgTFIDF })

	out := Outcome{Candidates: []Stat{}, Spans: make([]Span, 0, len(scored))}
	for _, st := range scored {
		st.RelevanceScore = b.relevance(st, idf, tfidf)
		span := Span{Stat: st, Rejection: b.check(st)}
		out.Spans = append(out.Spans, span)
		if span.Rejection == Accepted {
			out.Candidates = append(out.Candidates, st)
		}
	}
	SortCandidates(out.Candidates)
	return out
}

// agglomerate returns the inclusive [start, end] token ranges of the spans
// in seq. A span opens at a strong bigram, extends while the next bigram is
// strong and closes at the first weak one; scanning resumes after it.
func agglomerate(seq nounseq.NounSequence, strong map[stats.Pair]struct{}) [][2]int {
	isStrong := func(i int) bool {
		_, ok := strong[stats.Pair{First: seq.Token(i).Term, Second: seq.Token(i + 1).Term}]
		return ok
	}

	var spans [][2]int
	n := seq.Len()
	for i := 0; i < n-1; {
		if !isStrong(i) {
			i++
			continue
		}
		start, end := i, i+1
		for end < n-1 && isStrong(end) {
			end++
		}
		spans = append(spans, [2]int{start, end})
		i = end + 1
	}
	return spans
}

// score computes span statistics. PMI and NPMI reuse the bigram formula with
// the span count as joint count and the boundary tokens as marginals.
func (b *Builder) score(components []string, surface string, occ map[int]int64, s stats.Stats) Stat {
	st := Stat{
		Term:       strings.Join(components, ""),
		Components: append([]string(nil), components...),
		Surface:    surface,
		DocCount:   int64(len(occ)),
	}
	for _, n := range occ {
		st.Count += n
	}

	totalDocs := int64(s.TotalDocs)
	pmiVal, npmi, ok := b.calc.Cooccurrence(
		st.Count,
		s.UnigramCount(components[0]),
		s.UnigramCount(components[len(components)-1]),
		s.TotalBigrams,
		s.TotalUnigrams,
	)
	if ok {
		st.PMI = pmiVal
		st.NPMI = npmi
	}
	st.IDF = b.calc.IDF(totalDocs, st.DocCount)
	st.AvgTFIDF = b.calc.AvgTFIDF(totalDocs, occ, s.DocTokens)
	return st
}

// bounds is the observed [lo, hi] range of one score over the span set.
type bounds struct {
	lo, hi decimal.Decimal
}

func rangeOf(spans []Stat, value func(Stat) decimal.Decimal) bounds {
	var r bounds
	for i, st := range spans {
		v := value(st)
		if i == 0 || v.LessThan(r.lo) {
			r.lo = v
		}
		if i == 0 || v.GreaterThan(r.hi) {
			r.hi = v
		}
	}
	return r
}

// normalize maps v into [0,1] by min-max scaling. A degenerate range maps
// everything to 0.
func (r bounds) normalize(v decimal.Decimal) decimal.Decimal {
	width := r.hi.Sub(r.lo)
	if !width.IsPositive() {
		return decimal.Zero
	}
	return v.Sub(r.lo).DivRound(width, 18)
}

// relevance combines NPMI with IDF and average TF-IDF, each min-max
// normalized across every distinct span of the batch.
func (b *Builder) relevance(st Stat, idf, tfidf bounds) decimal.Decimal {
	w := b.cfg.Weights
	return pmi.Round(w.NPMI.Mul(st.NPMI).
		Add(w.IDF.Mul(idf.normalize(st.IDF))).
		Add(w.TFIDF.Mul(tfidf.normalize(st.AvgTFIDF))))
}

// check applies the final filter in order and returns the first failure.
func (b *Builder) check(st Stat) Rejection {
	if b.listed(st.Term) {
		return RejectedStopword
	}
	for _, c := range st.Components {
		if _, ok := b.stopwords[c]; ok {
			return RejectedComponent
		}
	}
	switch {
	case st.Count < int64(b.cfg.MinCount):
		return RejectedMinCount
	case st.NPMI.LessThan(b.cfg.NPMIThreshold):
		return RejectedNPMI
	case st.RelevanceScore.LessThan(b.cfg.RelevanceThreshold):
		return RejectedRelevance
	}
	return Accepted
}

func (b *Builder) listed(term string) bool {
	if _, ok := b.stopwords[term]; ok {
		return true
	}
	_, ok := b.excluded[term]
	return ok
}

// SortCandidates orders candidates by relevance desc, then term asc.
func SortCandidates(cands []Stat) {
	sort.Slice(cands, func(i, j int) bool {
		if c := cands[i].RelevanceScore.Cmp(cands[j].RelevanceScore); c != 0 {
			return c > 0
		}
		return cands[i].Term < cands[j].Term
	})
}

// position is one token position in the corpus.
type position struct {
	doc, seq, pos int
}

// positionIndex maps a term to every position it occurs at.
type positionIndex struct {
	corpus Corpus
	byTerm map[string][]position
}

func newPositionIndex(corpus Corpus) *positionIndex {
	idx := &positionIndex{corpus: corpus, byTerm: make(map[string][]position)}
	for d, seqs := range corpus {
		for q, seq := range seqs {
			for i := 0; i < seq.Len(); i++ {
				term := seq.Token(i).Term
				idx.byTerm[term] = append(idx.byTerm[term], position{doc: d, seq: q, pos: i})
			}
		}
	}
	return idx
}

// occurrences counts exact occurrences of components per document.
func (idx *positionIndex) occurrences(components []string) map[int]int64 {
	occ := make(map[int]int64)
	for _, p := range idx.byTerm[components[0]] {
		if idx.corpus[p.doc][p.seq].HasPrefixAt(p.pos, components) {
			occ[p.doc]++
		}
	}
	return occ
}
