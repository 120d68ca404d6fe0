package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cognicore/termex/pkg/termex/nounseq"
)

// Pair is an ordered pair of adjacent tokens.
type Pair struct {
	First, Second string
}

// Counts holds the corpus-wide occurrence count of a term or pair and its
// occurrences per document index. The document set is the key set of Docs.
type Counts struct {
	Count int64
	Docs  map[int]int64
}

// DocCount returns the number of distinct documents containing the key.
func (c Counts) DocCount() int64 {
	return int64(len(c.Docs))
}

func (c *Counts) add(doc int, n int64) {
	if c.Docs == nil {
		c.Docs = make(map[int]int64)
	}
	c.Count += n
	c.Docs[doc] += n
}

func (c Counts) clone() Counts {
	docs := make(map[int]int64, len(c.Docs))
	for d, n := range c.Docs {
		docs[d] = n
	}
	return Counts{Count: c.Count, Docs: docs}
}

// UnigramStat is the corpus-wide frequency of a single token.
type UnigramStat struct {
	Term     string `json:"term"`
	Count    int64  `json:"count"`
	DocCount int64  `json:"doc_count"`
}

// NgramStat is the corpus-wide frequency of an adjacent token pair. The score
// fields are zero until the pair is scored; Scored stays false for pairs
// whose PMI is undefined.
type NgramStat struct {
	Term1    string          `json:"term1"`
	Term2    string          `json:"term2"`
	Count    int64           `json:"count"`
	DocCount int64           `json:"doc_count"`
	PMI      decimal.Decimal `json:"pmi"`
	NPMI     decimal.Decimal `json:"npmi"`
	IDF      decimal.Decimal `json:"idf"`
	AvgTFIDF decimal.Decimal `json:"avg_tfidf"`
	Scored   bool            `json:"-"`
}

// Pair returns the ordered key of the stat.
func (n NgramStat) Pair() Pair {
	return Pair{First: n.Term1, Second: n.Term2}
}

// Aggregator accumulates unigram and bigram statistics over noun sequences.
// An Aggregator is not safe for concurrent use; build one per worker and
// Merge the partials.
type Aggregator struct {
	totalDocs     int
	totalUnigrams int64
	totalBigrams  int64
	unigrams      map[string]*Counts
	bigrams       map[Pair]*Counts
	docTokens     map[int]int64
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		unigrams:  make(map[string]*Counts),
		bigrams:   make(map[Pair]*Counts),
		docTokens: make(map[int]int64),
	}
}

// Add consumes the noun sequences of one document. A document with no
// sequences still counts toward the document total.
func (a *Aggregator) Add(doc int, seqs []nounseq.NounSequence) {
	a.totalDocs++
	for _, seq := range seqs {
		for i := 0; i < seq.Len(); i++ {
			term := seq.Token(i).Term
			a.unigram(term).add(doc, 1)
			a.totalUnigrams++
			a.docTokens[doc]++

			if i+1 < seq.Len() {
				p := Pair{First: term, Second: seq.Token(i + 1).Term}
				a.bigram(p).add(doc, 1)
				a.totalBigrams++
			}
		}
	}
}

// Merge folds other into a. Counts are summed and document sets united, so
// the result does not depend on merge order. Document indices seen by the
// two aggregators are expected to be disjoint.
func (a *Aggregator) Merge(other *Aggregator) {
	a.totalDocs += other.totalDocs
	a.totalUnigrams += other.totalUnigrams
	a.totalBigrams += other.totalBigrams
	for term, c := range other.unigrams {
		dst := a.unigram(term)
		for doc, n := range c.Docs {
			dst.add(doc, n)
		}
	}
	for p, c := range other.bigrams {
		dst := a.bigram(p)
		for doc, n := range c.Docs {
			dst.add(doc, n)
		}
	}
	for doc, n := range other.docTokens {
		a.docTokens[doc] += n
	}
}

func (a *Aggregator) unigram(term string) *Counts {
	c, ok := a.unigrams[term]
	if !ok {
		c = &Counts{}
		a.unigrams[term] = c
	}
	return c
}

func (a *Aggregator) bigram(p Pair) *Counts {
	c, ok := a.bigrams[p]
	if !ok {
		c = &Counts{}
		a.bigrams[p] = c
	}
	return c
}

// Stats is an immutable snapshot of aggregated counts.
type Stats struct {
	TotalDocs     int
	TotalUnigrams int64
	TotalBigrams  int64
	Unigram       map[string]Counts
	Bigram        map[Pair]Counts
	// DocTokens is the number of noun tokens observed per document index.
	DocTokens map[int]int64
}

// Snapshot returns a copy of the accumulated statistics.
func (a *Aggregator) Snapshot() Stats {
	unigrams := make(map[string]Counts, len(a.unigrams))
	for term, c := range a.unigrams {
		unigrams[term] = c.clone()
	}
	bigrams := make(map[Pair]Counts, len(a.bigrams))
	for p, c := range a.bigrams {
		bigrams[p] = c.clone()
	}
	docTokens := make(map[int]int64, len(a.docTokens))
	for doc, n := range a.docTokens {
		docTokens[doc] = n
	}
	return Stats{
		TotalDocs:     a.totalDocs,
		TotalUnigrams: a.totalUnigrams,
		TotalBigrams:  a.totalBigrams,
		Unigram:       unigrams,
		Bigram:        bigrams,
		DocTokens:     docTokens,
	}
}

// UnigramCount returns the corpus-wide count of term.
func (s Stats) UnigramCount(term string) int64 {
	return s.Unigram[term].Count
}

// Unigrams returns unigram stats ordered by count desc, then term asc.
func (s Stats) Unigrams() []UnigramStat {
	out := make([]UnigramStat, 0, len(s.Unigram))
	for term, c := range s.Unigram {
		out = append(out, UnigramStat{Term: term, Count: c.Count, DocCount: c.DocCount()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// Ngrams returns unscored bigram stats ordered by count desc, then by
// term1 and term2 asc.
func (s Stats) Ngrams() []NgramStat {
	out := make([]NgramStat, 0, len(s.Bigram))
	for p, c := range s.Bigram {
		out = append(out, NgramStat{
			Term1:    p.First,
			Term2:    p.Second,
			Count:    c.Count,
			DocCount: c.DocCount(),
		})
	}
	SortNgrams(out)
	return out
}

// SortNgrams orders bigram stats by count desc, then term1 and term2 asc.
func SortNgrams(ngrams []NgramStat) {
	sort.Slice(ngrams, func(i, j int) bool {
		a, b := ngrams[i], ngrams[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Term1 != b.Term1 {
			return a.Term1 < b.Term1
		}
		return a.Term2 < b.Term2
	})
}
