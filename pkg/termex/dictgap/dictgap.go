package dictgap

import (
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/cognicore/termex/pkg/termex/candidate"
	"github.com/cognicore/termex/pkg/termex/config"
	"github.com/cognicore/termex/pkg/termex/pmi"
	"github.com/cognicore/termex/pkg/termex/stats"
)

// Reasons attached to dictionary candidates, in the order they are reported.
const (
	ReasonLowRelevance  = "high NPMI despite low span relevance"
	ReasonLowCount      = "span below minimum count"
	ReasonLowNPMI       = "span below NPMI threshold"
	ReasonListed        = "span rejected by stopword or exclusion list"
	ReasonManyDocuments = "frequent across distinct documents"
	ReasonNeverApart    = "tokens never occur apart"
)

var (
	npmiWeight  = decimal.RequireFromString("0.6")
	countWeight = decimal.RequireFromString("0.4")
)

// Candidate is a bigram proposed as a missing single-token dictionary entry.
type Candidate struct {
	OriginalTerm  string          `json:"original_term"`
	SuggestedTerm string          `json:"suggested_term"`
	NPMI          decimal.Decimal `json:"npmi"`
	Count         int64           `json:"count"`
	DocCount      int64           `json:"doc_count"`
	Reasons       []string        `json:"reasons"`
	Confidence    decimal.Decimal `json:"confidence"`
}

// Detector finds strongly associated bigrams that never made it into an
// accepted candidate, which usually means the tokenizer split one word.
// Its output is advisory only.
type Detector struct {
	cfg       config.Extraction
	stopwords map[string]struct{}
	excluded  map[string]struct{}
}

// NewDetector creates a detector for cfg.
func NewDetector(cfg config.Extraction) *Detector {
	return &Detector{
		cfg:       cfg,
		stopwords: cfg.StopwordSet(),
		excluded:  cfg.ExcludedSet(),
	}
}

// Bar returns the NPMI a strong bigram must reach to be proposed: the
// configured quantile of strong-bigram NPMI values, capped at NPMICap and
// never below the NPMI threshold.
func (d *Detector) Bar(ngrams []stats.NgramStat) decimal.Decimal {
	var values []float64
	for _, ng := range ngrams {
		if candidate.Strong(ng, d.cfg) {
			values = append(values, ng.NPMI.InexactFloat64())
		}
	}
	bar := d.cfg.NPMIThreshold
	if len(values) == 0 {
		return bar
	}
	sort.Float64s(values)
	// The empirical quantile is one of the inputs, and each input is a
	// 6-digit decimal, so rounding back recovers that decimal exactly.
	q := pmi.Round(decimal.NewFromFloat(stat.Quantile(d.cfg.Dictionary.Quantile, stat.Empirical, values, nil)))
	if q.GreaterThan(d.cfg.Dictionary.NPMICap) {
		q = d.cfg.Dictionary.NPMICap
	}
	if q.GreaterThan(bar) {
		bar = q
	}
	return bar
}

// Detect returns dictionary candidates ordered by confidence desc, then
// suggested term asc. s supplies unigram counts, ngrams the scored bigrams
// and outcome the result of candidate building.
func (d *Detector) Detect(s stats.Stats, ngrams []stats.NgramStat, outcome candidate.Outcome) []Candidate {
	bar := d.Bar(ngrams)
	minCount := int64(d.cfg.DictionaryMinCount())

	accepted := make(map[string]struct{}, len(outcome.Candidates))
	covered := make(map[stats.Pair]struct{})
	for _, c := range outcome.Candidates {
		accepted[c.Term] = struct{}{}
		for i := 0; i+1 < len(c.Components); i++ {
			covered[stats.Pair{First: c.Components[i], Second: c.Components[i+1]}] = struct{}{}
		}
	}

	out := []Candidate{}
	for _, ng := range ngrams {
		if !candidate.Strong(ng, d.cfg) || ng.Count < minCount || ng.NPMI.LessThan(bar) {
			continue
		}
		if _, ok := covered[ng.Pair()]; ok {
			continue
		}
		if d.isStopword(ng.Term1) || d.isStopword(ng.Term2) {
			continue
		}
		suggested := ng.Term1 + ng.Term2
		if _, ok := d.excluded[suggested]; ok {
			continue
		}
		if _, ok := accepted[suggested]; ok {
			continue
		}

		out = append(out, Candidate{
			OriginalTerm:  ng.Term1 + " " + ng.Term2,
			SuggestedTerm: suggested,
			NPMI:          ng.NPMI,
			Count:         ng.Count,
			DocCount:      ng.DocCount,
			Reasons:       d.reasons(s, ng, outcome.Spans),
			Confidence:    d.confidence(ng),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Confidence.Cmp(out[j].Confidence); c != 0 {
			return c > 0
		}
		return out[i].SuggestedTerm < out[j].SuggestedTerm
	})
	return out
}

func (d *Detector) isStopword(term string) bool {
	_, ok := d.stopwords[term]
	return ok
}

// reasons reports why the spans holding the bigram were rejected, followed
// by the bigram's own signals.
func (d *Detector) reasons(s stats.Stats, ng stats.NgramStat, spans []candidate.Span) []string {
	rejected := make(map[candidate.Rejection]bool)
	for _, sp := range spans {
		if sp.Rejection != candidate.Accepted && adjacentIn(sp.Components, ng.Term1, ng.Term2) {
			rejected[sp.Rejection] = true
		}
	}

	var out []string
	if rejected[candidate.RejectedRelevance] {
		out = append(out, ReasonLowRelevance)
	}
	if rejected[candidate.RejectedMinCount] {
		out = append(out, ReasonLowCount)
	}
	if rejected[candidate.RejectedNPMI] {
		out = append(out, ReasonLowNPMI)
	}
	if rejected[candidate.RejectedStopword] || rejected[candidate.RejectedComponent] {
		out = append(out, ReasonListed)
	}
	if ng.DocCount >= 2 {
		out = append(out, ReasonManyDocuments)
	}
	a, b := s.UnigramCount(ng.Term1), s.UnigramCount(ng.Term2)
	if ng.Count == min(a, b) {
		out = append(out, ReasonNeverApart)
	}
	return out
}

// confidence = 0.6*max(npmi, 0) + 0.4*count/(count+minCount), in [0,1].
func (d *Detector) confidence(ng stats.NgramStat) decimal.Decimal {
	npmi := ng.NPMI
	if npmi.IsNegative() {
		npmi = decimal.Zero
	}
	count := decimal.NewFromInt(ng.Count)
	k := decimal.NewFromInt(int64(d.cfg.DictionaryMinCount()))
	freq := count.DivRound(count.Add(k), 18)
	return pmi.Round(npmiWeight.Mul(npmi).Add(countWeight.Mul(freq)))
}

func adjacentIn(components []string, a, b string) bool {
	for i := 0; i+1 < len(components); i++ {
		if components[i] == a && components[i+1] == b {
			return true
		}
	}
	return false
}
