package pmi

import (
	"github.com/cognicore/termex/pkg/termex/stats"
)

// ScoreBigrams returns the bigram stats of s with PMI, NPMI, IDF and
// AvgTFIDF filled in, ordered like stats.Ngrams. Bigrams whose PMI is
// undefined keep zero scores and Scored=false.
func ScoreBigrams(s stats.Stats, calc *Calculator) []stats.NgramStat {
	ngrams := s.Ngrams()
	totalDocs := int64(s.TotalDocs)
	for i := range ngrams {
		ng := &ngrams[i]
		counts := s.Bigram[ng.Pair()]

		pmi, npmi, ok := calc.Cooccurrence(
			ng.Count,
			s.UnigramCount(ng.Term1),
			s.UnigramCount(ng.Term2),
			s.TotalBigrams,
			s.TotalUnigrams,
		)
		if !ok {
			continue
		}
		ng.PMI = pmi
		ng.NPMI = npmi
		ng.IDF = calc.IDF(totalDocs, ng.DocCount)
		ng.AvgTFIDF = calc.AvgTFIDF(totalDocs, counts.Docs, s.DocTokens)
		ng.Scored = true
	}
	return ngrams
}
