package pmi

import (
	"github.com/shopspring/decimal"
)

const (
	// Scale is the number of fractional digits of every emitted score.
	Scale = 6

	// divPrecision is used for exact integer ratios before the logarithm.
	divPrecision = 18
	// lnPrecision is the working precision of natural logarithms.
	lnPrecision = 16
)

var (
	one    = decimal.NewFromInt(1)
	negOne = decimal.NewFromInt(-1)
)

// Calculator computes PMI, NPMI, IDF and TF-IDF in fixed-point decimal
// arithmetic. Intermediate values are carried at high precision and every
// returned score is rounded half away from zero to Scale digits, so results
// are identical across platforms.
type Calculator struct{}

// NewCalculator creates a calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Round rounds d half away from zero to Scale fractional digits.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Cooccurrence returns PMI and NPMI of a pair.
//
//	P(a,b) = nAB / nBigrams
//	P(a)   = nA / nUnigrams
//	PMI    = ln( P(a,b) / (P(a) * P(b)) )
//	NPMI   = PMI / -ln P(a,b), clamped to [-1, 1]
//
// ok is false when either marginal count or the joint count is zero, in
// which case PMI is undefined. NPMI is 1 when P(a,b) = 1.
func (c *Calculator) Cooccurrence(nAB, nA, nB, nBigrams, nUnigrams int64) (pmi, npmi decimal.Decimal, ok bool) {
	if nAB <= 0 || nA <= 0 || nB <= 0 || nBigrams <= 0 || nUnigrams <= 0 {
		return decimal.Zero, decimal.Zero, false
	}

	// P(a,b)/(P(a)P(b)) = nAB*U*U / (N*nA*nB), formed exactly before dividing.
	u := decimal.NewFromInt(nUnigrams)
	num := decimal.NewFromInt(nAB).Mul(u).Mul(u)
	den := decimal.NewFromInt(nBigrams).Mul(decimal.NewFromInt(nA)).Mul(decimal.NewFromInt(nB))
	raw, err := ln(num.DivRound(den, divPrecision))
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}

	if nAB >= nBigrams {
		return Round(raw), one, true
	}
	lnP, err := ln(decimal.NewFromInt(nAB).DivRound(decimal.NewFromInt(nBigrams), divPrecision))
	if err != nil || lnP.IsZero() {
		return Round(raw), one, true
	}
	n := raw.DivRound(lnP.Neg(), divPrecision)
	return Round(raw), clamp(Round(n), negOne, one), true
}

// IDF returns ln(totalDocs / docCount). It is zero when the term occurs in
// every document and when either argument is not positive.
func (c *Calculator) IDF(totalDocs, docCount int64) decimal.Decimal {
	return Round(c.idf(totalDocs, docCount))
}

func (c *Calculator) idf(totalDocs, docCount int64) decimal.Decimal {
	if totalDocs <= 0 || docCount <= 0 || docCount >= totalDocs {
		return decimal.Zero
	}
	v, err := ln(decimal.NewFromInt(totalDocs).DivRound(decimal.NewFromInt(docCount), divPrecision))
	if err != nil {
		return decimal.Zero
	}
	return v
}

// AvgTFIDF returns the mean over the documents in occurrences of
// (occurrences in doc / tokens in doc) * IDF. occurrences maps document
// index to the number of times the term occurs there; docTokens maps
// document index to its total token count.
func (c *Calculator) AvgTFIDF(totalDocs int64, occurrences map[int]int64, docTokens map[int]int64) decimal.Decimal {
	if len(occurrences) == 0 {
		return decimal.Zero
	}
	idf := c.idf(totalDocs, int64(len(occurrences)))
	if idf.IsZero() {
		return decimal.Zero
	}
	sum := decimal.Zero
	for doc, n := range occurrences {
		tokens := docTokens[doc]
		if tokens <= 0 {
			continue
		}
		tf := decimal.NewFromInt(n).DivRound(decimal.NewFromInt(tokens), divPrecision)
		sum = sum.Add(tf)
	}
	mean := sum.Mul(idf).DivRound(decimal.NewFromInt(int64(len(occurrences))), divPrecision)
	return Round(mean)
}

func ln(d decimal.Decimal) (decimal.Decimal, error) {
	if d.Equal(one) {
		return decimal.Zero, nil
	}
	return d.Ln(lnPrecision)
}

func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
