package pmi

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cognicore/termex/pkg/termex/nounseq"
	"github.com/cognicore/termex/pkg/termex/stats"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCooccurrenceStrongAssociation(t *testing.T) {
	calc := NewCalculator()

	pmi, npmi, ok := calc.Cooccurrence(2, 2, 2, 4, 6)
	if !ok {
		t.Fatal("expected defined PMI")
	}
	if !pmi.Equal(dec("1.504077")) {
		t.Errorf("PMI = %s, want 1.504077", pmi)
	}
	if !npmi.Equal(dec("1")) {
		t.Errorf("NPMI should clamp to 1, got %s", npmi)
	}
}

func TestCooccurrenceIndependent(t *testing.T) {
	calc := NewCalculator()

	pmi, npmi, ok := calc.Cooccurrence(1, 2, 2, 4, 4)
	if !ok {
		t.Fatal("expected defined PMI")
	}
	if !pmi.IsZero() || !npmi.IsZero() {
		t.Errorf("independent pair should score 0, got pmi=%s npmi=%s", pmi, npmi)
	}
}

func TestCooccurrenceNegative(t *testing.T) {
	calc := NewCalculator()

	pmi, npmi, ok := calc.Cooccurrence(1, 5, 5, 10, 10)
	if !ok {
		t.Fatal("expected defined PMI")
	}
	if !pmi.Equal(dec("-0.916291")) {
		t.Errorf("PMI = %s, want -0.916291", pmi)
	}
	if !npmi.Equal(dec("-0.39794")) {
		t.Errorf("NPMI = %s, want -0.397940", npmi)
	}
}

func TestCooccurrenceDegenerateJoint(t *testing.T) {
	calc := NewCalculator()

	// Every bigram observation is this pair: P(a,b) = 1.
	pmi, npmi, ok := calc.Cooccurrence(3, 3, 3, 3, 6)
	if !ok {
		t.Fatal("expected defined PMI")
	}
	if !pmi.Equal(dec("1.386294")) {
		t.Errorf("PMI = %s, want 1.386294", pmi)
	}
	if !npmi.Equal(dec("1")) {
		t.Errorf("NPMI = %s, want 1", npmi)
	}
}

func TestCooccurrenceUndefined(t *testing.T) {
	calc := NewCalculator()
	cases := [][5]int64{
		{1, 0, 2, 4, 6},
		{1, 2, 0, 4, 6},
		{0, 2, 2, 4, 6},
		{1, 2, 2, 0, 6},
	}
	for _, tc := range cases {
		if _, _, ok := calc.Cooccurrence(tc[0], tc[1], tc[2], tc[3], tc[4]); ok {
			t.Errorf("Cooccurrence%v should be undefined", tc)
		}
	}
}

func TestNPMIBounds(t *testing.T) {
	calc := NewCalculator()
	for nAB := int64(1); nAB <= 20; nAB++ {
		for nA := nAB; nA <= 30; nA += 7 {
			_, npmi, ok := calc.Cooccurrence(nAB, nA, nAB+3, 40, 100)
			if !ok {
				continue
			}
			if npmi.LessThan(dec("-1")) || npmi.GreaterThan(dec("1")) {
				t.Fatalf("NPMI %s out of bounds for nAB=%d nA=%d", npmi, nAB, nA)
			}
		}
	}
}

func TestIDF(t *testing.T) {
	calc := NewCalculator()
	cases := []struct {
		total, df int64
		want      string
	}{
		{2, 1, "0.693147"},
		{2, 2, "0"},
		{10, 1, "2.302585"},
		{0, 0, "0"},
		{5, 0, "0"},
	}
	for _, tc := range cases {
		if got := calc.IDF(tc.total, tc.df); !got.Equal(dec(tc.want)) {
			t.Errorf("IDF(%d,%d) = %s, want %s", tc.total, tc.df, got, tc.want)
		}
	}
}

func TestAvgTFIDF(t *testing.T) {
	calc := NewCalculator()

	got := calc.AvgTFIDF(2, map[int]int64{1: 1}, map[int]int64{0: 2, 1: 4})
	if !got.Equal(dec("0.173287")) {
		t.Errorf("AvgTFIDF = %s, want 0.173287", got)
	}

	// Present everywhere: idf is 0, so is the mean.
	got = calc.AvgTFIDF(2, map[int]int64{0: 1, 1: 1}, map[int]int64{0: 2, 1: 4})
	if !got.IsZero() {
		t.Errorf("AvgTFIDF = %s, want 0", got)
	}

	if got := calc.AvgTFIDF(2, nil, nil); !got.IsZero() {
		t.Errorf("empty occurrences should score 0, got %s", got)
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{
		"0.0000005":    "0.000001",
		"-0.0000005":   "-0.000001",
		"0.0000004999": "0",
		"1.2345675":    "1.234568",
	}
	for in, want := range cases {
		if got := Round(dec(in)); !got.Equal(dec(want)) {
			t.Errorf("Round(%s) = %s, want %s", in, got, want)
		}
	}
}

func scenarioStats(t *testing.T) stats.Stats {
	t.Helper()
	agg := stats.NewAggregator()
	for i, text := range []string{"공유 주차장", "공유 주차장 이용 안내"} {
		var tokens []nounseq.TokenWithOffset
		offset := 0
		for _, term := range strings.Fields(text) {
			start := strings.Index(text[offset:], term) + offset
			tokens = append(tokens, nounseq.TokenWithOffset{Term: term, Start: start, End: start + len(term)})
			offset = start + len(term)
		}
		seq, err := nounseq.New(text, tokens)
		if err != nil {
			t.Fatal(err)
		}
		agg.Add(i, []nounseq.NounSequence{seq})
	}
	return agg.Snapshot()
}

func TestScoreBigrams(t *testing.T) {
	ngrams := ScoreBigrams(scenarioStats(t), NewCalculator())
	if len(ngrams) != 3 {
		t.Fatalf("expected 3 bigrams, got %d", len(ngrams))
	}

	top := ngrams[0]
	if top.Term1 != "공유" || top.Term2 != "주차장" {
		t.Fatalf("unexpected order: %+v", ngrams)
	}
	if !top.Scored || !top.NPMI.Equal(dec("1")) || !top.PMI.Equal(dec("1.504077")) {
		t.Errorf("top bigram scores = %+v", top)
	}
	if !top.IDF.IsZero() || !top.AvgTFIDF.IsZero() {
		t.Errorf("bigram in every document should have idf 0, got %s/%s", top.IDF, top.AvgTFIDF)
	}

	for _, ng := range ngrams[1:] {
		if !ng.IDF.Equal(dec("0.693147")) {
			t.Errorf("%s %s IDF = %s", ng.Term1, ng.Term2, ng.IDF)
		}
		if !ng.AvgTFIDF.Equal(dec("0.173287")) {
			t.Errorf("%s %s AvgTFIDF = %s", ng.Term1, ng.Term2, ng.AvgTFIDF)
		}
	}
}
