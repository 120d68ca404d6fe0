package stats

import (
	"reflect"
	"strings"
	"testing"

	"github.com/cognicore/termex/pkg/termex/nounseq"
)

// seqOf builds a sequence from space-separated terms.
func seqOf(t *testing.T, text string) nounseq.NounSequence {
	t.Helper()
	var tokens []nounseq.TokenWithOffset
	offset := 0
	for _, term := range strings.Fields(text) {
		start := strings.Index(text[offset:], term) + offset
		tokens = append(tokens, nounseq.TokenWithOffset{Term: term, Start: start, End: start + len(term)})
		offset = start + len(term)
	}
	seq, err := nounseq.New(text, tokens)
	if err != nil {
		t.Fatalf("nounseq.New(%q): %v", text, err)
	}
	return seq
}

func TestAggregatorCounts(t *testing.T) {
	agg := NewAggregator()
	agg.Add(0, []nounseq.NounSequence{seqOf(t, "공유 주차장")})
	agg.Add(1, []nounseq.NounSequence{seqOf(t, "공유 주차장 이용 안내")})
	agg.Add(2, nil)

	s := agg.Snapshot()
	if s.TotalDocs != 3 {
		t.Errorf("TotalDocs = %d, want 3", s.TotalDocs)
	}
	if s.TotalUnigrams != 6 || s.TotalBigrams != 4 {
		t.Errorf("totals = %d/%d, want 6/4", s.TotalUnigrams, s.TotalBigrams)
	}

	wantUni := []UnigramStat{
		{Term: "공유", Count: 2, DocCount: 2},
		{Term: "주차장", Count: 2, DocCount: 2},
		{Term: "안내", Count: 1, DocCount: 1},
		{Term: "이용", Count: 1, DocCount: 1},
	}
	if got := s.Unigrams(); !reflect.DeepEqual(got, wantUni) {
		t.Errorf("Unigrams = %+v, want %+v", got, wantUni)
	}

	ngrams := s.Ngrams()
	if len(ngrams) != 3 {
		t.Fatalf("expected 3 bigrams, got %d", len(ngrams))
	}
	first := ngrams[0]
	if first.Term1 != "공유" || first.Term2 != "주차장" || first.Count != 2 || first.DocCount != 2 {
		t.Errorf("top bigram = %+v", first)
	}
	if ngrams[1].Term1 != "이용" || ngrams[2].Term1 != "주차장" {
		t.Errorf("ties should be ordered by term: %+v", ngrams)
	}
	if !reflect.DeepEqual(s.DocTokens, map[int]int64{0: 2, 1: 4}) {
		t.Errorf("DocTokens = %v", s.DocTokens)
	}
}

func TestAggregatorDocCountWithinDocument(t *testing.T) {
	agg := NewAggregator()
	agg.Add(0, []nounseq.NounSequence{
		seqOf(t, "결제 모듈"),
		seqOf(t, "결제 모듈 오류"),
	})
	s := agg.Snapshot()

	c := s.Bigram[Pair{First: "결제", Second: "모듈"}]
	if c.Count != 2 || c.DocCount() != 1 {
		t.Errorf("bigram counts = %d/%d, want 2/1", c.Count, c.DocCount())
	}
	if s.Unigram["결제"].Docs[0] != 2 {
		t.Errorf("per-document occurrences = %d, want 2", s.Unigram["결제"].Docs[0])
	}
}

func TestAggregatorBigramsAreOrdered(t *testing.T) {
	agg := NewAggregator()
	agg.Add(0, []nounseq.NounSequence{seqOf(t, "a b"), seqOf(t, "b a")})
	s := agg.Snapshot()
	if len(s.Bigram) != 2 {
		t.Errorf("(a,b) and (b,a) are distinct, got %d bigrams", len(s.Bigram))
	}
}

func TestMergeMatchesSequentialAdd(t *testing.T) {
	docs := [][]string{
		{"공유 주차장", "결제 모듈"},
		{"공유 주차장 이용 안내"},
		{},
		{"결제 모듈 오류", "공유 주차장"},
	}

	seq := NewAggregator()
	for i, d := range docs {
		var seqs []nounseq.NounSequence
		for _, text := range d {
			seqs = append(seqs, seqOf(t, text))
		}
		seq.Add(i, seqs)
	}

	// Merge partials in reverse order.
	merged := NewAggregator()
	for i := len(docs) - 1; i >= 0; i-- {
		part := NewAggregator()
		var seqs []nounseq.NounSequence
		for _, text := range docs[i] {
			seqs = append(seqs, seqOf(t, text))
		}
		part.Add(i, seqs)
		merged.Merge(part)
	}

	if !reflect.DeepEqual(seq.Snapshot(), merged.Snapshot()) {
		t.Error("merge result depends on order")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	agg := NewAggregator()
	agg.Add(0, []nounseq.NounSequence{seqOf(t, "a b")})
	s := agg.Snapshot()
	agg.Add(1, []nounseq.NounSequence{seqOf(t, "a b")})

	if s.Unigram["a"].Count != 1 || s.Unigram["a"].DocCount() != 1 {
		t.Errorf("snapshot changed after Add: %+v", s.Unigram["a"])
	}
}

func TestEmptyAggregator(t *testing.T) {
	s := NewAggregator().Snapshot()
	if len(s.Unigrams()) != 0 || len(s.Ngrams()) != 0 || s.TotalDocs != 0 {
		t.Errorf("expected empty stats, got %+v", s)
	}
	if s.Unigrams() == nil || s.Ngrams() == nil {
		t.Error("empty lists should be non-nil")
	}
}
