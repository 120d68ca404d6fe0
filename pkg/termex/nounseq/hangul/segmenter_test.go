package hangul

import (
	"errors"
	"reflect"
	"testing"

	"github.com/cognicore/termex/pkg/termex/internalerr"
	"github.com/cognicore/termex/pkg/termex/lexicon"
	"github.com/cognicore/termex/pkg/termex/nounseq"
)

func terms(seqs []nounseq.NounSequence) [][]string {
	out := make([][]string, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, s.Terms())
	}
	return out
}

func TestSegmenterScenarioDocuments(t *testing.T) {
	seg := New(Options{})

	cases := []struct {
		in   string
		want [][]string
	}{
		{"공유 주차장에서 결제를 진행했습니다", [][]string{{"공유", "주차장"}}},
		{"공유 주차장 이용 안내", [][]string{{"공유", "주차장", "이용", "안내"}}},
		{"", [][]string{}},
		{"결제를 진행했습니다", [][]string{}},
	}
	for _, tc := range cases {
		seqs, err := seg.ExtractWithOffsets(tc.in)
		if err != nil {
			t.Fatalf("ExtractWithOffsets(%q): %v", tc.in, err)
		}
		if got := terms(seqs); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ExtractWithOffsets(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSegmenterOffsetsPointIntoContent(t *testing.T) {
	seg := New(Options{})
	content := "신규 결제 모듈에서 오류가 발생했습니다. 결제 모듈 배포 일정"
	seqs, err := seg.ExtractWithOffsets(content)
	if err != nil {
		t.Fatalf("ExtractWithOffsets: %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("expected 2 sequences, got %v", terms(seqs))
	}
	for _, seq := range seqs {
		for i := 0; i < seq.Len(); i++ {
			tok := seq.Token(i)
			if content[tok.Start:tok.End] != tok.Term {
				t.Errorf("token %q does not match content slice %q", tok.Term, content[tok.Start:tok.End])
			}
		}
	}
	if got := seqs[0].Text(0, 2); got != "신규 결제 모듈" {
		t.Errorf("Text = %q", got)
	}
}

func TestSegmenterPunctuationBreaksRun(t *testing.T) {
	seg := New(Options{})
	seqs, err := seg.ExtractWithOffsets("결제 시스템, 정산 시스템")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"결제", "시스템"}, {"정산", "시스템"}}
	if got := terms(seqs); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSegmenterFunctionWordsBreakRun(t *testing.T) {
	seg := New(Options{})
	seqs, err := seg.ExtractWithOffsets("결제 시스템 및 정산 시스템")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"결제", "시스템"}, {"정산", "시스템"}}
	if got := terms(seqs); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSegmenterKeepsShortNouns(t *testing.T) {
	seg := New(Options{})
	// "평가" and "권한" end in particle/ending-looking syllables.
	seqs, err := seg.ExtractWithOffsets("권한 평가 기준")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"권한", "평가", "기준"}}
	if got := terms(seqs); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSegmenterLatinTokens(t *testing.T) {
	seg := New(Options{})
	seqs, err := seg.ExtractWithOffsets("API 게이트웨이를 교체합니다")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"api", "게이트웨이"}}
	if got := terms(seqs); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	tok := seqs[0].Token(0)
	if tok.Start != 0 || tok.End != 3 {
		t.Errorf("api offsets = [%d,%d)", tok.Start, tok.End)
	}
}

func TestSegmenterLexiconDecomposition(t *testing.T) {
	lex := lexicon.New()
	lex.AddNoun("공유")
	lex.AddNoun("주차장")
	seg := New(Options{Lexicon: lex})

	seqs, err := seg.ExtractWithOffsets("공유주차장 요금")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"공유", "주차장", "요금"}}
	if got := terms(seqs); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := seqs[0].Bigram(0); got != "공유주차장" {
		t.Errorf("Bigram(0) = %q", got)
	}

	// Registering the compound keeps it whole.
	lex.AddNoun("공유주차장")
	seqs, err = seg.ExtractWithOffsets("공유주차장 요금")
	if err != nil {
		t.Fatal(err)
	}
	want = [][]string{{"공유주차장", "요금"}}
	if got := terms(seqs); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSegmenterSynonyms(t *testing.T) {
	lex := lexicon.New()
	lex.AddSynonymGroup("앱", []string{"어플"})
	seg := New(Options{Lexicon: lex})

	seqs, err := seg.ExtractWithOffsets("어플 결제 오류")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"앱", "결제", "오류"}}
	if got := terms(seqs); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSegmenterInvalidUTF8(t *testing.T) {
	seg := New(Options{})
	_, err := seg.ExtractWithOffsets("결제 \xff\xfe")
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSegmenterNumbersBreakRun(t *testing.T) {
	seg := New(Options{})
	seqs, err := seg.ExtractWithOffsets("배포 일정 2024 배포 일정")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"배포", "일정"}, {"배포", "일정"}}
	if got := terms(seqs); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
