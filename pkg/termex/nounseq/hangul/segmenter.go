package hangul

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/termex/pkg/termex/internalerr"
	"github.com/cognicore/termex/pkg/termex/lexicon"
	"github.com/cognicore/termex/pkg/termex/nounseq"
)

// Predicate endings stripped from the end of an eojeol. The remaining stem is
// kept as a noun ("진행했습니다" -> "진행") and the noun run closes after it.
var defaultEndings = []string{
	"되었습니다", "하였습니다", "했습니다", "합니다", "됩니다", "입니다",
	"하였다", "되었다", "했으며", "했는데", "하는데", "하려면", "해야", "하면",
	"했다", "한다", "된다", "하는", "되는", "하고", "하여", "해서", "하게",
	"하기", "하지", "이다", "이며", "하다", "되다", "한", "된", "할", "될",
}

// Particles (josa) stripped from the end of an eojeol. Single-rune particles
// are only stripped when at least two runes remain so that nouns such as
// "평가" or "회의" survive.
var defaultParticles = []string{
	"에서는", "에서도", "으로는", "에게서", "이라는", "라는",
	"에서", "으로", "에게", "한테", "까지", "부터", "보다", "처럼", "마다",
	"이나", "이랑", "께서", "에는", "에도", "와는", "과는", "로서", "로써",
	"를", "을", "이", "가", "은", "는", "의", "와", "과", "도", "만", "에", "로", "나", "랑",
}

// Nouns that end in a particle-looking syllable and must never be stripped.
var defaultNouns = []string{
	"전문가", "게이트웨이", "디스플레이", "어레이", "릴레이", "딜레이", "오버레이",
	"정확도", "만족도", "신뢰도", "중요도", "완성도", "난이도",
}

// Standalone words that are never terminology: determiners, bound nouns and
// conjunctive adverbs. They close the current run.
var functionWords = map[string]struct{}{
	"이": {}, "그": {}, "저": {}, "것": {}, "수": {}, "등": {}, "및": {}, "또": {},
	"더": {}, "잘": {}, "좀": {}, "안": {}, "못": {}, "때": {}, "중": {}, "위": {},
	"내": {}, "외": {}, "분": {}, "개": {}, "번": {}, "또는": {}, "그리고": {}, "하지만": {},
}

// Segmenter is a rule-based Korean noun-run extractor. It is deliberately
// shallow: eojeol are split on whitespace, trailing particles and predicate
// endings are stripped, and stems are split into dictionary nouns by greedy
// longest match. Safe for concurrent use.
type Segmenter struct {
	lex       *lexicon.Lexicon
	endings   []string
	particles []string
	keep      map[string]struct{}
}

// Options configures a Segmenter.
type Options struct {
	Lexicon        *lexicon.Lexicon // optional user dictionary
	ExtraEndings   []string
	ExtraParticles []string
}

// New creates a segmenter.
func New(opts Options) *Segmenter {
	lex := opts.Lexicon
	if lex == nil {
		lex = lexicon.New()
	}
	keep := make(map[string]struct{}, len(defaultNouns))
	for _, n := range defaultNouns {
		keep[n] = struct{}{}
	}
	return &Segmenter{
		lex:       lex,
		endings:   byLengthDesc(append(append([]string{}, defaultEndings...), opts.ExtraEndings...)),
		particles: byLengthDesc(append(append([]string{}, defaultParticles...), opts.ExtraParticles...)),
		keep:      keep,
	}
}

// eojeol is a whitespace-delimited word with its byte span.
type eojeol struct {
	text  string
	start int
	// brokenBefore is set when punctuation separates this eojeol from the
	// previous one.
	brokenBefore bool
}

// ExtractWithOffsets implements nounseq.Source.
func (s *Segmenter) ExtractWithOffsets(content string) ([]nounseq.NounSequence, error) {
	if !utf8.ValidString(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", internalerr.ErrInvalidInput)
	}

	var (
		out []nounseq.NounSequence
		run []nounseq.TokenWithOffset
	)
	flush := func() error {
		if len(run) >= 2 {
			seq, err := nounseq.New(content, run)
			if err != nil {
				return err
			}
			out = append(out, seq)
		}
		run = nil
		return nil
	}

	for _, w := range splitEojeol(content) {
		if w.brokenBefore {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		tokens, closes := s.analyze(w)
		if len(tokens) == 0 {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		run = append(run, tokens...)
		if closes {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// analyze returns the noun tokens of one eojeol and whether a stripped
// suffix closes the current run.
func (s *Segmenter) analyze(w eojeol) ([]nounseq.TokenWithOffset, bool) {
	stem := w.text
	closes := false
	if !s.isKnown(stem) {
		if cut, ok := s.stripSuffix(stem); ok {
			stem = stem[:cut]
			closes = true
		}
	}
	if _, ok := functionWords[stem]; ok || !isNounStem(stem) {
		return nil, true
	}

	pieces := s.decompose(stem)
	tokens := make([]nounseq.TokenWithOffset, 0, len(pieces))
	offset := w.start
	for _, p := range pieces {
		term := s.lex.Normalize(strings.ToLower(p))
		tokens = append(tokens, nounseq.TokenWithOffset{
			Term:  term,
			Start: offset,
			End:   offset + len(p),
		})
		offset += len(p)
	}
	return tokens, closes
}

func (s *Segmenter) isKnown(word string) bool {
	if _, ok := s.keep[word]; ok {
		return true
	}
	return s.lex.Contains(word)
}

// stripSuffix returns the byte length of the stem left after removing the
// longest matching predicate ending or particle. Single-rune suffixes are only
// stripped when at least two runes remain.
func (s *Segmenter) stripSuffix(word string) (int, bool) {
	if n, ok := stripOne(word, s.endings, true); ok {
		return n, true
	}
	return stripOne(word, s.particles, false)
}

func stripOne(word string, suffixes []string, allowEmpty bool) (int, bool) {
	for _, suf := range suffixes {
		if !strings.HasSuffix(word, suf) {
			continue
		}
		rest := word[:len(word)-len(suf)]
		if rest == "" {
			if allowEmpty {
				return 0, true
			}
			continue
		}
		minStem := 1
		if utf8.RuneCountInString(suf) == 1 {
			minStem = 2
		}
		if utf8.RuneCountInString(rest) < minStem {
			continue
		}
		return len(rest), true
	}
	return 0, false
}

// decompose splits a stem into dictionary nouns by greedy longest match.
// The whole stem is returned when the lexicon cannot cover it.
func (s *Segmenter) decompose(stem string) []string {
	if s.lex.Contains(stem) {
		return []string{stem}
	}
	var pieces []string
	rest := stem
	for rest != "" {
		n := s.lex.LongestPrefix(rest)
		if n == 0 {
			return []string{stem}
		}
		pieces = append(pieces, rest[:n])
		rest = rest[n:]
	}
	return pieces
}

func isNounStem(stem string) bool {
	if stem == "" {
		return false
	}
	runes := 0
	letters := 0
	hangul := false
	for _, r := range stem {
		runes++
		switch {
		case unicode.Is(unicode.Hangul, r):
			hangul = true
			letters++
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
		default:
			return false
		}
	}
	if letters == 0 {
		return false
	}
	// Single Latin letters ("a", "x") carry no terminology signal.
	return hangul || runes >= 2
}

func splitEojeol(content string) []eojeol {
	var (
		out    []eojeol
		start  = -1
		broken bool
	)
	for i, r := range content {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, eojeol{text: content[start:i], start: start, brokenBefore: broken})
			start = -1
			broken = false
		}
		if !unicode.IsSpace(r) {
			broken = true
		}
	}
	if start >= 0 {
		out = append(out, eojeol{text: content[start:], start: start, brokenBefore: broken})
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func byLengthDesc(list []string) []string {
	sort.SliceStable(list, func(i, j int) bool {
		return len(list[i]) > len(list[j])
	})
	return list
}
