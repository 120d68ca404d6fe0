package lexicon

import (
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Lexicon is the user noun dictionary consulted by the segmenter:
//   - Nouns: known whole-word nouns, used to split compound eojeol stems
//     ("공유주차장" -> "공유" + "주차장") and, once a compound itself is
//     registered, to keep it whole.
//   - Synonyms: variant -> canonical normalization (어플 -> 앱, API -> api).
//
// A Lexicon is read-only after loading and safe for concurrent readers.
type Lexicon struct {
	nouns    map[string]struct{}
	maxRunes int

	// canonical -> variants (canonical first)
	synonyms map[string][]string
	// variant -> canonical
	reverseIndex map[string]string
}

// File is the YAML layout of a user dictionary.
//
//	nouns: [공유, 주차장, 결제]
//	synonyms:
//	  - canonical: 앱
//	    variants: [어플, 어플리케이션]
type File struct {
	Nouns    []string       `yaml:"nouns"`
	Synonyms []SynonymGroup `yaml:"synonyms,omitempty"`
}

// SynonymGroup maps variants onto a canonical noun.
type SynonymGroup struct {
	Canonical string   `yaml:"canonical"`
	Variants  []string `yaml:"variants"`
}

// New creates an empty lexicon.
func New() *Lexicon {
	return &Lexicon{
		nouns:        make(map[string]struct{}),
		synonyms:     make(map[string][]string),
		reverseIndex: make(map[string]string),
	}
}

// LoadFromYAML loads a user dictionary file.
func LoadFromYAML(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	lex := New()
	for _, n := range f.Nouns {
		lex.AddNoun(n)
	}
	for _, g := range f.Synonyms {
		lex.AddSynonymGroup(g.Canonical, g.Variants)
	}
	return lex, nil
}

// WriteYAML writes nouns (sorted, deduplicated) as a dictionary file that
// LoadFromYAML accepts.
func WriteYAML(path string, nouns []string) error {
	set := make(map[string]struct{}, len(nouns))
	for _, n := range nouns {
		n = normalizeKey(n)
		if n != "" {
			set[n] = struct{}{}
		}
	}
	f := File{Nouns: make([]string, 0, len(set))}
	for n := range set {
		f.Nouns = append(f.Nouns, n)
	}
	sort.Strings(f.Nouns)

	buf, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// AddNoun registers a whole-word noun.
func (l *Lexicon) AddNoun(noun string) {
	noun = normalizeKey(noun)
	if noun == "" {
		return
	}
	l.nouns[noun] = struct{}{}
	if n := utf8.RuneCountInString(noun); n > l.maxRunes {
		l.maxRunes = n
	}
}

// AddSynonymGroup registers variants of a canonical noun. The canonical form
// is also registered as a noun.
func (l *Lexicon) AddSynonymGroup(canonical string, variants []string) {
	canonical = normalizeKey(canonical)
	if canonical == "" {
		return
	}

	if old, exists := l.synonyms[canonical]; exists {
		for _, v := range old {
			delete(l.reverseIndex, v)
		}
	}

	normalized := []string{canonical}
	seen := map[string]bool{canonical: true}
	for _, v := range variants {
		v = normalizeKey(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		normalized = append(normalized, v)
	}
	l.synonyms[canonical] = normalized
	for _, v := range normalized {
		l.reverseIndex[v] = canonical
	}
	l.AddNoun(canonical)
}

// Contains reports whether noun is a registered noun.
func (l *Lexicon) Contains(noun string) bool {
	_, ok := l.nouns[normalizeKey(noun)]
	return ok
}

// Normalize returns the canonical form of a token, or the token itself.
func (l *Lexicon) Normalize(token string) string {
	if canonical, ok := l.reverseIndex[normalizeKey(token)]; ok {
		return canonical
	}
	return token
}

// LongestPrefix returns the byte length of the longest registered noun that
// is a prefix of s, or 0 when none is.
func (l *Lexicon) LongestPrefix(s string) int {
	if len(l.nouns) == 0 {
		return 0
	}
	// Collect rune boundaries up to maxRunes, then try longest first.
	bounds := make([]int, 0, l.maxRunes)
	for i, r := range s {
		if len(bounds) >= l.maxRunes {
			break
		}
		bounds = append(bounds, i+utf8.RuneLen(r))
	}
	for k := len(bounds) - 1; k >= 0; k-- {
		if _, ok := l.nouns[strings.ToLower(s[:bounds[k]])]; ok {
			return bounds[k]
		}
	}
	return 0
}

// Nouns returns all registered nouns in sorted order.
func (l *Lexicon) Nouns() []string {
	out := make([]string, 0, len(l.nouns))
	for n := range l.nouns {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Stats returns statistics about the lexicon contents.
func (l *Lexicon) Stats() Stats {
	variants := 0
	for _, vs := range l.synonyms {
		variants += len(vs)
	}
	return Stats{
		Nouns:         len(l.nouns),
		SynonymGroups: len(l.synonyms),
		TotalVariants: variants,
	}
}

// Stats holds statistics about lexicon contents.
type Stats struct {
	Nouns         int
	SynonymGroups int
	TotalVariants int
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
