package nounseq

import (
	"fmt"
	"strings"

	"github.com/cognicore/termex/pkg/termex/internalerr"
)

// TokenWithOffset is a noun token and its half-open byte span in the
// document it was read from.
type TokenWithOffset struct {
	Term  string `json:"term"`
	Start int    `json:"start_offset"`
	End   int    `json:"end_offset"`
}

// NounSequence is one maximal run of consecutive noun tokens in a document.
// It keeps a reference to the document content so the original text of any
// token range can be recovered.
type NounSequence struct {
	content string
	tokens  []TokenWithOffset
}

// Source extracts noun sequences from document content.
// Implementations must return only sequences of length >= 2 whose offsets
// index the exact content passed in.
type Source interface {
	ExtractWithOffsets(content string) ([]NounSequence, error)
}

// New validates tokens against content and returns an immutable sequence.
func New(content string, tokens []TokenWithOffset) (NounSequence, error) {
	if len(tokens) < 2 {
		return NounSequence{}, fmt.Errorf("%w: noun sequence needs at least 2 tokens, got %d", internalerr.ErrInvalidInput, len(tokens))
	}
	prevEnd := 0
	for i, tok := range tokens {
		if tok.Term == "" {
			return NounSequence{}, fmt.Errorf("%w: token %d has empty term", internalerr.ErrInvalidInput, i)
		}
		if tok.Start < 0 || tok.Start >= tok.End || tok.End > len(content) {
			return NounSequence{}, fmt.Errorf("%w: token %d offsets [%d,%d) outside content of length %d", internalerr.ErrInvalidInput, i, tok.Start, tok.End, len(content))
		}
		if tok.Start < prevEnd {
			return NounSequence{}, fmt.Errorf("%w: token %d overlaps previous token", internalerr.ErrInvalidInput, i)
		}
		prevEnd = tok.End
	}
	copied := make([]TokenWithOffset, len(tokens))
	copy(copied, tokens)
	return NounSequence{content: content, tokens: copied}, nil
}

// Len returns the number of tokens.
func (s NounSequence) Len() int {
	return len(s.tokens)
}

// Token returns the i-th token.
func (s NounSequence) Token(i int) TokenWithOffset {
	return s.tokens[i]
}

// Terms returns the token terms in order.
func (s NounSequence) Terms() []string {
	out := make([]string, len(s.tokens))
	for i, tok := range s.tokens {
		out[i] = tok.Term
	}
	return out
}

// Text returns the original text spanning tokens from..to inclusive,
// including whatever the tokenizer dropped between them.
func (s NounSequence) Text(from, to int) string {
	if from < 0 || to >= len(s.tokens) || from > to {
		return ""
	}
	return s.content[s.tokens[from].Start:s.tokens[to].End]
}

// Bigram returns the original text of tokens i and i+1.
func (s NounSequence) Bigram(i int) string {
	return s.Text(i, i+1)
}

// Join concatenates the terms of tokens from..to inclusive without a separator.
func (s NounSequence) Join(from, to int) string {
	var b strings.Builder
	for i := from; i <= to && i < len(s.tokens); i++ {
		b.WriteString(s.tokens[i].Term)
	}
	return b.String()
}

// HasPrefixAt reports whether terms occur at position i.
func (s NounSequence) HasPrefixAt(i int, terms []string) bool {
	if i < 0 || i+len(terms) > len(s.tokens) {
		return false
	}
	for k, term := range terms {
		if s.tokens[i+k].Term != term {
			return false
		}
	}
	return true
}
