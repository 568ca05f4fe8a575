package tokenizer

import (
	"hash/fnv"
	"strings"
	"unicode"
)

var _ Tokenizer = (*WordTokenizer)(nil)

// WordTokenizer is a dependency-free approximation used offline and in
// tests. It is stateless and safe for concurrent use.
//
// Rules:
//   - letters and digits form a continuous word
//   - Han characters are single tokens
//   - any other non-space rune is a standalone token
type WordTokenizer struct{}

// NewWordTokenizer returns a WordTokenizer.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

func (t *WordTokenizer) split(s string) []string {
	var toks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			toks = append(toks, buf.String())
			buf.Reset()
		}
	}

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()

		case unicode.Is(unicode.Han, r):
			flush()
			toks = append(toks, string(r))

		case unicode.IsLetter(r) || unicode.IsDigit(r):
			buf.WriteRune(r)

		default:
			flush()
			toks = append(toks, string(r))
		}
	}

	flush()
	return toks
}

// Encode maps each token to a stable hash-derived id.
func (t *WordTokenizer) Encode(text string) []int {
	toks := t.split(text)
	ids := make([]int, 0, len(toks))
	for _, tok := range toks {
		h := fnv.New32a()
		h.Write([]byte(tok))
		ids = append(ids, int(h.Sum32()&0x7fffffff))
	}
	return ids
}

// CountTokens returns the number of tokens in text.
func (t *WordTokenizer) CountTokens(text string) int {
	return len(t.split(text))
}
