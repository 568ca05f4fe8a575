package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"
)

var _ Tokenizer = (*TiktokenTokenizer)(nil)

// TiktokenTokenizer counts tokens with an OpenAI BPE encoding.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer resolves name as a model name first, then as an
// encoding name such as "cl100k_base".
func NewTiktokenTokenizer(name string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// Encode returns the token ids of text, treating special-token text as plain text.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// CountTokens returns the number of tokens in text.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}
