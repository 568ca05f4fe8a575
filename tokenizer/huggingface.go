package tokenizer

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"github.com/viant/afs"
)

var _ Tokenizer = (*HFTokenizer)(nil)

var fileSystem = afs.New()

// HFTokenizer wraps a Hugging Face tokenizer.json.
type HFTokenizer struct {
	tk *tokenizer.Tokenizer
}

// LoadHF reads a tokenizer.json from a local path or any URL afs can open
// (file://, https://, s3://, ...).
func LoadHF(ctx context.Context, location string) (*HFTokenizer, error) {
	rc, err := fileSystem.OpenURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", location, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return NewHFTokenizer(raw)
}

// NewHFTokenizer parses tokenizer.json bytes.
func NewHFTokenizer(raw []byte) (*HFTokenizer, error) {
	tk, err := pretrained.FromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	return &HFTokenizer{tk: tk}, nil
}

func (t *HFTokenizer) encode(text string) *tokenizer.Encoding {
	// No special tokens: only the prompt text itself is counted.
	enc, err := t.tk.EncodeSingle(text, false)
	if err != nil {
		return nil
	}
	return enc
}

// Encode returns the token ids of text, or nil if encoding fails.
func (t *HFTokenizer) Encode(text string) []int {
	enc := t.encode(text)
	if enc == nil {
		return nil
	}
	return enc.Ids
}

// CountTokens returns the number of tokens in text. If encoding fails the
// byte length is returned, an upper bound for byte-fallback vocabularies.
func (t *HFTokenizer) CountTokens(text string) int {
	enc := t.encode(text)
	if enc == nil {
		return len(text)
	}
	return len(enc.Tokens)
}
