// Package tokenizer counts prompt tokens for the token budget. The
// underlying tokenizer is expensive to load, so it lives in a Cached cell
// that is populated once per process.
package tokenizer

import (
	"fmt"
	"sync"

	apperrors "github.com/sweetpotato0/streamchat/errors"
)

// Tokenizer splits text into model tokens.
type Tokenizer interface {
	Encode(text string) []int
	CountTokens(text string) int
}

// Loader constructs a Tokenizer.
type Loader func() (Tokenizer, error)

// Cached memoizes the result of a Loader. The loader runs at most once; a
// load failure is remembered and returned from every later call.
type Cached struct {
	once sync.Once
	load Loader
	tk   Tokenizer
	err  error
}

// NewCached wraps load in a once-only cache cell.
func NewCached(load Loader) *Cached {
	return &Cached{load: load}
}

// Get returns the loaded tokenizer, loading it on first use.
func (c *Cached) Get() (Tokenizer, error) {
	c.once.Do(func() {
		if c.load == nil {
			c.err = fmt.Errorf("%w: no loader configured", apperrors.ErrTokenizerLoad)
			return
		}
		tk, err := c.load()
		if err != nil {
			c.err = fmt.Errorf("%w: %w", apperrors.ErrTokenizerLoad, err)
			return
		}
		if tk == nil {
			c.err = fmt.Errorf("%w: loader returned nil", apperrors.ErrTokenizerLoad)
			return
		}
		c.tk = tk
	})
	return c.tk, c.err
}

// CountTokens counts the tokens in text with the cached tokenizer.
func (c *Cached) CountTokens(text string) (int, error) {
	tk, err := c.Get()
	if err != nil {
		return 0, err
	}
	return tk.CountTokens(text), nil
}
