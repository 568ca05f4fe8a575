package tokenizer

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/streamchat/config"
	apperrors "github.com/sweetpotato0/streamchat/errors"
)

// NewLoader returns the Loader for the configured backend. Nothing is read
// until the loader runs.
func NewLoader(ctx context.Context, cfg config.TokenizerConfig) (Loader, error) {
	switch cfg.Backend {
	case config.TokenizerHuggingFace:
		return func() (Tokenizer, error) {
			return LoadHF(ctx, cfg.Source)
		}, nil
	case config.TokenizerTiktoken:
		return func() (Tokenizer, error) {
			return NewTiktokenTokenizer(cfg.Source)
		}, nil
	case config.TokenizerWords:
		return func() (Tokenizer, error) {
			return NewWordTokenizer(), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown tokenizer backend %q", apperrors.ErrInvalidInput, cfg.Backend)
	}
}
