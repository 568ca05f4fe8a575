// Package openai streams raw-prompt completions from any OpenAI-compatible
// /v1/completions endpoint (OpenAI, vLLM, llama.cpp server, ...).
package openai

import (
	"context"
	"fmt"
	"iter"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sweetpotato0/streamchat/config"
	"github.com/sweetpotato0/streamchat/provider"
)

// Config holds OpenAI provider configuration
type Config struct {
	BaseURL   string
	MaxTokens int64
	// MaxRetries overrides the SDK retry count when non-negative.
	MaxRetries int
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig() *Config {
	return &Config{
		MaxTokens:  512,
		MaxRetries: -1,
	}
}

// Credential accepts any non-empty key; self-hosted servers use free-form keys.
var Credential = config.CredentialRule{MinLength: 1}

// Provider implements provider.Backend for OpenAI-compatible servers.
type Provider struct {
	config *Config
}

var _ provider.Backend = (*Provider)(nil)

// New creates a new OpenAI provider using official SDK
func New(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Provider{config: cfg}
}

// Name returns "openai".
func (p *Provider) Name() string {
	return config.ProviderOpenAI
}

// CredentialRule returns the accepted key shape.
func (p *Provider) CredentialRule() config.CredentialRule {
	return Credential
}

// client is built per call because the key belongs to the session, not the process.
func (p *Provider) client(apiKey string) openai.Client {
	options := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.config.BaseURL != "" {
		options = append(options, option.WithBaseURL(p.config.BaseURL))
	}
	if p.config.MaxRetries >= 0 {
		options = append(options, option.WithMaxRetries(p.config.MaxRetries))
	}
	return openai.NewClient(options...)
}

// Stream implements provider.Streamer.
func (p *Provider) Stream(ctx context.Context, req *provider.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if req == nil {
			yield("", fmt.Errorf("stream request cannot be nil"))
			return
		}

		params := openai.CompletionNewParams{
			Model:       openai.CompletionNewParamsModel(req.Model),
			Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(req.Prompt)},
			Temperature: openai.Float(req.Temperature),
			TopP:        openai.Float(req.TopP),
		}
		if p.config.MaxTokens > 0 {
			params.MaxTokens = openai.Int(p.config.MaxTokens)
		}

		client := p.client(req.Credential)
		stream := client.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			for _, choice := range chunk.Choices {
				if choice.Text == "" {
					continue
				}
				if !yield(choice.Text, nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("OpenAI streaming error: %w", err))
		}
	}
}
