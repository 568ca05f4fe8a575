// Package gemini streams replies from Google Gemini models. The formatted
// transcript is sent as a single text part.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/sweetpotato0/streamchat/config"
	"github.com/sweetpotato0/streamchat/provider"
)

// Config holds Gemini provider configuration
type Config struct {
	// Endpoint overrides the API endpoint, mainly for proxies.
	Endpoint  string
	MaxTokens int32

	// ClientOptions are appended to the per-call client options.
	ClientOptions []option.ClientOption
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig() *Config {
	return &Config{
		MaxTokens: 1024,
	}
}

// Credential matches Google API keys.
var Credential = config.CredentialRule{Prefix: "AIza", Length: 39}

// Provider implements provider.Backend for Gemini.
type Provider struct {
	config *Config
}

var _ provider.Backend = (*Provider)(nil)

// New creates a new Gemini provider
func New(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Provider{config: cfg}
}

// Name returns "gemini".
func (p *Provider) Name() string {
	return config.ProviderGemini
}

// CredentialRule returns the Google API key shape.
func (p *Provider) CredentialRule() config.CredentialRule {
	return Credential
}

// Stream implements provider.Streamer.
func (p *Provider) Stream(ctx context.Context, req *provider.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if req == nil {
			yield("", fmt.Errorf("stream request cannot be nil"))
			return
		}

		opts := []option.ClientOption{option.WithAPIKey(req.Credential)}
		if p.config.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(p.config.Endpoint))
		}
		opts = append(opts, p.config.ClientOptions...)
		client, err := genai.NewClient(ctx, opts...)
		if err != nil {
			yield("", fmt.Errorf("failed to create Gemini client: %w", err))
			return
		}
		defer client.Close()

		model := client.GenerativeModel(req.Model)
		// Gemini rejects temperatures above 2.
		model.SetTemperature(float32(math.Min(req.Temperature, 2)))
		model.SetTopP(float32(req.TopP))
		if p.config.MaxTokens > 0 {
			model.SetMaxOutputTokens(p.config.MaxTokens)
		}

		it := model.GenerateContentStream(ctx, genai.Text(req.Prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("Gemini streaming error: %w", err))
				return
			}
			for _, text := range texts(resp) {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func texts(resp *genai.GenerateContentResponse) []string {
	if resp == nil {
		return nil
	}
	var out []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok && t != "" {
				out = append(out, string(t))
			}
		}
	}
	return out
}
