// Package claude streams replies from the Anthropic Messages API. The
// formatted transcript is sent as a single user turn.
package claude

import (
	"context"
	"fmt"
	"iter"
	"math"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sweetpotato0/streamchat/config"
	"github.com/sweetpotato0/streamchat/provider"
)

// Config holds Claude provider configuration
type Config struct {
	BaseURL   string
	MaxTokens int64
}

// DefaultConfig returns default Claude configuration
func DefaultConfig() *Config {
	return &Config{
		MaxTokens: 1024,
	}
}

// Credential matches Anthropic API keys.
var Credential = config.CredentialRule{Prefix: "sk-ant-", MinLength: 20}

// Provider implements provider.Backend for Claude.
type Provider struct {
	config *Config
}

var _ provider.Backend = (*Provider)(nil)

// New creates a new Claude provider
func New(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Provider{config: cfg}
}

// Name returns "claude".
func (p *Provider) Name() string {
	return config.ProviderClaude
}

// CredentialRule returns the Anthropic key shape.
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

		options := []option.RequestOption{option.WithAPIKey(req.Credential)}
		if p.config.BaseURL != "" {
			options = append(options, option.WithBaseURL(p.config.BaseURL))
		}
		client := anthropic.NewClient(options...)

		// The Messages API caps temperature at 1.
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(req.Model),
			MaxTokens: p.config.MaxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			},
			Temperature: anthropic.Float(math.Min(req.Temperature, 1)),
			TopP:        anthropic.Float(req.TopP),
		}

		stream := client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if event.Type != "content_block_delta" {
				continue
			}
			delta := event.AsContentBlockDelta()
			if delta.Delta.Type != "text_delta" || delta.Delta.Text == "" {
				continue
			}
			if !yield(delta.Delta.Text, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("Claude streaming error: %w", err))
		}
	}
}
