// Package replicate streams completions from the Replicate predictions API.
package replicate

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/replicate/replicate-go"

	"github.com/sweetpotato0/streamchat/config"
	"github.com/sweetpotato0/streamchat/provider"
)

// DefaultBaseURL is the public Replicate API.
const DefaultBaseURL = "https://api.replicate.com/v1"

// Config holds Replicate provider configuration
type Config struct {
	BaseURL string
	// Timeout bounds the prediction create call; the stream itself is bounded
	// only by the request context.
	Timeout time.Duration
}

// DefaultConfig returns default Replicate configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
	}
}

// Provider implements provider.Backend for Replicate.
type Provider struct {
	config *Config
}

var _ provider.Backend = (*Provider)(nil)

// New creates a new Replicate provider
func New(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{config: cfg}
}

// Name returns "replicate".
func (p *Provider) Name() string {
	return config.ProviderReplicate
}

// CredentialRule returns the Replicate token shape.
func (p *Provider) CredentialRule() config.CredentialRule {
	return config.ReplicateCredential
}

// client builds a client for one call; the token belongs to the session.
func (p *Provider) client(token string) (*replicate.Client, error) {
	return replicate.NewClient(
		replicate.WithToken(token),
		replicate.WithBaseURL(strings.TrimRight(p.config.BaseURL, "/")),
	)
}

// Stream implements provider.Streamer.
func (p *Provider) Stream(ctx context.Context, req *provider.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if req == nil {
			yield("", fmt.Errorf("stream request cannot be nil"))
			return
		}

		client, err := p.client(req.Credential)
		if err != nil {
			yield("", fmt.Errorf("replicate: create client: %w", err))
			return
		}
		pred, err := p.createPrediction(ctx, client, req)
		if err != nil {
			yield("", err)
			return
		}

		// Stop the SDK's reader when the consumer stops early.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		events, errs := client.StreamPrediction(ctx, pred)
		for frag, err := range relay(ctx, pred.ID, events, errs) {
			if !yield(frag, err) || err != nil {
				return
			}
		}
	}
}

func (p *Provider) createPrediction(ctx context.Context, client *replicate.Client, req *provider.Request) (*replicate.Prediction, error) {
	owner, name, version, err := parseModel(req.Model)
	if err != nil {
		return nil, err
	}
	input := replicate.PredictionInput{
		"prompt":      req.Prompt,
		"temperature": req.Temperature,
		"top_p":       req.TopP,
	}
	if req.PromptTemplate != "" {
		input["prompt_template"] = req.PromptTemplate
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	var pred *replicate.Prediction
	if version != "" {
		pred, err = client.CreatePrediction(ctx, version, input, nil, true)
	} else {
		pred, err = client.CreatePredictionWithModel(ctx, owner, name, input, nil, true)
	}
	if err != nil {
		return nil, fmt.Errorf("replicate: create prediction: %w", err)
	}
	if pred.Status == replicate.Failed {
		return nil, fmt.Errorf("replicate: prediction %s failed: %v", pred.ID, pred.Error)
	}
	return pred, nil
}

// relay turns the SDK's event channels into fragments. The sequence fails
// unless the stream ends with a clean done event: a stream cut short is an
// incomplete reply.
func relay(ctx context.Context, id string, events <-chan replicate.SSEEvent, errs <-chan error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for events != nil || errs != nil {
			select {
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					yield("", fmt.Errorf("replicate: prediction %s: %w", id, err))
					return
				}
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				switch ev.Type {
				case replicate.SSETypeOutput:
					if ev.Data == "" {
						continue
					}
					if !yield(ev.Data, nil) {
						return
					}
				case replicate.SSETypeError:
					yield("", fmt.Errorf("replicate: prediction %s failed: %s", id, errorDetail(ev.Data)))
					return
				case replicate.SSETypeDone:
					if reason := doneReason(ev.Data); reason != "" {
						yield("", fmt.Errorf("replicate: prediction %s ended: %s", id, reason))
					}
					return
				}
			}
		}
		yield("", fmt.Errorf("replicate: prediction %s: stream ended before done event", id))
	}
}

// parseModel splits "owner/name[:version]". Versioned identifiers go to the
// generic predictions endpoint; bare ones to the model's own endpoint.
func parseModel(model string) (owner, name, version string, err error) {
	id, version, versioned := strings.Cut(model, ":")
	owner, name, ok := strings.Cut(id, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", "", fmt.Errorf("replicate: model %q must be owner/name[:version]", model)
	}
	if versioned && version == "" {
		return "", "", "", fmt.Errorf("replicate: model %q has an empty version", model)
	}
	return owner, name, version, nil
}

func errorDetail(data string) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal([]byte(data), &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return data
}

// doneReason returns a non-empty reason when the done event reports an
// abnormal end (for example a cancelled prediction).
func doneReason(data string) string {
	var payload struct {
		Reason string `json:"reason"`
	}
	if json.Unmarshal([]byte(data), &payload) != nil {
		return ""
	}
	return payload.Reason
}
