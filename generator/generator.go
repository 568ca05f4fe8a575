// Package generator turns a conversation into a streamed assistant reply.
package generator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/sweetpotato0/streamchat/errors"
	"github.com/sweetpotato0/streamchat/message"
	"github.com/sweetpotato0/streamchat/pkg/logging"
	"github.com/sweetpotato0/streamchat/pkg/telemetry"
	"github.com/sweetpotato0/streamchat/prompt"
	"github.com/sweetpotato0/streamchat/provider"
	"github.com/sweetpotato0/streamchat/session"
	"github.com/sweetpotato0/streamchat/settings"
)

// DefaultTokenCeiling is the prompt size at which generation is refused.
const DefaultTokenCeiling = 3072

// TokenCounter sizes a prompt.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// ModelResolver maps a friendly model name to its dispatch identifier.
type ModelResolver interface {
	Resolve(name string) (string, error)
}

// PromptTooLongError reports a prompt at or above the token ceiling.
type PromptTooLongError struct {
	Tokens  int
	Ceiling int
}

func (e *PromptTooLongError) Error() string {
	return fmt.Sprintf("conversation too long: %d tokens, keep it under %d", e.Tokens, e.Ceiling)
}

// Is makes errors.Is(err, errors.ErrPromptTooLong) match.
func (e *PromptTooLongError) Is(target error) bool {
	return target == apperrors.ErrPromptTooLong
}

// Generator builds prompts, enforces the token budget and relays the
// provider stream.
type Generator struct {
	counter  TokenCounter
	streamer provider.Streamer
	models   ModelResolver
	markup   prompt.Markup
	ceiling  int
	logger   *slog.Logger
}

// Option is a function that configures a Generator
type Option func(*Generator)

// WithTokenCeiling overrides the token ceiling.
func WithTokenCeiling(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.ceiling = n
		}
	}
}

// WithMarkup overrides the role delimiters.
func WithMarkup(m prompt.Markup) Option {
	return func(g *Generator) {
		g.markup = m
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a generator.
func New(counter TokenCounter, streamer provider.Streamer, models ModelResolver, opts ...Option) *Generator {
	g := &Generator{
		counter:  counter,
		streamer: streamer,
		models:   models,
		markup:   prompt.ChatML,
		ceiling:  DefaultTokenCeiling,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.WithComponent("generator")
	}
	return g
}

// Ceiling returns the token ceiling.
func (g *Generator) Ceiling() int {
	return g.ceiling
}

// Prompt formats msgs and counts its tokens. It returns a
// *PromptTooLongError when the count reaches the ceiling.
func (g *Generator) Prompt(msgs []*message.Message) (string, int, error) {
	text := g.markup.Format(msgs)
	n, err := g.counter.CountTokens(text)
	if err != nil {
		return "", 0, err
	}
	if n >= g.ceiling {
		return text, n, &PromptTooLongError{Tokens: n, Ceiling: g.ceiling}
	}
	return text, n, nil
}

// Generate prepares a reply to the current conversation. All checks run
// before Generate returns: a too-long prompt, an unknown model or a
// tokenizer failure is reported here and the provider is never contacted.
//
// The returned sequence performs the remote call when ranged over and yields
// each fragment as it arrives. It is single use. When the provider stream
// ends normally the concatenated text is appended to conv as the assistant
// message. If the stream fails or the consumer stops early nothing is
// appended.
func (g *Generator) Generate(ctx context.Context, conv *session.Conversation, params settings.Params, credential string) (iter.Seq2[string, error], error) {
	if conv == nil {
		return nil, fmt.Errorf("%w: conversation cannot be nil", apperrors.ErrInvalidInput)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	model, err := g.models.Resolve(params.Model)
	if err != nil {
		return nil, err
	}

	text, tokens, err := g.Prompt(conv.Messages())
	if err != nil {
		if errors.Is(err, apperrors.ErrPromptTooLong) {
			g.logger.Warn("prompt exceeds token ceiling", "tokens", tokens, "ceiling", g.ceiling)
		}
		return nil, err
	}

	req := &provider.Request{
		Model:          model,
		Prompt:         text,
		PromptTemplate: prompt.PassthroughTemplate,
		Temperature:    params.Temperature,
		TopP:           params.TopP,
		Credential:     credential,
	}

	used := false
	return func(yield func(string, error) bool) {
		if used {
			yield("", fmt.Errorf("%w: reply stream already consumed", apperrors.ErrInvalidInput))
			return
		}
		used = true

		ctx, span := telemetry.Start(ctx, "generator.Generate",
			attribute.String("model", model),
			attribute.Int("prompt.tokens", tokens),
		)
		var (
			sb        strings.Builder
			fragments int
			streamErr error
			stopped   bool
		)
		defer func() {
			span.SetAttributes(attribute.Int("fragments", fragments), attribute.Bool("stopped", stopped))
			telemetry.End(span, streamErr)
		}()

		g.logger.Debug("generation started", "model", model, "prompt_tokens", tokens)
		for frag, err := range g.streamer.Stream(ctx, req) {
			if err != nil {
				streamErr = err
				break
			}
			sb.WriteString(frag)
			fragments++
			if !yield(frag, nil) {
				stopped = true
				g.logger.Info("generation abandoned by consumer", "model", model, "fragments", fragments)
				return
			}
		}

		if streamErr != nil {
			g.logger.Error("generation failed", "model", model, "fragments", fragments, "error", streamErr)
			yield("", streamErr)
			return
		}

		conv.Append(message.Assistant(sb.String()))
		g.logger.Info("generation finished", "model", model, "prompt_tokens", tokens, "fragments", fragments, "chars", sb.Len())
	}, nil
}

// Reply appends text as a user message and streams the assistant reply,
// calling onFragment for each fragment. It returns the full reply. On
// success the conversation has grown by exactly two messages.
//
// When the reply cannot be generated the user message stays in the
// conversation, so Regenerate can retry the turn. Only one turn may run per
// session; a concurrent call fails with ErrTurnInProgress.
func (g *Generator) Reply(ctx context.Context, sess *session.Session, text string, onFragment func(string) error) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: message cannot be empty", apperrors.ErrInvalidInput)
	}
	if !sess.BeginTurn() {
		return "", apperrors.ErrTurnInProgress
	}
	defer sess.EndTurn()

	sess.Conversation().Append(message.User(text))
	return g.relay(ctx, sess, onFragment)
}

// Regenerate streams a reply to a conversation whose newest message is from
// the user, typically after a failed turn.
func (g *Generator) Regenerate(ctx context.Context, sess *session.Session, onFragment func(string) error) (string, error) {
	if !sess.BeginTurn() {
		return "", apperrors.ErrTurnInProgress
	}
	defer sess.EndTurn()

	if !sess.Conversation().AwaitingReply() {
		return "", fmt.Errorf("%w: the last message already has a reply", apperrors.ErrInvalidInput)
	}
	return g.relay(ctx, sess, onFragment)
}

func (g *Generator) relay(ctx context.Context, sess *session.Session, onFragment func(string) error) (string, error) {
	seq, err := g.Generate(ctx, sess.Conversation(), sess.Params(), sess.Credential())
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for frag, err := range seq {
		if err != nil {
			return "", err
		}
		sb.WriteString(frag)
		if onFragment != nil {
			if err := onFragment(frag); err != nil {
				return "", err
			}
		}
	}
	return sb.String(), nil
}
