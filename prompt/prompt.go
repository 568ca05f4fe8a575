// Package prompt renders a conversation into the role-delimited text blob
// sent to completion-style inference endpoints.
package prompt

import (
	"strings"

	"github.com/sweetpotato0/streamchat/message"
)

// PassthroughTemplate tells the provider to use the prompt verbatim instead
// of wrapping it in the model's own chat template.
const PassthroughTemplate = "{prompt}"

// Markup holds the delimiters placed around each message.
type Markup struct {
	Start string
	End   string
}

// ChatML is the <|im_start|>/<|im_end|> markup.
var ChatML = Markup{Start: "<|im_start|>", End: "<|im_end|>"}

// Format renders msgs with ChatML markup.
func Format(msgs []*message.Message) string {
	return ChatML.Format(msgs)
}

// Format renders every message as "{start}{role}\n{content}{end}", joins them
// with newlines and opens an assistant turn so the model continues from there.
// The result always ends with "{start}assistant\n".
func (m Markup) Format(msgs []*message.Message) string {
	b := NewBuilder()
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		b.Add(m.Start + string(msg.Role) + "\n" + msg.Content + m.End)
	}
	b.Add(m.Start + string(message.RoleAssistant))
	b.Add("")
	return b.Build()
}

// Builder accumulates prompt lines.
type Builder struct {
	parts []string
}

// NewBuilder creates a new prompt builder
func NewBuilder() *Builder {
	return &Builder{
		parts: make([]string, 0),
	}
}

// Add appends a line.
func (b *Builder) Add(part string) *Builder {
	b.parts = append(b.parts, part)
	return b
}

// Len returns the number of lines added so far.
func (b *Builder) Len() int {
	return len(b.parts)
}

// Build joins the lines with newlines.
func (b *Builder) Build() string {
	return strings.Join(b.parts, "\n")
}

// Reset clears all parts
func (b *Builder) Reset() *Builder {
	b.parts = b.parts[:0]
	return b
}
