// Package provider defines the streaming inference call the generator
// relays to the browser. Concrete backends live in sub-packages.
package provider

import (
	"context"
	"iter"

	"github.com/sweetpotato0/streamchat/config"
)

// Request is one completion call. It is derived per turn and never stored.
type Request struct {
	// Model is the resolved dispatch identifier, e.g. "owner/name:version".
	Model          string
	Prompt         string
	PromptTemplate string
	Temperature    float64
	TopP           float64
	// Credential is the bearer token for this call.
	Credential string
}

// Streamer opens a streaming completion. The returned sequence yields text
// fragments as they arrive and ends when the remote stream closes. It is
// single use: ranging over it again issues a new remote call.
type Streamer interface {
	Stream(ctx context.Context, req *Request) iter.Seq2[string, error]
}

// StreamFunc adapts a function to the Streamer interface.
type StreamFunc func(ctx context.Context, req *Request) iter.Seq2[string, error]

// Stream calls f.
func (f StreamFunc) Stream(ctx context.Context, req *Request) iter.Seq2[string, error] {
	return f(ctx, req)
}

// Backend is a Streamer together with the shape of the credential it expects.
type Backend interface {
	Streamer
	Name() string
	CredentialRule() config.CredentialRule
}

// Fail returns a sequence that yields err once.
func Fail(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}
