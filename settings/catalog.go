// Package settings holds the model catalog and the sampling parameters a
// chat session sends with every generation request.
package settings

import (
	"fmt"
	"strings"

	apperrors "github.com/sweetpotato0/streamchat/errors"
)

// Model maps a friendly name shown in the UI to the identifier dispatched to
// the inference provider.
type Model struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
}

// Identifier returns the dispatch identifier, falling back to the name.
func (m Model) Identifier() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Name
}

// DefaultModels is the fixed list offered when no catalog is configured.
var DefaultModels = []Model{
	{Name: "meta/meta-llama-3-70b-instruct"},
	{Name: "mistralai/mistral-7b-instruct-v0.2"},
	{
		Name: "google-deepmind/gemma-2b-it",
		ID:   "google-deepmind/gemma-2b-it:dff94eaf770e1fc211e425a50b51baa8e4cac6c39ef074681f9e39d778773626",
	},
}

// providerModels lists the built-in models per provider name.
var providerModels = map[string][]Model{
	"replicate": DefaultModels,

	"openai": {
		{Name: "gpt-4o-mini"},
		{Name: "gpt-4o"},
	},
	"claude": {
		{Name: "claude-3-5-haiku-latest"},
		{Name: "claude-3-5-sonnet-latest"},
	},
	"gemini": {
		{Name: "gemini-1.5-flash"},
		{Name: "gemini-1.5-pro"},
	},
}

// DefaultModelsFor returns a copy of the built-in models for provider, or nil
// for an unknown provider.
func DefaultModelsFor(provider string) []Model {
	models, ok := providerModels[provider]
	if !ok {
		return nil
	}
	return append([]Model(nil), models...)
}

// Catalog is an ordered, immutable set of selectable models.
type Catalog struct {
	models []Model
	byName map[string]Model
}

// NewCatalog builds a catalog. Names must be unique and non-empty.
func NewCatalog(models ...Model) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: catalog needs at least one model", apperrors.ErrInvalidInput)
	}
	c := &Catalog{
		models: make([]Model, 0, len(models)),
		byName: make(map[string]Model, len(models)),
	}
	for _, m := range models {
		m.Name = strings.TrimSpace(m.Name)
		m.ID = strings.TrimSpace(m.ID)
		if m.Name == "" {
			return nil, fmt.Errorf("%w: model name cannot be empty", apperrors.ErrInvalidInput)
		}
		if _, dup := c.byName[m.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate model %q", apperrors.ErrInvalidInput, m.Name)
		}
		c.models = append(c.models, m)
		c.byName[m.Name] = m
	}
	return c, nil
}

// DefaultCatalog returns the catalog built from DefaultModels.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultModels...)
	if err != nil {
		panic(err)
	}
	return c
}

// Models returns the catalog entries in display order.
func (c *Catalog) Models() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// Default returns the first entry.
func (c *Catalog) Default() Model {
	return c.models[0]
}

// Has reports whether name is a catalog entry.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Resolve maps a friendly name to its dispatch identifier.
func (c *Catalog) Resolve(name string) (string, error) {
	m, ok := c.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownModel, name)
	}
	return m.Identifier(), nil
}
