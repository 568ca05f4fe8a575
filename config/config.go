// Package config loads streamchat configuration from defaults, an optional
// YAML file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweetpotato0/streamchat/settings"
)

// Provider names.
const (
	ProviderReplicate = "replicate"
	ProviderOpenAI    = "openai"
	ProviderClaude    = "claude"
	ProviderGemini    = "gemini"
)

// Tokenizer backends.
const (
	TokenizerHuggingFace = "huggingface"
	TokenizerTiktoken    = "tiktoken"
	TokenizerWords       = "words"
)

const (
	// DefaultTokenCeiling is the prompt size at which generation is refused.
	DefaultTokenCeiling = 3072
	// DefaultSeedMessage is the assistant greeting a conversation starts with.
	DefaultSeedMessage = "Stel mij een vraag."
	// DefaultTokenizerSource is the llama tokenizer used to size prompts.
	DefaultTokenizerSource = "https://huggingface.co/huggyllama/llama-7b/resolve/main/tokenizer.json"
)

// tokenEnv names the environment variable holding each provider's credential.
var tokenEnv = map[string]string{
	ProviderReplicate: "REPLICATE_API_TOKEN",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderClaude:    "ANTHROPIC_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

// Config is the complete runtime configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Provider  ProviderConfig   `yaml:"provider"`
	Models    []settings.Model `yaml:"models"`
	Chat      ChatConfig       `yaml:"chat"`
	Tokenizer TokenizerConfig  `yaml:"tokenizer"`
	Log       LogConfig        `yaml:"log"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	CookieName string        `yaml:"cookie_name"`
	Mode       string        `yaml:"mode"` // gin mode: debug, release or test
}

// ProviderConfig selects and configures the inference provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	Token   string        `yaml:"token"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ChatConfig holds conversation defaults.
type ChatConfig struct {
	SeedMessage  string  `yaml:"seed_message"`
	TokenCeiling int     `yaml:"token_ceiling"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
}

// TokenizerConfig selects the tokenizer used for the token budget.
type TokenizerConfig struct {
	Backend string `yaml:"backend"`
	// Source is a path or URL of a tokenizer.json for the huggingface backend,
	// or a model/encoding name for tiktoken.
	Source string `yaml:"source"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8501",
			SessionTTL: 2 * time.Hour,
			CookieName: "streamchat_session",
			Mode:       "release",
		},
		Provider: ProviderConfig{
			Name:    ProviderReplicate,
			Timeout: 5 * time.Minute,
		},
		Models: settings.DefaultModelsFor(ProviderReplicate),
		Chat: ChatConfig{
			SeedMessage:  DefaultSeedMessage,
			TokenCeiling: DefaultTokenCeiling,
			Temperature:  settings.DefaultTemperature,
			TopP:         settings.DefaultTopP,
		},
		Tokenizer: TokenizerConfig{
			Backend: TokenizerHuggingFace,
			Source:  DefaultTokenizerSource,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Load builds a Config. path may be empty; a missing .env file is ignored.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.followProvider(ProviderReplicate)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("STREAMCHAT_ADDR", &c.Server.Addr)
	prev := c.Provider.Name
	str("STREAMCHAT_PROVIDER", &c.Provider.Name)
	c.followProvider(prev)
	str("STREAMCHAT_PROVIDER_BASE_URL", &c.Provider.BaseURL)
	str("STREAMCHAT_SEED_MESSAGE", &c.Chat.SeedMessage)
	str("STREAMCHAT_TOKENIZER", &c.Tokenizer.Backend)
	str("STREAMCHAT_TOKENIZER_SOURCE", &c.Tokenizer.Source)
	str("STREAMCHAT_LOG_FORMAT", &c.Log.Format)
	str("STREAMCHAT_LOG_LEVEL", &c.Log.Level)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.Endpoint)

	if key, ok := tokenEnv[c.Provider.Name]; ok {
		str(key, &c.Provider.Token)
	}
	if v, ok := lookup("STREAMCHAT_TOKEN_CEILING"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chat.TokenCeiling = n
		}
	}
}

// UseProvider switches to the named provider and takes its credential from
// the environment. The token of the previous provider is dropped, and a
// built-in model list follows the provider.
func (c *Config) UseProvider(name string, lookup func(string) (string, bool)) {
	if name == c.Provider.Name {
		return
	}
	prev := c.Provider.Name
	c.Provider.Name = name
	c.followProvider(prev)
	c.Provider.Token = ""
	if key, ok := tokenEnv[name]; ok {
		if v, ok := lookup(key); ok {
			c.Provider.Token = v
		}
	}
}

// followProvider swaps in the current provider's built-in models when the
// list is still the built-in list of prev. Configured lists are kept.
func (c *Config) followProvider(prev string) {
	if prev == c.Provider.Name {
		return
	}
	if slices.Equal(c.Models, settings.DefaultModelsFor(prev)) {
		c.Models = settings.DefaultModelsFor(c.Provider.Name)
	}
}

// TokenEnv returns the environment variable consulted for the provider credential.
func (c *Config) TokenEnv() string {
	return tokenEnv[c.Provider.Name]
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("server.addr", c.Server.Addr)
	v.ValidateOneOf("server.mode", c.Server.Mode, "debug", "release", "test")
	v.ValidateOneOf("provider.name", c.Provider.Name, ProviderReplicate, ProviderOpenAI, ProviderClaude, ProviderGemini)
	v.RequireNonEmpty("chat.seed_message", c.Chat.SeedMessage)
	v.RequirePositive("chat.token_ceiling", c.Chat.TokenCeiling)
	v.ValidateFloatRange("chat.temperature", c.Chat.Temperature, settings.MinTemperature, settings.MaxTemperature)
	v.ValidateFloatRange("chat.top_p", c.Chat.TopP, settings.MinTopP, settings.MaxTopP)
	v.ValidateOneOf("tokenizer.backend", c.Tokenizer.Backend, TokenizerHuggingFace, TokenizerTiktoken, TokenizerWords)
	if c.Tokenizer.Backend != TokenizerWords {
		v.RequireNonEmpty("tokenizer.source", c.Tokenizer.Source)
	}
	v.ValidateOneOf("log.format", c.Log.Format, "json", "text")
	v.ValidateFloatRange("telemetry.sample_ratio", c.Telemetry.SampleRatio, 0, 1)
	if len(c.Models) == 0 {
		v.RequireNonEmpty("models", "")
	}
	for i, m := range c.Models {
		v.RequireNonEmpty(fmt.Sprintf("models[%d].name", i), m.Name)
	}
	return v.Error()
}
