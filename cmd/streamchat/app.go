package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sweetpotato0/streamchat/config"
	"github.com/sweetpotato0/streamchat/generator"
	"github.com/sweetpotato0/streamchat/pkg/logging"
	"github.com/sweetpotato0/streamchat/pkg/telemetry"
	"github.com/sweetpotato0/streamchat/provider"
	"github.com/sweetpotato0/streamchat/provider/claude"
	"github.com/sweetpotato0/streamchat/provider/gemini"
	"github.com/sweetpotato0/streamchat/provider/openai"
	"github.com/sweetpotato0/streamchat/provider/replicate"
	"github.com/sweetpotato0/streamchat/server"
	"github.com/sweetpotato0/streamchat/session"
	"github.com/sweetpotato0/streamchat/settings"
	"github.com/sweetpotato0/streamchat/tokenizer"
)

// loadConfig reads the configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if providerName != "" {
		cfg.UseProvider(providerName, os.LookupEnv)
	}
	if token != "" {
		cfg.Provider.Token = token
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.SetLogger(logging.New(cfg.Log.Format, cfg.Log.Level))
	return cfg, nil
}

// components are the pieces shared by every command.
type components struct {
	backend   provider.Backend
	catalog   *settings.Catalog
	tokens    *tokenizer.Cached
	generator *generator.Generator
}

func newBackend(cfg config.ProviderConfig) (provider.Backend, error) {
	switch cfg.Name {
	case config.ProviderReplicate:
		rc := replicate.DefaultConfig()
		if cfg.BaseURL != "" {
			rc.BaseURL = cfg.BaseURL
		}
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		return replicate.New(rc), nil
	case config.ProviderOpenAI:
		oc := openai.DefaultConfig()
		oc.BaseURL = cfg.BaseURL
		return openai.New(oc), nil
	case config.ProviderClaude:
		cc := claude.DefaultConfig()
		cc.BaseURL = cfg.BaseURL
		return claude.New(cc), nil
	case config.ProviderGemini:
		gc := gemini.DefaultConfig()
		gc.Endpoint = cfg.BaseURL
		return gemini.New(gc), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

func newComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	backend, err := newBackend(cfg.Provider)
	if err != nil {
		return nil, err
	}
	catalog, err := settings.NewCatalog(cfg.Models...)
	if err != nil {
		return nil, err
	}
	load, err := tokenizer.NewLoader(ctx, cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	tokens := tokenizer.NewCached(load)
	gen := generator.New(tokens, backend, catalog, generator.WithTokenCeiling(cfg.Chat.TokenCeiling))
	return &components{
		backend:   backend,
		catalog:   catalog,
		tokens:    tokens,
		generator: gen,
	}, nil
}

func defaultParams(cfg *config.Config, catalog *settings.Catalog) settings.Params {
	return settings.Params{
		Model:       catalog.Default().Name,
		Temperature: cfg.Chat.Temperature,
		TopP:        cfg.Chat.TopP,
	}.Clamp()
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := logging.WithComponent("main")

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "streamchat",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	c, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	if preload {
		start := time.Now()
		if _, err := c.tokens.Get(); err != nil {
			return err
		}
		logger.Info("tokenizer loaded", "backend", cfg.Tokenizer.Backend, "took", time.Since(start))
	}
	if cfg.Provider.Token != "" {
		if err := c.backend.CredentialRule().Check(cfg.Provider.Token); err != nil {
			logger.Warn("configured credential looks malformed", "env", cfg.TokenEnv(), "error", err)
		}
	}

	gin.SetMode(cfg.Server.Mode)
	sessions := session.NewManager(cfg.Chat.SeedMessage, defaultParams(cfg, c.catalog), session.WithTTL(cfg.Server.SessionTTL))
	go sessions.Run(ctx, time.Minute)

	srv := server.New(server.Options{
		Backend:    c.backend,
		Generator:  c.generator,
		Sessions:   sessions,
		Catalog:    c.catalog,
		Token:      cfg.Provider.Token,
		TokenEnv:   cfg.TokenEnv(),
		CookieName: cfg.Server.CookieName,
		Title:      "streamchat",
	})
	logger.Info("starting",
		slog.String("provider", c.backend.Name()),
		slog.String("tokenizer", cfg.Tokenizer.Backend),
		slog.Int("token_ceiling", c.generator.Ceiling()),
	)
	return srv.Run(ctx, cfg.Server.Addr)
}
