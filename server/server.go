// Package server exposes the chat page and its JSON/SSE API over gin.
package server

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sweetpotato0/streamchat/generator"
	"github.com/sweetpotato0/streamchat/pkg/logging"
	"github.com/sweetpotato0/streamchat/provider"
	"github.com/sweetpotato0/streamchat/session"
	"github.com/sweetpotato0/streamchat/settings"
)

const sessionKey = "streamchat.session"

// Options wires the server to the chat components.
type Options struct {
	Backend   provider.Backend
	Generator *generator.Generator
	Sessions  *session.Manager
	Catalog   *settings.Catalog
	// Token is the configured provider credential. When set, sessions use it
	// and the page hides the credential input.
	Token string
	// TokenEnv names the variable the configured credential is read from.
	TokenEnv   string
	CookieName string
	Title      string
	Logger     *slog.Logger
}

// Server serves the chat UI.
type Server struct {
	opts   Options
	engine *gin.Engine
	logger *slog.Logger
}

// New builds the gin engine and registers all routes.
func New(opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "streamchat_session"
	}
	if opts.Title == "" {
		opts.Title = "streamchat"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("server")
	}

	s := &Server{opts: opts, logger: logger}

	r := gin.New()
	r.Use(RequestLogger(logger), Tracing(), Recovery(logger))
	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(templates, "templates/*.html")))
	s.engine = r
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.engine
	r.GET("/health", s.health)

	chat := r.Group("/", Sessions(s.opts.Sessions, s.opts.CookieName, s.opts.Token))
	chat.GET("/", s.index)

	api := chat.Group("/api")
	api.GET("/session", s.getSession)
	api.GET("/models", s.listModels)
	api.PUT("/credential", s.putCredential)
	api.PUT("/params", s.putParams)
	api.POST("/messages", s.postMessage)
	api.POST("/regenerate", s.postRegenerate)
	api.POST("/reset", s.postReset)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"time":     time.Now().Format(time.RFC3339),
		"provider": s.opts.Backend.Name(),
		"sessions": s.opts.Sessions.Count(),
	})
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}
