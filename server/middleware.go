package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/sweetpotato0/streamchat/pkg/telemetry"
	"github.com/sweetpotato0/streamchat/session"
)

// RequestLogger logs one line per request through slog.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", attrs...)
		default:
			logger.Debug("request", attrs...)
		}
	}
}

// Tracing opens a span per request, continuing any trace the caller sent.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := telemetry.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := telemetry.Start(ctx, c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		var err error
		if status >= http.StatusInternalServerError {
			err = errors.New(http.StatusText(status))
		} else if len(c.Errors) > 0 {
			err = c.Errors.Last().Err
		}
		telemetry.End(span, err)
	}
}

// Recovery turns panics into 500 responses and logs them.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

// Sessions attaches the caller's session, creating one and setting the
// cookie when the request carries none or an expired one. New sessions
// receive the configured credential, if any.
func Sessions(m *session.Manager, cookie, token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess *session.Session
		if id, err := c.Cookie(cookie); err == nil && id != "" {
			sess, _ = m.Get(id)
		}
		if sess == nil {
			sess, _ = m.GetOrCreate("")
			if token != "" {
				sess.SetCredential(token)
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookie, sess.ID(), 0, "/", "", false, true)
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}
