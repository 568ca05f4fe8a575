package server

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/sweetpotato0/streamchat/errors"
)

// Event names on the reply stream.
const (
	eventFragment = "fragment"
	eventDone     = "done"
	eventError    = "error"
)

type errorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Reset asks the page to offer clearing the history.
	Reset bool `json:"reset,omitempty"`
}

// stream runs a turn and relays it to the client as server-sent events.
func (s *Server) stream(c *gin.Context, turn func(onFragment func(string) error) (string, error)) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	reply, err := turn(func(frag string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.SSEvent(eventFragment, gin.H{"text": frag})
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		s.streamError(c, err)
		return
	}

	sess := currentSession(c)
	c.SSEvent(eventDone, gin.H{
		"content": reply,
		"message": sess.Conversation().Last(),
	})
	c.Writer.Flush()
}

func (s *Server) streamError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Info("client went away mid-reply")
		return
	}
	code := errorCode(err)
	switch code {
	case "provider_error", "tokenizer_unavailable":
		s.logger.Error("reply failed", "code", code, "error", err)
		_ = c.Error(err)
	default:
		s.logger.Warn("reply refused", "code", code, "error", err)
	}
	c.SSEvent(eventError, errorEvent{
		Code:    code,
		Message: err.Error(),
		Reset:   errors.Is(err, apperrors.ErrPromptTooLong),
	})
	c.Writer.Flush()
}

// errorCode maps an error to the stable code reported to the page.
func errorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrPromptTooLong):
		return "prompt_too_long"
	case errors.Is(err, apperrors.ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, apperrors.ErrUnknownModel):
		return "unknown_model"
	case errors.Is(err, apperrors.ErrTurnInProgress):
		return "turn_in_progress"
	case errors.Is(err, apperrors.ErrTokenizerLoad):
		return "tokenizer_unavailable"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_input"
	default:
		return "provider_error"
	}
}
