package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/sweetpotato0/streamchat/errors"
	"github.com/sweetpotato0/streamchat/message"
	"github.com/sweetpotato0/streamchat/session"
	"github.com/sweetpotato0/streamchat/settings"
)

const (
	credentialMissing  = "Please enter a valid API token."
	credentialReady    = "Proceed to entering your prompt message!"
	credentialProvided = "API token already provided!"
)

type credentialView struct {
	Configured bool   `json:"configured"`
	Valid      bool   `json:"valid"`
	Env        string `json:"env,omitempty"`
	Message    string `json:"message"`
}

type sessionView struct {
	ID         string             `json:"id"`
	Provider   string             `json:"provider"`
	Messages   []*message.Message `json:"messages"`
	Params     settings.Params    `json:"params"`
	Warnings   []string           `json:"warnings"`
	Credential credentialView     `json:"credential"`
	Ceiling    int                `json:"token_ceiling"`
}

func (s *Server) credentialStatus(sess *session.Session) credentialView {
	view := credentialView{
		Configured: s.opts.Token != "",
		Env:        s.opts.TokenEnv,
	}
	err := s.opts.Backend.CredentialRule().Check(sess.Credential())
	view.Valid = err == nil
	switch {
	case view.Configured && view.Valid:
		view.Message = credentialProvided
	case view.Valid:
		view.Message = credentialReady
	default:
		view.Message = credentialMissing
	}
	return view
}

func (s *Server) sessionView(sess *session.Session) sessionView {
	params := sess.Params()
	warnings := params.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	return sessionView{
		ID:         sess.ID(),
		Provider:   s.opts.Backend.Name(),
		Messages:   sess.Conversation().Messages(),
		Params:     params,
		Warnings:   warnings,
		Credential: s.credentialStatus(sess),
		Ceiling:    s.opts.Generator.Ceiling(),
	}
}

func (s *Server) index(c *gin.Context) {
	sess := currentSession(c)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":      s.opts.Title,
		"Provider":   s.opts.Backend.Name(),
		"Models":     s.opts.Catalog.Models(),
		"Params":     sess.Params(),
		"Credential": s.credentialStatus(sess),
		"Limits": gin.H{
			"MinTemperature": settings.MinTemperature,
			"MaxTemperature": settings.MaxTemperature,
			"MinTopP":        settings.MinTopP,
			"MaxTopP":        settings.MaxTopP,
			"Step":           settings.Step,
		},
	})
}

func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessionView(currentSession(c)))
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":  s.opts.Catalog.Models(),
		"default": s.opts.Catalog.Default().Name,
	})
}

type credentialRequest struct {
	Token string `json:"token"`
}

func (s *Server) putCredential(c *gin.Context) {
	sess := currentSession(c)
	if s.opts.Token != "" {
		c.JSON(http.StatusOK, s.credentialStatus(sess))
		return
	}

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.opts.Backend.CredentialRule().Check(req.Token); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   err.Error(),
			"code":    errorCode(err),
			"warning": credentialMissing,
		})
		return
	}
	sess.SetCredential(req.Token)
	c.JSON(http.StatusOK, s.credentialStatus(sess))
}

type paramsRequest struct {
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
}

func (s *Server) putParams(c *gin.Context) {
	sess := currentSession(c)
	var req paramsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := sess.Params()
	if req.Model != nil {
		if !s.opts.Catalog.Has(*req.Model) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "unknown model " + *req.Model,
				"code":  errorCode(apperrors.ErrUnknownModel),
			})
			return
		}
		params.Model = *req.Model
	}
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		params.TopP = *req.TopP
	}
	params = params.Clamp()
	sess.SetParams(params)

	warnings := params.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"params": params, "warnings": warnings})
}

type messageRequest struct {
	Content string `json:"content"`
}

func (s *Server) postMessage(c *gin.Context) {
	sess := currentSession(c)
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.requireCredential(c, sess) {
		return
	}
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message cannot be empty", "code": errorCode(apperrors.ErrInvalidInput)})
		return
	}

	s.stream(c, func(onFragment func(string) error) (string, error) {
		return s.opts.Generator.Reply(c.Request.Context(), sess, req.Content, onFragment)
	})
}

func (s *Server) postRegenerate(c *gin.Context) {
	sess := currentSession(c)
	if !s.requireCredential(c, sess) {
		return
	}
	if !sess.Conversation().AwaitingReply() {
		c.JSON(http.StatusConflict, gin.H{"error": "the last message already has a reply", "code": errorCode(apperrors.ErrInvalidInput)})
		return
	}

	s.stream(c, func(onFragment func(string) error) (string, error) {
		return s.opts.Generator.Regenerate(c.Request.Context(), sess, onFragment)
	})
}

func (s *Server) postReset(c *gin.Context) {
	sess := currentSession(c)
	if !sess.BeginTurn() {
		c.JSON(http.StatusConflict, gin.H{"error": apperrors.ErrTurnInProgress.Error(), "code": errorCode(apperrors.ErrTurnInProgress)})
		return
	}
	sess.Conversation().Reset()
	sess.EndTurn()
	c.JSON(http.StatusOK, s.sessionView(sess))
}

// requireCredential blocks submission when the session has no well-formed
// credential. It writes a 403 and returns false in that case.
func (s *Server) requireCredential(c *gin.Context, sess *session.Session) bool {
	err := s.opts.Backend.CredentialRule().Check(sess.Credential())
	if err == nil {
		return true
	}
	if !errors.Is(err, apperrors.ErrInvalidCredential) {
		s.logger.Error("credential check failed", "error", err)
	}
	c.JSON(http.StatusForbidden, gin.H{
		"error":   err.Error(),
		"code":    errorCode(err),
		"warning": credentialMissing,
	})
	return false
}
