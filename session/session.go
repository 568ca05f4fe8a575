// Package session holds per-browser chat state in process memory. Nothing
// here survives a restart.
package session

import (
	"sync"
	"time"

	"github.com/sweetpotato0/streamchat/settings"
)

// Session is the state of one chat client. Handlers receive it explicitly;
// there is no ambient per-request state.
type Session struct {
	id        string
	createdAt time.Time

	conv *Conversation
	turn sync.Mutex

	mu         sync.RWMutex
	credential string
	params     settings.Params
	lastSeen   time.Time
}

// New creates a session with a fresh conversation.
func New(id, seed string, params settings.Params) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		createdAt: now,
		conv:      NewConversation(seed),
		params:    params,
		lastSeen:  now,
	}
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Conversation returns the session's message history.
func (s *Session) Conversation() *Conversation {
	return s.conv
}

// Credential returns the bearer token entered for this session, if any.
func (s *Session) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// SetCredential stores a bearer token for this session.
func (s *Session) SetCredential(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = token
}

// Params returns the current generation settings.
func (s *Session) Params() settings.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// SetParams replaces the generation settings. Callers clamp or validate first.
func (s *Session) SetParams(p settings.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
}

// LastSeen returns the time of the last recorded activity.
func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// BeginTurn claims the session for one generation. It returns false if a
// turn is already running; otherwise the caller must call EndTurn.
func (s *Session) BeginTurn() bool {
	return s.turn.TryLock()
}

// EndTurn releases the claim taken by BeginTurn.
func (s *Session) EndTurn() {
	s.turn.Unlock()
}
