package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sweetpotato0/streamchat/pkg/logging"
	"github.com/sweetpotato0/streamchat/settings"
)

// Manager keeps sessions in memory and evicts idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	seed     string
	defaults settings.Params
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option is a function that configures a Manager.
type Option func(*Manager)

// WithTTL sets how long a session may stay idle before Sweep removes it.
// Zero disables eviction.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithLogger overrides the logger used by the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source; mainly useful for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager whose sessions start with the seed greeting
// and the given default parameters.
func NewManager(seed string, defaults settings.Params, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		seed:     seed,
		defaults: defaults,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.WithComponent("session_manager")
	}
	return m
}

// Get returns the session with id, marking it as seen.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.Touch(m.now())
	}
	return s, ok
}

// GetOrCreate returns the session with id, creating it when it does not
// exist. An empty id always creates a session with a fresh random id.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, false
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		if s, ok := m.sessions[id]; ok {
			s.Touch(m.now())
			return s, false
		}
	} else {
		id = uuid.NewString()
	}

	s := New(id, m.seed, m.defaults)
	s.Touch(m.now())
	m.sessions[id] = s
	m.logger.Debug("session created", "id", id)
	return s, true
}

// Delete removes a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("idle sessions evicted", "count", removed, "remaining", len(m.sessions))
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}
