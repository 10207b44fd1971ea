package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Manager holds the register's active session. Beginning a new session
// ends the previous one.
type Manager struct {
	mu  sync.RWMutex
	cur *Session
	log zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log}
}

// Begin ends the active session, if any, and creates a new one.
func (m *Manager) Begin(ctx context.Context, opts Options) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur != nil {
		if err := m.cur.End(ctx); err != nil {
			m.log.Warn().Err(err).Str("session_id", m.cur.ID()).Msg("failed to end previous session")
		}
		m.cur = nil
	}

	opts.Logger = m.log
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	m.cur = s
	m.log.Info().Str("session_id", s.ID()).Str("config", s.ConfigName()).Msg("session started")
	return s, nil
}

// Current returns the active session or ErrNoSession.
func (m *Manager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return nil, ErrNoSession
	}
	return m.cur, nil
}

// End ends the active session.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return ErrNoSession
	}
	err := m.cur.End(ctx)
	m.cur = nil
	return err
}
