package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/attendify/pos-event-sync/internal/codec"
	"github.com/attendify/pos-event-sync/internal/models"
)

// SessionStore handles pos_sessions rows.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// EnsureSession creates a session if it doesn't exist, or returns the
// existing one with its persisted event selection.
func (s *SessionStore) EnsureSession(sessionID, configName string) (*models.PosSession, error) {
	existing, err := s.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	now := time.Now().Unix()
	_, err = s.db.Exec(`
		INSERT INTO pos_sessions (id, config_name, event_id, started_at)
		VALUES (?, ?, NULL, ?)
	`, sessionID, configName, now)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return &models.PosSession{
		ID:         sessionID,
		ConfigName: configName,
		StartedAt:  now,
	}, nil
}

// GetByID fetches a session by ID. A missing session is (nil, nil).
func (s *SessionStore) GetByID(id string) (*models.PosSession, error) {
	if id == "" {
		return nil, nil
	}

	var sess models.PosSession
	var eventID, endedAt sql.NullInt64
	err := s.db.QueryRow(`
		SELECT id, config_name, event_id, started_at, ended_at
		FROM pos_sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.ConfigName, &eventID, &sess.StartedAt, &endedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess.Event = codec.RefFromNull(eventID)
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Int64
	}
	return &sess, nil
}

// SetEvent persists the session's selection; none is stored as NULL.
func (s *SessionStore) SetEvent(id string, ref models.EventRef) error {
	_, err := s.db.Exec(`UPDATE pos_sessions SET event_id = ? WHERE id = ?`, codec.RefToNull(ref), id)
	if err != nil {
		return fmt.Errorf("set session event: %w", err)
	}
	return nil
}

// EndSession marks a session as ended.
func (s *SessionStore) EndSession(id string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`UPDATE pos_sessions SET ended_at = ? WHERE id = ?`, now, id)
	return err
}
