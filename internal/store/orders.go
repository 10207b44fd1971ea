package store

import (
	"database/sql"
	"fmt"

	"github.com/attendify/pos-event-sync/internal/codec"
	"github.com/attendify/pos-event-sync/internal/models"
)

// OrderRecord is a stored order. Payload is the exported JSON form; the
// other columns are copies kept for querying.
type OrderRecord struct {
	UID       string
	SessionID string
	Name      string
	Event     models.EventRef
	State     models.OrderState
	Payload   []byte
	CreatedAt int64
	PaidAt    *int64
}

// OrderStore handles the orders table.
type OrderStore struct {
	db *DB
}

func NewOrderStore(db *DB) *OrderStore {
	return &OrderStore{db: db}
}

// Save inserts or replaces an order with its exported payload.
func (s *OrderStore) Save(o *models.Order, payload []byte) error {
	var paidAt sql.NullInt64
	if o.PaidAt != nil {
		paidAt = sql.NullInt64{Int64: o.PaidAt.Unix(), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO orders (uid, session_id, name, event_id, state, payload, created_at, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			name = excluded.name,
			event_id = excluded.event_id,
			state = excluded.state,
			payload = excluded.payload,
			paid_at = excluded.paid_at
	`, o.UID, o.SessionID, o.Name, codec.NullInt64(o), string(o.State), string(payload), o.CreatedAt.Unix(), paidAt)
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// Get fetches an order by uid. A missing order is (nil, nil).
func (s *OrderStore) Get(uid string) (*OrderRecord, error) {
	row := s.db.QueryRow(`
		SELECT uid, session_id, name, event_id, state, payload, created_at, paid_at
		FROM orders WHERE uid = ?
	`, uid)
	rec, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return rec, nil
}

// ListBySession returns every order of a session, oldest first.
func (s *OrderStore) ListBySession(sessionID string) ([]*OrderRecord, error) {
	return s.list(`
		SELECT uid, session_id, name, event_id, state, payload, created_at, paid_at
		FROM orders
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, sessionID)
}

func (s *OrderStore) list(query string, args ...any) ([]*OrderRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(sc scanner) (*OrderRecord, error) {
	var rec OrderRecord
	var eventID, paidAt sql.NullInt64
	var state, payload string
	if err := sc.Scan(&rec.UID, &rec.SessionID, &rec.Name, &eventID, &state, &payload, &rec.CreatedAt, &paidAt); err != nil {
		return nil, err
	}
	rec.Event = codec.RefFromNull(eventID)
	rec.State = models.OrderState(state)
	rec.Payload = []byte(payload)
	if paidAt.Valid {
		rec.PaidAt = &paidAt.Int64
	}
	return &rec, nil
}
