package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/attendify/pos-event-sync/internal/candidates"
	"github.com/attendify/pos-event-sync/internal/models"
)

// ErrEventNotFound is returned for ids missing from the events table.
var ErrEventNotFound = errors.New("event not found")

// EventObserver is told about every committed change to the events table.
type EventObserver interface {
	EventChanged(ctx context.Context, op models.EventOp, e *models.Event)
}

// EventStore is the local events table. It serves as the candidate source
// when no remote backend is configured.
type EventStore struct {
	db       *DB
	now      func() time.Time
	observer EventObserver
}

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db, now: time.Now}
}

// SetObserver registers o for change notifications. Call it before the
// store is shared.
func (s *EventStore) SetObserver(o EventObserver) { s.observer = o }

// FetchCandidates returns events ending at or after the filter time,
// earliest start first.
func (s *EventStore) FetchCandidates(ctx context.Context, f candidates.Filter) ([]models.Candidate, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = candidates.DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, external_uid, date_begin, date_end
		FROM events
		WHERE date_end >= ?
		ORDER BY date_begin ASC, id ASC
		LIMIT ?
	`, f.ValidAfter.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		var begin, end int64
		if err := rows.Scan(&c.ID, &c.Name, &c.ExternalUID, &begin, &end); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		c.ValidFrom = time.Unix(begin, 0).UTC()
		c.ValidUntil = time.Unix(end, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns the full row for id.
func (s *EventStore) Get(ctx context.Context, id int64) (*models.Event, error) {
	var e models.Event
	var begin, end int64
	var fee string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, external_uid, date_begin, date_end,
		       location, description, organizer_name, organizer_uid, entrance_fee
		FROM events WHERE id = ?
	`, id).Scan(&e.ID, &e.Name, &e.ExternalUID, &begin, &end,
		&e.Location, &e.Description, &e.OrganizerName, &e.OrganizerUID, &fee)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	e.ValidFrom = time.Unix(begin, 0).UTC()
	e.ValidUntil = time.Unix(end, 0).UTC()
	if e.EntranceFee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("event %d: bad entrance fee %q: %w", id, fee, err)
	}
	return &e, nil
}

// Upsert inserts or replaces an event and reports which it did. An empty
// ExternalUID keeps the stored one, or on insert is filled with a generated
// "GC<unix millis>" id; either way it is written back to e.
func (s *EventStore) Upsert(ctx context.Context, e *models.Event) (models.EventOp, error) {
	if e.ID <= 0 {
		return "", fmt.Errorf("event id must be positive, got %d", e.ID)
	}
	if e.Name == "" {
		return "", fmt.Errorf("event %d: name is required", e.ID)
	}
	if e.ValidUntil.Before(e.ValidFrom) {
		return "", fmt.Errorf("event %d: ends before it begins", e.ID)
	}
	if e.EntranceFee.IsNegative() {
		return "", fmt.Errorf("event %d: entrance fee must not be negative", e.ID)
	}

	op := models.EventUpdated
	prev, err := s.Get(ctx, e.ID)
	switch {
	case errors.Is(err, ErrEventNotFound):
		op = models.EventCreated
	case err != nil:
		return "", err
	case e.ExternalUID == "":
		e.ExternalUID = prev.ExternalUID
	}
	if e.ExternalUID == "" {
		e.ExternalUID = fmt.Sprintf("GC%d", s.now().UnixMilli())
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, name, external_uid, date_begin, date_end,
		                    location, description, organizer_name, organizer_uid, entrance_fee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			external_uid = excluded.external_uid,
			date_begin = excluded.date_begin,
			date_end = excluded.date_end,
			location = excluded.location,
			description = excluded.description,
			organizer_name = excluded.organizer_name,
			organizer_uid = excluded.organizer_uid,
			entrance_fee = excluded.entrance_fee
	`, e.ID, e.Name, e.ExternalUID, e.ValidFrom.Unix(), e.ValidUntil.Unix(),
		e.Location, e.Description, e.OrganizerName, e.OrganizerUID, e.EntranceFee.String())
	if err != nil {
		return "", fmt.Errorf("upsert event: %w", err)
	}

	s.notify(ctx, op, e)
	return op, nil
}

// Delete removes an event. Orders keep their tag.
func (s *EventStore) Delete(ctx context.Context, id int64) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	s.notify(ctx, models.EventDeleted, e)
	return nil
}

func (s *EventStore) notify(ctx context.Context, op models.EventOp, e *models.Event) {
	if s.observer == nil {
		return
	}
	cp := *e
	s.observer.EventChanged(ctx, op, &cp)
}
