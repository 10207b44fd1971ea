// Package candidates loads and holds the events a cashier can pick from.
package candidates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/attendify/pos-event-sync/internal/models"
)

// ErrDataUnavailable is returned when the backend cannot be reached.
var ErrDataUnavailable = errors.New("candidate data unavailable")

// DefaultLimit bounds the number of candidates fetched per refresh.
const DefaultLimit = 50

// Filter narrows a backend fetch.
type Filter struct {
	ValidAfter time.Time
	Limit      int
}

// Source is the backend data source for candidates. Implementations
// return candidates ordered by start time.
type Source interface {
	FetchCandidates(ctx context.Context, filter Filter) ([]models.Candidate, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, filter Filter) ([]models.Candidate, error)

func (f SourceFunc) FetchCandidates(ctx context.Context, filter Filter) ([]models.Candidate, error) {
	return f(ctx, filter)
}

// Store holds the current candidate set. The set is replaced as a whole on
// each successful Refresh.
type Store struct {
	src   Source
	limit int

	mu          sync.RWMutex
	set         []models.Candidate
	index       map[int64]int
	refreshedAt time.Time
}

// NewStore creates an empty store reading from src. A limit below one uses
// DefaultLimit.
func NewStore(src Source, limit int) *Store {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Store{
		src:   src,
		limit: limit,
		index: make(map[int64]int),
	}
}

// Refresh fetches candidates valid at now and replaces the held set. On
// failure the previous set is kept and the error wraps ErrDataUnavailable.
func (s *Store) Refresh(ctx context.Context, now time.Time) ([]models.Candidate, error) {
	fetched, err := s.src.FetchCandidates(ctx, Filter{ValidAfter: now, Limit: s.limit})
	if err != nil {
		if errors.Is(err, ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	set := make([]models.Candidate, 0, len(fetched))
	index := make(map[int64]int, len(fetched))
	for _, c := range fetched {
		if c.ValidUntil.Before(now) {
			continue
		}
		if _, dup := index[c.ID]; dup {
			continue
		}
		index[c.ID] = len(set)
		set = append(set, c)
	}

	s.mu.Lock()
	s.set = set
	s.index = index
	s.refreshedAt = now
	s.mu.Unlock()

	return copyOf(set), nil
}

// List returns a copy of the held set in backend order.
func (s *Store) List() []models.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyOf(s.set)
}

// Lookup returns the candidate with the given id from the held set.
func (s *Store) Lookup(id int64) (models.Candidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Candidate{}, false
	}
	return s.set[i], true
}

// Contains reports whether id is in the held set.
func (s *Store) Contains(id int64) bool {
	_, ok := s.Lookup(id)
	return ok
}

// Len returns the size of the held set.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set)
}

// RefreshedAt returns the time passed to the last successful Refresh.
func (s *Store) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

func copyOf(set []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, len(set))
	copy(out, set)
	return out
}
