// Package selection holds the session's active event.
package selection

import (
	"sync"

	"github.com/attendify/pos-event-sync/internal/models"
)

// State is the single source of truth for a session's Selection. It is
// created with the session and dropped with it.
type State struct {
	mu  sync.RWMutex
	cur models.Selection
}

// New returns a State with no event selected.
func New() *State {
	return &State{}
}

// Current returns the active selection.
func (s *State) Current() models.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set overwrites the selection. The id is not checked against the
// candidate set and existing orders are not touched.
func (s *State) Set(id int64) {
	s.mu.Lock()
	s.cur = models.Selection{CandidateID: models.RefTo(id)}
	s.mu.Unlock()
}

// Clear removes the selection.
func (s *State) Clear() {
	s.mu.Lock()
	s.cur = models.Selection{}
	s.mu.Unlock()
}
