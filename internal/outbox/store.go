package outbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store keeps message state in memory. Data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	msgs map[string]*Message
}

func NewStore() *Store {
	return &Store{msgs: make(map[string]*Message)}
}

// Save inserts or updates a message. A copy is stored.
func (s *Store) Save(ctx context.Context, m *Message) error {
	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *m
	s.msgs[m.ID] = &cp
	return nil
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.msgs[id]
	if !ok {
		return nil, fmt.Errorf("message not found: %s", id)
	}
	cp := *m
	return &cp, nil
}

// List returns matching messages, oldest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*Message, error) {
	s.mu.RLock()
	var out []*Message
	for _, m := range s.msgs {
		if f.Kind != "" && m.Kind != f.Kind {
			continue
		}
		if f.Key != "" && m.Key != f.Key {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*Message{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}
