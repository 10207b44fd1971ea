// Package prompt provides a Prompter whose answer arrives from outside the
// waiting goroutine, such as an HTTP request.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/attendify/pos-event-sync/internal/bootstrap"
	"github.com/attendify/pos-event-sync/internal/models"
)

var (
	// ErrNoPrompt is returned when answering while nothing is being asked.
	ErrNoPrompt = errors.New("no prompt pending")
	// ErrBusy is returned when a second prompt is opened before the first
	// is answered.
	ErrBusy = errors.New("a prompt is already pending")
	// ErrNotOffered is returned when the answer names an event that was not
	// in the prompt.
	ErrNotOffered = errors.New("event was not offered")
)

type request struct {
	candidates []models.Candidate
	reply      chan bootstrap.Choice
}

// Deferred parks PromptForSelection until Resolve is called. At most one
// prompt is open at a time.
type Deferred struct {
	mu      sync.Mutex
	pending *request
	opened  chan struct{}
}

func NewDeferred() *Deferred {
	return &Deferred{opened: make(chan struct{}, 1)}
}

// PromptForSelection blocks until the prompt is answered. A cancelled ctx
// counts as a dismissed prompt.
func (d *Deferred) PromptForSelection(ctx context.Context, candidates []models.Candidate) (bootstrap.Choice, error) {
	req := &request{
		candidates: append([]models.Candidate(nil), candidates...),
		reply:      make(chan bootstrap.Choice, 1),
	}

	d.mu.Lock()
	if d.pending != nil {
		d.mu.Unlock()
		return bootstrap.Cancelled(), ErrBusy
	}
	d.pending = req
	d.mu.Unlock()

	select {
	case d.opened <- struct{}{}:
	default:
	}

	defer func() {
		d.mu.Lock()
		if d.pending == req {
			d.pending = nil
		}
		d.mu.Unlock()
	}()

	select {
	case c := <-req.reply:
		return c, nil
	case <-ctx.Done():
		return bootstrap.Cancelled(), nil
	}
}

// Pending returns the candidates of the open prompt.
func (d *Deferred) Pending() ([]models.Candidate, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil, false
	}
	return append([]models.Candidate(nil), d.pending.candidates...), true
}

// Opened signals, without blocking the prompter, that a prompt was opened.
func (d *Deferred) Opened() <-chan struct{} { return d.opened }

// Resolve answers the open prompt.
func (d *Deferred) Resolve(c bootstrap.Choice) error {
	d.mu.Lock()
	req := d.pending
	d.pending = nil
	d.mu.Unlock()

	if req == nil {
		return ErrNoPrompt
	}
	req.reply <- c
	return nil
}

// Answer confirms the offered event with the given id, or cancels the prompt
// when id is nil.
func (d *Deferred) Answer(id *int64) error {
	if id == nil {
		return d.Resolve(bootstrap.Cancelled())
	}

	d.mu.Lock()
	req := d.pending
	d.mu.Unlock()
	if req == nil {
		return ErrNoPrompt
	}
	for _, c := range req.candidates {
		if c.ID == *id {
			return d.Resolve(bootstrap.Confirmed(c))
		}
	}
	return fmt.Errorf("%w: %d", ErrNotOffered, *id)
}
