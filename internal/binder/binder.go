// Package binder stamps the session's event onto orders.
package binder

import (
	"errors"
	"fmt"

	"github.com/attendify/pos-event-sync/internal/candidates"
	"github.com/attendify/pos-event-sync/internal/lifecycle"
	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/selection"
)

// ErrUnknownCandidate is returned when a re-tag names an event that is not
// in the current candidate set.
var ErrUnknownCandidate = errors.New("unknown candidate")

// Binder applies the active selection to orders.
type Binder struct {
	sel   *selection.State
	cands *candidates.Store
}

func New(sel *selection.State, cands *candidates.Store) *Binder {
	return &Binder{sel: sel, cands: cands}
}

// Register installs BindOnCreate as an order creation hook.
func (b *Binder) Register(h *lifecycle.Hooks) {
	h.OnCreate(b.BindOnCreate)
}

// BindOnCreate copies the current selection into a new order.
func (b *Binder) BindOnCreate(o *models.Order) {
	o.EventTag = b.sel.Current().CandidateID
}

// BindOnUserAction re-tags o with id and makes id the session selection so
// later orders inherit it. The order is left unchanged when id is not a
// current candidate.
func (b *Binder) BindOnUserAction(o *models.Order, id int64) error {
	if err := b.Validate(id); err != nil {
		return err
	}
	o.EventTag = models.RefTo(id)
	b.sel.Set(id)
	return nil
}

// Validate checks that id is in the current candidate set.
func (b *Binder) Validate(id int64) error {
	if !b.cands.Contains(id) {
		return fmt.Errorf("%w: %d", ErrUnknownCandidate, id)
	}
	return nil
}
