package binder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/attendify/pos-event-sync/internal/candidates"
	"github.com/attendify/pos-event-sync/internal/lifecycle"
	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/selection"
)

func setup(t *testing.T, ids ...int64) (*Binder, *selection.State) {
	t.Helper()
	var events []models.Candidate
	for _, id := range ids {
		events = append(events, models.Candidate{ID: id, ValidUntil: time.Now().Add(24 * time.Hour)})
	}
	cands := candidates.NewStore(candidates.SourceFunc(func(ctx context.Context, f candidates.Filter) ([]models.Candidate, error) {
		return events, nil
	}), 10)
	if _, err := cands.Refresh(context.Background(), time.Now()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	sel := selection.New()
	return New(sel, cands), sel
}

func TestBindOnCreateCopiesSelection(t *testing.T) {
	b, sel := setup(t, 1, 2)

	none := &models.Order{}
	b.BindOnCreate(none)
	if !none.EventTag.IsNone() {
		t.Fatalf("expected no tag without selection, got %v", none.EventTag)
	}

	sel.Set(1)
	first := &models.Order{}
	b.BindOnCreate(first)
	if id, _ := first.EventTag.Get(); id != 1 {
		t.Fatalf("expected tag 1, got %v", first.EventTag)
	}

	// Later selection changes do not reach existing orders.
	sel.Set(2)
	if id, _ := first.EventTag.Get(); id != 1 {
		t.Fatalf("existing order changed to %v", first.EventTag)
	}
	second := &models.Order{}
	b.BindOnCreate(second)
	if id, _ := second.EventTag.Get(); id != 2 {
		t.Fatalf("expected tag 2, got %v", second.EventTag)
	}
}

func TestBindOnUserAction(t *testing.T) {
	b, sel := setup(t, 1, 2)
	o := &models.Order{EventTag: models.RefTo(1)}

	if err := b.BindOnUserAction(o, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, _ := o.EventTag.Get(); id != 2 {
		t.Fatalf("expected order tag 2, got %v", o.EventTag)
	}
	if id, _ := sel.Current().CandidateID.Get(); id != 2 {
		t.Fatalf("expected selection 2, got %v", sel.Current().CandidateID)
	}
}

func TestBindOnUserActionUnknownCandidate(t *testing.T) {
	b, sel := setup(t, 1)
	sel.Set(1)
	o := &models.Order{EventTag: models.RefTo(1)}

	err := b.BindOnUserAction(o, 3)
	if !errors.Is(err, ErrUnknownCandidate) {
		t.Fatalf("expected ErrUnknownCandidate, got %v", err)
	}
	if id, _ := o.EventTag.Get(); id != 1 {
		t.Fatalf("order changed on failure: %v", o.EventTag)
	}
	if id, _ := sel.Current().CandidateID.Get(); id != 1 {
		t.Fatalf("selection changed on failure: %v", sel.Current().CandidateID)
	}
}

func TestRegisterInstallsCreateHook(t *testing.T) {
	b, sel := setup(t, 4)
	sel.Set(4)
	h := lifecycle.New()
	b.Register(h)

	o := &models.Order{}
	h.RunCreate(o)
	if id, _ := o.EventTag.Get(); id != 4 {
		t.Fatalf("expected tag 4, got %v", o.EventTag)
	}
}
