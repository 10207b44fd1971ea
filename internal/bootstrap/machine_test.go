package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/attendify/pos-event-sync/internal/candidates"
	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/selection"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func expo() models.Candidate {
	return models.Candidate{ID: 1, Name: "Expo", ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(48 * time.Hour)}
}

func fair() models.Candidate {
	return models.Candidate{ID: 2, Name: "Fair", ValidFrom: now.Add(time.Hour), ValidUntil: now.Add(72 * time.Hour)}
}

func storeOf(events ...models.Candidate) *candidates.Store {
	return candidates.NewStore(candidates.SourceFunc(func(ctx context.Context, f candidates.Filter) ([]models.Candidate, error) {
		return events, nil
	}), 50)
}

type countingPrompter struct {
	calls  atomic.Int32
	answer func([]models.Candidate) (Choice, error)
}

func (p *countingPrompter) PromptForSelection(ctx context.Context, cands []models.Candidate) (Choice, error) {
	p.calls.Add(1)
	return p.answer(cands)
}

func confirmFirst() *countingPrompter {
	return &countingPrompter{answer: func(c []models.Candidate) (Choice, error) { return Confirmed(c[0]), nil }}
}

func TestRunConfirmsSelection(t *testing.T) {
	sel := selection.New()
	p := confirmFirst()
	m := New(storeOf(expo(), fair()), sel, p, WithClock(func() time.Time { return now }))

	res := m.Run(context.Background())
	if id, _ := res.Selection.CandidateID.Get(); id != 1 {
		t.Fatalf("expected selection 1, got %v", res.Selection.CandidateID)
	}
	if id, _ := sel.Current().CandidateID.Get(); id != 1 {
		t.Fatalf("expected state selection 1, got %v", sel.Current().CandidateID)
	}
	if !res.Prompted || p.calls.Load() != 1 {
		t.Fatalf("expected exactly one prompt, got %d", p.calls.Load())
	}
	want := []Phase{PhaseInit, PhaseLoadingCandidates, PhaseAwaitingUserChoice, PhaseReady}
	if len(res.Phases) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, res.Phases)
	}
	for i := range want {
		if res.Phases[i] != want[i] {
			t.Fatalf("expected phases %v, got %v", want, res.Phases)
		}
	}
	if m.Phase() != PhaseReady {
		t.Fatalf("expected ready, got %s", m.Phase())
	}
}

func TestRunEmptySetSkipsPrompt(t *testing.T) {
	sel := selection.New()
	p := confirmFirst()
	res := New(storeOf(), sel, p).Run(context.Background())

	if !res.Selection.CandidateID.IsNone() {
		t.Fatalf("expected none, got %v", res.Selection.CandidateID)
	}
	if res.Prompted || p.calls.Load() != 0 {
		t.Fatal("prompt must not be shown for an empty candidate set")
	}
}

func TestRunExpiredCandidatesCountAsEmpty(t *testing.T) {
	old := models.Candidate{ID: 5, Name: "Old", ValidUntil: now.Add(-time.Minute)}
	p := confirmFirst()
	res := New(storeOf(old), selection.New(), p, WithClock(func() time.Time { return now })).Run(context.Background())
	if res.Prompted {
		t.Fatal("expired events must not be offered")
	}
}

func TestRunCancelled(t *testing.T) {
	sel := selection.New()
	p := &countingPrompter{answer: func([]models.Candidate) (Choice, error) { return Cancelled(), nil }}
	res := New(storeOf(expo()), sel, p, WithClock(func() time.Time { return now })).Run(context.Background())

	if !res.Selection.CandidateID.IsNone() || !sel.Current().CandidateID.IsNone() {
		t.Fatalf("expected none after cancel, got %v", res.Selection.CandidateID)
	}
	if res.Cause != nil {
		t.Fatalf("cancel is not a failure: %v", res.Cause)
	}
}

func TestRunPromptErrorResolvesToNone(t *testing.T) {
	p := &countingPrompter{answer: func([]models.Candidate) (Choice, error) { return Choice{}, errors.New("ui closed") }}
	res := New(storeOf(expo()), selection.New(), p, WithClock(func() time.Time { return now })).Run(context.Background())
	if !res.Selection.CandidateID.IsNone() || res.Cause == nil {
		t.Fatalf("expected none with cause, got %v / %v", res.Selection.CandidateID, res.Cause)
	}
}

func TestRunRejectsUnofferedChoice(t *testing.T) {
	p := &countingPrompter{answer: func([]models.Candidate) (Choice, error) {
		return Confirmed(models.Candidate{ID: 99}), nil
	}}
	res := New(storeOf(expo()), selection.New(), p, WithClock(func() time.Time { return now })).Run(context.Background())
	if !res.Selection.CandidateID.IsNone() {
		t.Fatalf("expected none, got %v", res.Selection.CandidateID)
	}
}

func TestRunDataUnavailable(t *testing.T) {
	src := candidates.SourceFunc(func(ctx context.Context, f candidates.Filter) ([]models.Candidate, error) {
		return nil, errors.New("connection refused")
	})
	p := confirmFirst()
	res := New(candidates.NewStore(src, 50), selection.New(), p).Run(context.Background())

	if !errors.Is(res.Cause, candidates.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable cause, got %v", res.Cause)
	}
	if !res.Selection.CandidateID.IsNone() || res.Prompted {
		t.Fatal("expected ready with none and no prompt")
	}
	if res.Phases[len(res.Phases)-1] != PhaseReady {
		t.Fatalf("expected to end ready, got %v", res.Phases)
	}
}

func TestRunUsesPriorSelection(t *testing.T) {
	p := confirmFirst()
	res := New(storeOf(expo(), fair()), selection.New(), p,
		WithPrior(models.RefTo(2)),
		WithClock(func() time.Time { return now }),
	).Run(context.Background())

	if id, _ := res.Selection.CandidateID.Get(); id != 2 {
		t.Fatalf("expected prior 2, got %v", res.Selection.CandidateID)
	}
	if res.Prompted {
		t.Fatal("prior selection in the set must not prompt")
	}
}

func TestRunStalePriorPrompts(t *testing.T) {
	p := confirmFirst()
	res := New(storeOf(expo()), selection.New(), p,
		WithPrior(models.RefTo(7)),
		WithClock(func() time.Time { return now }),
	).Run(context.Background())

	if !res.Prompted {
		t.Fatal("expected prompt when prior selection is not current")
	}
	if id, _ := res.Selection.CandidateID.Get(); id != 1 {
		t.Fatalf("expected 1, got %v", res.Selection.CandidateID)
	}
}

func TestRunPromptsAtMostOnce(t *testing.T) {
	p := confirmFirst()
	m := New(storeOf(expo()), selection.New(), p, WithClock(func() time.Time { return now }))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Run(context.Background())
		}()
	}
	wg.Wait()
	m.Run(context.Background())

	if got := p.calls.Load(); got != 1 {
		t.Fatalf("expected one prompt, got %d", got)
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseAwaitingUserChoice.String() != "awaiting_user_choice" {
		t.Fatalf("unexpected %q", PhaseAwaitingUserChoice.String())
	}
	if Phase(9).String() != "phase(9)" {
		t.Fatalf("unexpected %q", Phase(9).String())
	}
}
