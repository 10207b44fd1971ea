// Package bootstrap establishes a session's initial event selection.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/attendify/pos-event-sync/internal/candidates"
	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/selection"
)

// Phase is a state of the bootstrap machine.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseLoadingCandidates
	PhaseAwaitingUserChoice
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseLoadingCandidates:
		return "loading_candidates"
	case PhaseAwaitingUserChoice:
		return "awaiting_user_choice"
	case PhaseReady:
		return "ready"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Choice is the outcome of a selection prompt: a confirmed candidate or a
// cancellation.
type Choice struct {
	candidate *models.Candidate
}

// Confirmed is a choice of c.
func Confirmed(c models.Candidate) Choice { return Choice{candidate: &c} }

// Cancelled is a dismissed prompt.
func Cancelled() Choice { return Choice{} }

// Candidate returns the chosen candidate, if any.
func (c Choice) Candidate() (models.Candidate, bool) {
	if c.candidate == nil {
		return models.Candidate{}, false
	}
	return *c.candidate, true
}

// IsCancelled reports whether no candidate was chosen.
func (c Choice) IsCancelled() bool { return c.candidate == nil }

// Prompter asks the user to pick one of candidates. It may block until the
// user answers; it has no timeout of its own.
type Prompter interface {
	PromptForSelection(ctx context.Context, candidates []models.Candidate) (Choice, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, candidates []models.Candidate) (Choice, error)

func (f PrompterFunc) PromptForSelection(ctx context.Context, candidates []models.Candidate) (Choice, error) {
	return f(ctx, candidates)
}

// Result is the terminal state of a bootstrap run.
type Result struct {
	Selection models.Selection
	Prompted  bool
	Phases    []Phase
	// Cause is the recoverable failure that forced an empty selection, if
	// any. It is informational; bootstrap never fails the session.
	Cause error
}

// Machine runs the bootstrap sequence once.
type Machine struct {
	cands    *candidates.Store
	sel      *selection.State
	prompter Prompter
	prior    models.EventRef
	now      func() time.Time
	log      zerolog.Logger

	once   sync.Once
	mu     sync.Mutex
	phase  Phase
	result Result
}

// Option configures a Machine.
type Option func(*Machine)

// WithPrior seeds the selection restored from persisted session data.
func WithPrior(ref models.EventRef) Option {
	return func(m *Machine) { m.prior = ref }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Machine) { m.log = log }
}

func New(cands *candidates.Store, sel *selection.State, prompter Prompter, opts ...Option) *Machine {
	m := &Machine{
		cands:    cands,
		sel:      sel,
		prompter: prompter,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Run executes the sequence. Only the first call does any work; later calls
// wait for it and return the same Result.
func (m *Machine) Run(ctx context.Context) Result {
	m.once.Do(func() {
		m.result = m.run(ctx)
	})
	return m.result
}

func (m *Machine) run(ctx context.Context) Result {
	var res Result
	enter := func(p Phase) {
		m.mu.Lock()
		m.phase = p
		m.mu.Unlock()
		res.Phases = append(res.Phases, p)
	}
	ready := func(sel models.Selection) Result {
		if id, ok := sel.CandidateID.Get(); ok {
			m.sel.Set(id)
		} else {
			m.sel.Clear()
		}
		res.Selection = sel
		enter(PhaseReady)
		return res
	}

	res.Phases = append(res.Phases, PhaseInit)
	enter(PhaseLoadingCandidates)

	set, err := m.cands.Refresh(ctx, m.now())
	if err != nil {
		res.Cause = err
		m.log.Warn().Err(err).Msg("event candidates unavailable, continuing without event tagging")
		return ready(models.Selection{})
	}
	if len(set) == 0 {
		m.log.Info().Msg("no current events, skipping event selection")
		return ready(models.Selection{})
	}

	if id, ok := m.prior.Get(); ok {
		if m.cands.Contains(id) {
			m.log.Info().Int64("event_id", id).Msg("restored event selection from session")
			return ready(models.Selection{CandidateID: m.prior})
		}
		m.log.Info().Int64("event_id", id).Msg("restored event is no longer current, asking again")
	}

	enter(PhaseAwaitingUserChoice)
	res.Prompted = true

	choice, err := m.prompter.PromptForSelection(ctx, set)
	if err != nil {
		res.Cause = err
		m.log.Warn().Err(err).Msg("event prompt failed, continuing without event")
		return ready(models.Selection{})
	}
	c, ok := choice.Candidate()
	if !ok {
		m.log.Info().Msg("event selection cancelled")
		return ready(models.Selection{})
	}
	if !m.cands.Contains(c.ID) {
		res.Cause = fmt.Errorf("prompt returned event %d: %w", c.ID, errNotOffered)
		m.log.Warn().Int64("event_id", c.ID).Msg("prompt returned an event that was not offered")
		return ready(models.Selection{})
	}

	m.log.Info().Int64("event_id", c.ID).Str("event", c.Name).Msg("event selected")
	return ready(models.Selection{CandidateID: models.RefTo(c.ID)})
}

var errNotOffered = errors.New("event not in candidate set")
