package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/attendify/pos-event-sync/internal/prompt"
	"github.com/attendify/pos-event-sync/internal/store"
)

func TestManagerLifecycle(t *testing.T) {
	f := newFixture(t, 1, 2)
	m := NewManager(zerolog.Nop())

	if _, err := m.Current(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	first, err := m.Begin(context.Background(), f.options("sess-1"))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	first.Start(context.Background())
	if id, _ := first.Selection().CandidateID.Get(); id != 1 {
		t.Fatalf("expected 1, got %v", first.Selection().CandidateID)
	}

	second, err := m.Begin(context.Background(), f.options("sess-2"))
	if err != nil {
		t.Fatalf("begin second: %v", err)
	}
	if !first.Selection().CandidateID.IsNone() {
		t.Fatal("previous session selection must be discarded")
	}
	if !second.Selection().CandidateID.IsNone() {
		t.Fatal("new session must start without a selection")
	}
	if cur, _ := m.Current(); cur != second {
		t.Fatal("expected second session to be current")
	}

	if err := m.End(context.Background()); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := m.End(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestBeginDismissesPreviousPrompt(t *testing.T) {
	f := newFixture(t)
	prompts := prompt.NewDeferred()
	m := NewManager(zerolog.Nop())

	opts := f.options("sess-1")
	opts.Prompter = prompts
	first, err := m.Begin(context.Background(), opts)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	firstDone := make(chan error, 1)
	go func() { firstDone <- first.Start(context.Background()) }()
	waitPending(t, prompts)

	opts = f.options("sess-2")
	opts.Prompter = prompts
	second, err := m.Begin(context.Background(), opts)
	if err != nil {
		t.Fatalf("begin second: %v", err)
	}
	select {
	case <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("previous bootstrap still waiting after Begin")
	}
	if _, open := prompts.Pending(); open {
		t.Fatal("previous prompt left open")
	}

	secondDone := make(chan error, 1)
	go func() { secondDone <- second.Start(context.Background()) }()
	waitPending(t, prompts)
	id := int64(2)
	if err := prompts.Answer(&id); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := <-secondDone; err != nil {
		t.Fatalf("start second: %v", err)
	}

	if got, _ := second.Selection().CandidateID.Get(); got != 2 {
		t.Fatalf("expected new session on 2, got %v", second.Selection().CandidateID)
	}
	if !first.Selection().CandidateID.IsNone() {
		t.Fatalf("ended session picked up %v", first.Selection().CandidateID)
	}
	res, _ := second.BootstrapResult()
	if !res.Prompted {
		t.Fatalf("expected the new session to prompt, got %+v", res)
	}

	rows := store.NewSessionStore(f.db)
	old, _ := rows.GetByID("sess-1")
	if !old.Event.IsNone() || old.EndedAt == nil {
		t.Fatalf("ended session row changed: %+v", old)
	}
	cur, _ := rows.GetByID("sess-2")
	if got, _ := cur.Event.Get(); got != 2 {
		t.Fatalf("expected sess-2 row on 2, got %v", cur.Event)
	}
}
