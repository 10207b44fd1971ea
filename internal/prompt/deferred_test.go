package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/attendify/pos-event-sync/internal/bootstrap"
	"github.com/attendify/pos-event-sync/internal/models"
)

var offered = []models.Candidate{{ID: 1, Name: "Expo"}, {ID: 2, Name: "Fair"}}

func ask(d *Deferred, ctx context.Context) <-chan bootstrap.Choice {
	out := make(chan bootstrap.Choice, 1)
	go func() {
		c, _ := d.PromptForSelection(ctx, offered)
		out <- c
	}()
	return out
}

func waitOpened(t *testing.T, d *Deferred) {
	t.Helper()
	select {
	case <-d.Opened():
	case <-time.After(2 * time.Second):
		t.Fatal("prompt was not opened")
	}
}

func TestAnswerConfirms(t *testing.T) {
	d := NewDeferred()
	res := ask(d, context.Background())
	waitOpened(t, d)

	got, ok := d.Pending()
	if !ok || len(got) != 2 {
		t.Fatalf("expected pending prompt with 2 candidates, got %v %v", got, ok)
	}

	id := int64(2)
	if err := d.Answer(&id); err != nil {
		t.Fatalf("answer: %v", err)
	}
	c, ok := (<-res).Candidate()
	if !ok || c.Name != "Fair" {
		t.Fatalf("expected Fair, got %+v", c)
	}
	if _, ok := d.Pending(); ok {
		t.Fatal("prompt still pending after answer")
	}
}

func TestAnswerNilCancels(t *testing.T) {
	d := NewDeferred()
	res := ask(d, context.Background())
	waitOpened(t, d)

	if err := d.Answer(nil); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !(<-res).IsCancelled() {
		t.Fatal("expected cancelled choice")
	}
}

func TestAnswerNotOffered(t *testing.T) {
	d := NewDeferred()
	res := ask(d, context.Background())
	waitOpened(t, d)

	id := int64(9)
	if err := d.Answer(&id); !errors.Is(err, ErrNotOffered) {
		t.Fatalf("expected ErrNotOffered, got %v", err)
	}
	if _, ok := d.Pending(); !ok {
		t.Fatal("prompt must stay open after a rejected answer")
	}
	d.Answer(nil)
	<-res
}

func TestContextCancelDismisses(t *testing.T) {
	d := NewDeferred()
	ctx, cancel := context.WithCancel(context.Background())
	res := ask(d, ctx)
	waitOpened(t, d)

	cancel()
	if !(<-res).IsCancelled() {
		t.Fatal("expected cancelled choice")
	}
	if _, ok := d.Pending(); ok {
		t.Fatal("prompt still pending after cancel")
	}
}

func TestResolveWithoutPrompt(t *testing.T) {
	d := NewDeferred()
	if err := d.Resolve(bootstrap.Cancelled()); !errors.Is(err, ErrNoPrompt) {
		t.Fatalf("expected ErrNoPrompt, got %v", err)
	}
	id := int64(1)
	if err := d.Answer(&id); !errors.Is(err, ErrNoPrompt) {
		t.Fatalf("expected ErrNoPrompt, got %v", err)
	}
}

func TestSecondPromptIsBusy(t *testing.T) {
	d := NewDeferred()
	res := ask(d, context.Background())
	waitOpened(t, d)

	if _, err := d.PromptForSelection(context.Background(), offered); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	d.Answer(nil)
	<-res
}
