package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/attendify/pos-event-sync/internal/models"
)

func TestHooksRunInRegistrationOrder(t *testing.T) {
	h := New()
	var order []string
	h.OnCreate(func(o *models.Order) { order = append(order, "first") })
	h.OnCreate(func(o *models.Order) { order = append(order, "second") })

	h.RunCreate(&models.Order{})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestExportImportHooks(t *testing.T) {
	h := New()
	h.OnExport(func(o *models.Order, p Payload) {
		_ = p.Put("partner", o.PartnerRef)
	})
	h.OnImport(func(p Payload, o *models.Order) {
		_ = p.Get("partner", &o.PartnerRef)
	})

	p := Payload{}
	h.RunExport(&models.Order{PartnerRef: "C-42"}, p)

	var restored models.Order
	h.RunImport(p, &restored)
	if restored.PartnerRef != "C-42" {
		t.Fatalf("expected C-42, got %q", restored.PartnerRef)
	}
}

func TestPayloadGetMissingKey(t *testing.T) {
	v := "unchanged"
	if err := (Payload{}).Get("nope", &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "unchanged" {
		t.Fatalf("expected value untouched, got %q", v)
	}
}

func TestRunSessionLoadedStopsAtError(t *testing.T) {
	h := New()
	boom := errors.New("boom")
	calls := 0
	h.OnSessionLoaded(func(ctx context.Context) error { calls++; return boom })
	h.OnSessionLoaded(func(ctx context.Context) error { calls++; return nil })

	if err := h.RunSessionLoaded(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
