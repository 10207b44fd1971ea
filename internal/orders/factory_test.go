package orders

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/attendify/pos-event-sync/internal/codec"
	"github.com/attendify/pos-event-sync/internal/lifecycle"
	"github.com/attendify/pos-event-sync/internal/models"
)

func newFactory() *Factory {
	h := lifecycle.New()
	codec.Register(h)
	return NewFactory(h)
}

func TestNewRunsCreateHooks(t *testing.T) {
	h := lifecycle.New()
	h.OnCreate(func(o *models.Order) { o.EventTag = models.RefTo(9) })
	f := NewFactory(h)

	o := f.New("sess-1")
	if o.UID == "" || o.SessionID != "sess-1" || o.State != models.OrderStateDraft {
		t.Fatalf("unexpected base fields: %+v", o)
	}
	if id, _ := o.EventTag.Get(); id != 9 {
		t.Fatalf("expected create hook to tag 9, got %v", o.EventTag)
	}
	if f.New("sess-1").Name == o.Name {
		t.Fatal("expected distinct order names")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFactory()
	o := f.New("sess-1")
	o.PartnerRef = "C-7"
	o.EventTag = models.RefTo(1)
	o.Lines = []models.OrderLine{{Product: "Beer", Qty: decimal.NewFromInt(2), PriceUnit: decimal.RequireFromString("3.50")}}

	data, err := f.Export(o)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("exported data is not an object: %v", err)
	}
	if string(raw[codec.Field]) != "1" {
		t.Fatalf("expected event_id 1, got %s", raw[codec.Field])
	}

	back, err := newFactory().Import(data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if back.UID != o.UID || back.Name != o.Name || back.PartnerRef != "C-7" {
		t.Fatalf("base fields lost: %+v", back)
	}
	if back.EventTag != o.EventTag {
		t.Fatalf("expected tag %v, got %v", o.EventTag, back.EventTag)
	}
	if !back.Total().Equal(decimal.RequireFromString("7")) {
		t.Fatalf("expected total 7, got %s", back.Total())
	}
}

func TestExportNoEventIsNull(t *testing.T) {
	f := newFactory()
	data, err := f.Export(f.New("sess-1"))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(data), `"event_id":null`) {
		t.Fatalf("expected explicit null event_id in %s", data)
	}

	back, err := f.Import(data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !back.EventTag.IsNone() {
		t.Fatalf("expected none, got %v", back.EventTag)
	}
}

func TestImportLegacyFalse(t *testing.T) {
	back, err := newFactory().Import([]byte(`{"uid":"u-1","name":"Order 00001","event_id":false}`))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !back.EventTag.IsNone() {
		t.Fatalf("expected none for legacy false, got %v", back.EventTag)
	}
}

func TestImportMalformedEventDoesNotFail(t *testing.T) {
	back, err := newFactory().Import([]byte(`{"uid":"u-1","event_id":{"bad":true}}`))
	if err != nil {
		t.Fatalf("malformed event field must not fail import: %v", err)
	}
	if !back.EventTag.IsNone() {
		t.Fatalf("expected none, got %v", back.EventTag)
	}
}

func TestImportErrors(t *testing.T) {
	f := newFactory()
	if _, err := f.Import([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed body")
	}
	if _, err := f.Import([]byte(`{"name":"x"}`)); err == nil {
		t.Error("expected error for missing uid")
	}
}

func TestImportAdvancesSequence(t *testing.T) {
	f := newFactory()
	if _, err := f.Import([]byte(`{"uid":"u-1","name":"Order 00041"}`)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := f.New("s").Name; got != "Order 00042" {
		t.Fatalf("expected Order 00042, got %s", got)
	}
}
