package codec

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/attendify/pos-event-sync/internal/lifecycle"
	"github.com/attendify/pos-event-sync/internal/models"
)

func TestEncode(t *testing.T) {
	if got := string(Encode(&models.Order{EventTag: models.RefTo(1)})); got != "1" {
		t.Errorf("expected 1, got %s", got)
	}
	if got := string(Encode(&models.Order{})); got != "null" {
		t.Errorf("expected null for no event, got %s", got)
	}
	if got := string(Encode(&models.Order{EventTag: models.RefTo(0)})); got != "null" {
		t.Errorf("expected null for id 0, got %s", got)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, ref := range []models.EventRef{models.NoEvent(), models.RefTo(1), models.RefTo(42), models.RefTo(1 << 40)} {
		t.Run(ref.String(), func(t *testing.T) {
			src := &models.Order{EventTag: ref}
			dst := &models.Order{EventTag: models.RefTo(999)}
			Decode(Encode(src), dst)
			if dst.EventTag != ref {
				t.Fatalf("round trip changed %v into %v", ref, dst.EventTag)
			}
		})
	}
}

func TestDecodeLenient(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.EventRef
	}{
		{"integer", `7`, models.RefTo(7)},
		{"padded", ` 7 `, models.RefTo(7)},
		{"string", `"7"`, models.RefTo(7)},
		{"integral float", `7.0`, models.RefTo(7)},
		{"many2one pair", `[7, "Expo"]`, models.RefTo(7)},
		{"missing", ``, models.NoEvent()},
		{"null", `null`, models.NoEvent()},
		{"false", `false`, models.NoEvent()},
		{"true", `true`, models.NoEvent()},
		{"zero", `0`, models.NoEvent()},
		{"negative", `-3`, models.NoEvent()},
		{"fraction", `7.5`, models.NoEvent()},
		{"word", `"expo"`, models.NoEvent()},
		{"object", `{"id": 7}`, models.NoEvent()},
		{"empty pair", `[]`, models.NoEvent()},
		{"nested pair", `[[7]]`, models.NoEvent()},
		{"garbage", `{{{`, models.NoEvent()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &models.Order{EventTag: models.RefTo(999)}
			Decode(json.RawMessage(tt.raw), o)
			if o.EventTag != tt.want {
				t.Fatalf("Decode(%s) = %v, want %v", tt.raw, o.EventTag, tt.want)
			}
		})
	}
}

func TestNullInt64(t *testing.T) {
	n := NullInt64(&models.Order{})
	if n.Valid {
		t.Fatal("no event should map to SQL NULL")
	}
	n = NullInt64(&models.Order{EventTag: models.RefTo(5)})
	if !n.Valid || n.Int64 != 5 {
		t.Fatalf("expected 5, got %+v", n)
	}

	o := &models.Order{}
	ScanNullInt64(sql.NullInt64{Int64: 5, Valid: true}, o)
	if id, ok := o.EventTag.Get(); !ok || id != 5 {
		t.Fatalf("expected tag 5, got %v", o.EventTag)
	}
	ScanNullInt64(sql.NullInt64{}, o)
	if !o.EventTag.IsNone() {
		t.Fatalf("expected none, got %v", o.EventTag)
	}
}

func TestRegister(t *testing.T) {
	h := lifecycle.New()
	Register(h)

	p := lifecycle.Payload{}
	h.RunExport(&models.Order{}, p)
	if string(p[Field]) != "null" {
		t.Fatalf("expected explicit null, got %q", p[Field])
	}

	p[Field] = json.RawMessage("3")
	o := &models.Order{}
	h.RunImport(p, o)
	if id, _ := o.EventTag.Get(); id != 3 {
		t.Fatalf("expected 3, got %v", o.EventTag)
	}
}
