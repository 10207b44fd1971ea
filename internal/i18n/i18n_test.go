package i18n

import (
	"testing"

	"golang.org/x/text/language"

	"github.com/attendify/pos-event-sync/internal/models"
)

func TestLanguageResolution(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
	}{
		{"nl", language.Dutch},
		{"nl-BE", language.Dutch},
		{"en-GB", language.English},
		{"", language.English},
		{"fr", language.English},
		{"not a tag!", language.English},
	}
	for _, tt := range tests {
		got := New(tt.in).Language()
		if base, _ := got.Base(); base.String() != tt.want.String() {
			t.Errorf("New(%q) resolved to %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLabelAndTooltip(t *testing.T) {
	expo := &models.Candidate{ID: 1, Name: "Expo"}

	tests := []struct {
		lang       string
		c          *models.Candidate
		label, tip string
	}{
		{"en", nil, "Choose an event", "No event selected"},
		{"en", expo, "Expo", "Current event: Expo"},
		{"nl", nil, "Kies een event", "Geen event geselecteerd"},
		{"nl", expo, "Expo", "Huidig event: Expo"},
	}
	for _, tt := range tests {
		tr := New(tt.lang)
		if got := tr.Label(tt.c); got != tt.label {
			t.Errorf("%s label: got %q, want %q", tt.lang, got, tt.label)
		}
		if got := tr.Tooltip(tt.c); got != tt.tip {
			t.Errorf("%s tooltip: got %q, want %q", tt.lang, got, tt.tip)
		}
	}
}

func TestPromptStrings(t *testing.T) {
	nl := New("nl")
	if nl.PromptTitle() != "Kies een event" {
		t.Errorf("unexpected title %q", nl.PromptTitle())
	}
	if nl.NoCandidates() != "Geen actuele events" {
		t.Errorf("unexpected empty text %q", nl.NoCandidates())
	}
}
