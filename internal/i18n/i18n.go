// Package i18n holds the register's user facing strings.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/attendify/pos-event-sync/internal/models"
)

// Message keys.
const (
	keyChooseEvent  = "Choose an event"
	keyCurrentEvent = "Current event: %s"
	keyNoEvent      = "No event selected"
	keyNoCandidates = "No current events"
)

var supported = []language.Tag{language.English, language.Dutch}

var cat = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key, msg string) {
		if err := b.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}

	set(language.English, keyChooseEvent, "Choose an event")
	set(language.English, keyCurrentEvent, "Current event: %s")
	set(language.English, keyNoEvent, "No event selected")
	set(language.English, keyNoCandidates, "No current events")

	set(language.Dutch, keyChooseEvent, "Kies een event")
	set(language.Dutch, keyCurrentEvent, "Huidig event: %s")
	set(language.Dutch, keyNoEvent, "Geen event geselecteerd")
	set(language.Dutch, keyNoCandidates, "Geen actuele events")
	return b
}()

var matcher = language.NewMatcher(supported)

// Translator renders strings in one language.
type Translator struct {
	tag language.Tag
	p   *message.Printer
}

// New returns a Translator for a BCP 47 language such as "nl" or "en-GB".
// Unknown or unsupported languages fall back to English.
func New(lang string) *Translator {
	tag := language.English
	if parsed, err := language.Parse(lang); err == nil {
		_, idx, conf := matcher.Match(parsed)
		if conf != language.No {
			tag = supported[idx]
		}
	}
	return &Translator{tag: tag, p: message.NewPrinter(tag, message.Catalog(cat))}
}

// Language returns the resolved language.
func (t *Translator) Language() language.Tag { return t.tag }

// Label is the short text on the event button: the event name, or a
// prompt to choose one.
func (t *Translator) Label(c *models.Candidate) string {
	if c == nil {
		return t.p.Sprintf(keyChooseEvent)
	}
	return c.Name
}

// Tooltip describes the current event.
func (t *Translator) Tooltip(c *models.Candidate) string {
	if c == nil {
		return t.p.Sprintf(keyNoEvent)
	}
	return t.p.Sprintf(keyCurrentEvent, c.Name)
}

// PromptTitle is the heading of the event picker.
func (t *Translator) PromptTitle() string { return t.p.Sprintf(keyChooseEvent) }

// NoCandidates is shown when there is nothing to pick from.
func (t *Translator) NoCandidates() string { return t.p.Sprintf(keyNoCandidates) }
