package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/attendify/pos-event-sync/internal/bootstrap"
	"github.com/attendify/pos-event-sync/internal/models"
)

// Picker is the event selection list shown while a prompt is open.
type Picker struct {
	Title         string
	Events        []models.Candidate
	Idx           int
	Width, Height int
}

// NewPicker creates a picker over events with the first one highlighted.
// When current is one of the events it is highlighted instead.
func NewPicker(title string, events []models.Candidate, current models.EventRef) Picker {
	p := Picker{Title: title, Events: events}
	if id, ok := current.Get(); ok {
		for i, c := range events {
			if c.ID == id {
				p.Idx = i
				break
			}
		}
	}
	return p
}

// HandleKey moves the highlight or finishes the prompt. The returned choice
// is non-nil once the user confirmed or dismissed the list.
func (p Picker) HandleKey(msg tea.KeyMsg, keys KeyMap) (Picker, *bootstrap.Choice) {
	switch {
	case key.Matches(msg, keys.Up):
		if p.Idx > 0 {
			p.Idx--
		}
	case key.Matches(msg, keys.Down):
		if p.Idx < len(p.Events)-1 {
			p.Idx++
		}
	case key.Matches(msg, keys.Enter):
		if p.Idx < len(p.Events) {
			c := bootstrap.Confirmed(p.Events[p.Idx])
			return p, &c
		}
	case key.Matches(msg, keys.Escape):
		c := bootstrap.Cancelled()
		return p, &c
	}
	return p, nil
}

// Selected returns the highlighted event
func (p Picker) Selected() *models.Candidate {
	if p.Idx < len(p.Events) {
		return &p.Events[p.Idx]
	}
	return nil
}

func (p Picker) View() string {
	var content strings.Builder
	content.WriteString(PanelTitleStyle.Render(p.Title))
	content.WriteString("\n\n")

	for i, ev := range p.Events {
		var line string
		if i == p.Idx {
			line = PickerSelectedStyle.Render("> " + ev.Name)
		} else {
			line = PickerItemStyle.Render("  " + ev.Name)
		}
		dates := DimStyle.Render(" " + ev.ValidFrom.Local().Format("02-01") + " - " + ev.ValidUntil.Local().Format("02-01"))
		content.WriteString(line + dates)
		content.WriteString("\n")
	}

	content.WriteString("\n")
	content.WriteString(DimStyle.Render("Up/Down navigate - Enter select - Esc skip"))

	box := PickerBoxStyle.Render(content.String())
	if p.Width == 0 || p.Height == 0 {
		return box
	}
	return lipgloss.Place(p.Width, p.Height, lipgloss.Center, lipgloss.Center, box)
}
