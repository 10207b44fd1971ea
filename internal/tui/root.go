// Package tui is the register's terminal front end: the current order, the
// event badge and the event picker.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/prompt"
	"github.com/attendify/pos-event-sync/internal/session"
)

// --- Messages ---

// promptOpenedMsg is sent when the session asks for an event
type promptOpenedMsg struct {
	events []models.Candidate
	ok     bool
}

// sessionStartedMsg is sent once the session bootstrap has finished
type sessionStartedMsg struct {
	err error
}

// reselectDoneMsg is sent when a user-requested event change finishes
type reselectDoneMsg struct {
	err error
}

// eventsRefreshedMsg is sent after a manual candidate refresh
type eventsRefreshedMsg struct {
	count int
	err   error
}

// Model is the root Bubble Tea model
type Model struct {
	ctx     context.Context
	sess    *session.Session
	prompts *prompt.Deferred

	// Terminal dimensions
	width  int
	height int

	// Event picker, set while a prompt is open
	picker *Picker

	// Line entry
	input  textinput.Model
	adding bool

	spinner spinner.Model
	help    help.Model
	keys    KeyMap

	started bool
	status  string
	err     string
}

// NewRootModel creates the register model. prompts must be the prompter the
// session was built with.
func NewRootModel(ctx context.Context, sess *session.Session, prompts *prompt.Deferred) Model {
	ti := textinput.New()
	ti.Placeholder = "Beer 2 3.50"
	ti.Prompt = "+ "
	ti.PromptStyle = InputPromptStyle
	ti.CharLimit = 120
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return Model{
		ctx:     ctx,
		sess:    sess,
		prompts: prompts,
		input:   ti,
		spinner: sp,
		help:    help.New(),
		keys:    DefaultKeyMap(),
	}
}

// Init starts the session bootstrap and listens for prompts
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		startSessionCmd(m.ctx, m.sess),
		waitForPromptCmd(m.ctx, m.prompts),
	)
}

// --- Commands ---

func startSessionCmd(ctx context.Context, sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		return sessionStartedMsg{err: sess.Start(ctx)}
	}
}

// waitForPromptCmd blocks until the session opens a prompt.
func waitForPromptCmd(ctx context.Context, prompts *prompt.Deferred) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-prompts.Opened():
			events, ok := prompts.Pending()
			return promptOpenedMsg{events: events, ok: ok}
		case <-ctx.Done():
			return nil
		}
	}
}

func reselectCmd(ctx context.Context, sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		return reselectDoneMsg{err: sess.RequestReselection(ctx)}
	}
}

func refreshEventsCmd(ctx context.Context, sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		set, err := sess.RefreshCandidates(ctx)
		return eventsRefreshedMsg{count: len(set), err: err}
	}
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if m.picker != nil {
			m.picker.Width, m.picker.Height = msg.Width, msg.Height
		}
		return m, nil

	case spinner.TickMsg:
		if m.started {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case promptOpenedMsg:
		if msg.ok {
			p := NewPicker(m.sess.Translator().PromptTitle(), msg.events, m.sess.Selection().CandidateID)
			p.Width, p.Height = m.width, m.height
			m.picker = &p
		}
		return m, waitForPromptCmd(m.ctx, m.prompts)

	case sessionStartedMsg:
		m.started = true
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		if res, ok := m.sess.BootstrapResult(); ok && res.Cause != nil {
			m.err = "events unavailable: " + res.Cause.Error()
		}
		return m, nil

	case reselectDoneMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
		} else {
			m.err = ""
			m.status = m.sess.Tooltip()
		}
		return m, nil

	case eventsRefreshedMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
		} else {
			m.err = ""
			m.status = fmt.Sprintf("%d events", msg.count)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.picker != nil {
		p, choice := m.picker.HandleKey(msg, m.keys)
		m.picker = &p
		if choice == nil {
			return m, nil
		}
		m.picker = nil
		if err := m.prompts.Resolve(*choice); err != nil && !errors.Is(err, prompt.ErrNoPrompt) {
			m.err = err.Error()
		}
		return m, nil
	}

	if m.adding {
		switch msg.Type {
		case tea.KeyEnter:
			m.addLine(m.input.Value())
			m.input.SetValue("")
			m.input.Blur()
			m.adding = false
			return m, nil
		case tea.KeyEsc:
			m.input.SetValue("")
			m.input.Blur()
			m.adding = false
			return m, nil
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Event):
		if !m.started {
			return m, nil
		}
		return m, reselectCmd(m.ctx, m.sess)

	case key.Matches(msg, m.keys.Refresh):
		return m, refreshEventsCmd(m.ctx, m.sess)

	case key.Matches(msg, m.keys.NewOrder):
		o, err := m.sess.NewOrder()
		if err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.err = ""
		m.status = o.Name + " opened"
		return m, nil

	case key.Matches(msg, m.keys.AddLine):
		if _, ok := m.sess.CurrentOrder(); !ok {
			m.err = "no open order"
			return m, nil
		}
		m.adding = true
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Pay):
		o, ok := m.sess.CurrentOrder()
		if !ok {
			m.err = "no open order"
			return m, nil
		}
		paid, err := m.sess.MarkPaid(m.ctx, o.UID)
		if err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.err = ""
		m.status = paid.Name + " paid " + paid.Total().StringFixed(2)
		return m, nil
	}
	return m, nil
}

func (m *Model) addLine(text string) {
	line, err := parseLine(text)
	if err != nil {
		m.err = err.Error()
		return
	}
	o, ok := m.sess.CurrentOrder()
	if !ok {
		m.err = "no open order"
		return
	}
	if _, err := m.sess.AddLine(o.UID, line); err != nil {
		m.err = err.Error()
		return
	}
	m.err = ""
}

// parseLine reads "<product> <qty> <price>". The product may contain spaces.
func parseLine(text string) (models.OrderLine, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return models.OrderLine{}, fmt.Errorf("%w: expected product, quantity and price", session.ErrInvalidLine)
	}
	n := len(fields)
	return session.NewLine(strings.Join(fields[:n-2], " "), fields[n-2], fields[n-1])
}

// --- View ---

func (m Model) View() string {
	if m.picker != nil {
		return m.picker.View()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(DimStyle.Render(" " + m.sess.Tooltip()))
	b.WriteString("\n\n")

	if !m.started {
		b.WriteString(" " + m.spinner.View() + " loading events")
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderOrder())
	b.WriteString("\n")

	if m.adding {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader() string {
	title := HeaderStyle.Render("ATTENDIFY POS")
	if name := m.sess.ConfigName(); name != "" {
		title += DimStyle.Render(" · " + name)
	}

	var badge string
	if m.sess.CurrentEvent() != nil {
		badge = EventStyle.Render(m.sess.CurrentLabel())
	} else {
		badge = EventNoneStyle.Render(m.sess.CurrentLabel())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", badge)
}

func (m Model) renderOrder() string {
	o, ok := m.sess.CurrentOrder()
	if !ok {
		return PanelStyle.Render(DimStyle.Render("no open order"))
	}

	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render(o.Name))
	b.WriteString("\n")
	for _, l := range o.Lines {
		b.WriteString(fmt.Sprintf("%s x %-20s %8s\n", l.Qty.String(), l.Product, l.Subtotal().StringFixed(2)))
	}
	b.WriteString(TotalStyle.Render("Total " + o.Total().StringFixed(2)))
	return PanelStyle.Render(b.String())
}

func (m Model) renderStatusBar() string {
	if m.err != "" {
		return StatusBarStyle.Render(ErrorStyle.Render(m.err))
	}
	if m.status != "" {
		return StatusBarStyle.Render(SuccessStyle.Render(m.status))
	}
	return ""
}
