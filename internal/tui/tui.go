// Package tui implements a live terminal monitor for the cached access token.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jonandersen/tokenctl/internal/auth"
)

// TokenSource is the part of the coordinator the monitor drives.
type TokenSource interface {
	GetOrCreateAccessToken(ctx context.Context) (*auth.Credential, error)
	GetAccessToken(ctx context.Context) (*auth.Credential, bool, error)
	RemoveAccessToken(ctx context.Context) error
	StaleMargin() time.Duration
}

// State is what the monitor currently knows about the token.
type State int

const (
	StateLoading State = iota
	StateEmpty
	StateLoaded
	StateError
)

const maxEvents = 50

// Model is the bubbletea model of the token monitor.
type Model struct {
	source TokenSource
	now    func() time.Time

	state     State
	cred      *auth.Credential
	err       error
	busy      bool
	autoRenew bool
	clock     time.Time

	events      []table.Row
	eventsTable table.Model

	width  int
	height int
	ready  bool

	tickInterval time.Duration
	timeout      time.Duration
}

// Option configures a Model.
type Option func(*Model)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		m.now = now
	}
}

// WithAutoRenew starts the monitor with automatic renewal of stale tokens.
func WithAutoRenew(enabled bool) Option {
	return func(m *Model) {
		m.autoRenew = enabled
	}
}

// New creates a monitor for source.
func New(source TokenSource, opts ...Option) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 10},
			{Title: "Event", Width: 12},
			{Title: "Detail", Width: 48},
		}),
		table.WithHeight(6),
	)
	t.SetStyles(eventTableStyles())

	m := Model{
		source:       source,
		now:          time.Now,
		state:        StateLoading,
		eventsTable:  t,
		tickInterval: time.Second,
		timeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.clock = m.now()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.peekCmd(), m.tickCmd())
}

// tickCmd returns a command that sends a tick message after the tick interval.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) peekCmd() tea.Cmd {
	source, timeout := m.source, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		cred, ok, err := source.GetAccessToken(ctx)
		if err != nil {
			return TokenErrorMsg{Op: "read", Err: err}
		}
		if !ok {
			return TokenLoadedMsg{Source: "cache"}
		}
		return TokenLoadedMsg{Cred: cred, Source: "cache"}
	}
}

func (m Model) getCmd(force bool) tea.Cmd {
	source, timeout := m.source, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if force {
			if err := source.RemoveAccessToken(ctx); err != nil {
				return TokenErrorMsg{Op: "clear", Err: err}
			}
		}
		cred, err := source.GetOrCreateAccessToken(ctx)
		if err != nil {
			return TokenErrorMsg{Op: "fetch", Err: err}
		}
		return TokenLoadedMsg{Cred: cred, Source: "coordinator"}
	}
}

func (m Model) clearCmd() tea.Cmd {
	source, timeout := m.source, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := source.RemoveAccessToken(ctx); err != nil {
			return TokenErrorMsg{Op: "clear", Err: err}
		}
		return TokenClearedMsg{}
	}
}

// Stale reports whether the displayed credential is within the margin.
func (m Model) Stale() bool {
	return m.cred != nil && m.cred.ExpiresWithin(m.clock, m.source.StaleMargin())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g", "enter":
			if !m.busy {
				m.busy = true
				cmds = append(cmds, m.getCmd(false))
			}
		case "r":
			if !m.busy {
				m.busy = true
				cmds = append(cmds, m.getCmd(true))
			}
		case "c":
			if !m.busy {
				m.busy = true
				cmds = append(cmds, m.clearCmd())
			}
		case "a":
			m.autoRenew = !m.autoRenew
			m.addEvent("auto-renew", onOff(m.autoRenew))
		default:
			var cmd tea.Cmd
			m.eventsTable, cmd = m.eventsTable.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		// Header, footer, token panel and padding
		tableHeight := m.height - 16
		if tableHeight < 3 {
			tableHeight = 3
		}
		m.eventsTable.SetHeight(tableHeight)

	case TokenLoadedMsg:
		m.busy = false
		m.err = nil
		if msg.Cred == nil {
			m.state = StateEmpty
			m.cred = nil
			break
		}
		renewed := m.cred == nil || m.cred.AccessToken != msg.Cred.AccessToken
		m.state = StateLoaded
		m.cred = msg.Cred
		if renewed && msg.Source == "coordinator" {
			m.addEvent("issued", fmt.Sprintf("expires %s", msg.Cred.ExpiresAt.Local().Format("15:04:05")))
		} else if msg.Source == "cache" {
			m.addEvent("cached", fmt.Sprintf("expires %s", msg.Cred.ExpiresAt.Local().Format("15:04:05")))
		}

	case TokenErrorMsg:
		m.busy = false
		m.state = StateError
		m.err = msg.Err
		m.addEvent(msg.Op+" failed", msg.Err.Error())

	case TokenClearedMsg:
		m.busy = false
		m.state = StateEmpty
		m.cred = nil
		m.addEvent("cleared", "cached token removed")

	case TickMsg:
		m.clock = time.Time(msg)
		if m.autoRenew && !m.busy && (m.state == StateEmpty || m.Stale()) {
			m.busy = true
			cmds = append(cmds, m.getCmd(false))
		}
		cmds = append(cmds, m.tickCmd())
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) addEvent(event, detail string) {
	row := table.Row{m.clock.Local().Format("15:04:05"), event, detail}
	m.events = append([]table.Row{row}, m.events...)
	if len(m.events) > maxEvents {
		m.events = m.events[:maxEvents]
	}
	m.eventsTable.SetRows(m.events)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	content := panelStyle.Render(m.renderToken() + "\n\n" + m.eventsTable.View())

	// Pad content to fill available space
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	contentLines := strings.Split(content, "\n")
	for len(contentLines) < contentHeight {
		contentLines = append(contentLines, "")
	}
	if contentHeight > 0 && len(contentLines) > contentHeight {
		contentLines = contentLines[:contentHeight]
	}

	return header + "\n" + strings.Join(contentLines, "\n") + "\n" + footer
}

// renderHeader renders the header bar.
func (m Model) renderHeader() string {
	title := titleStyle.Render("tokenctl")
	status := hintStyle.Render(fmt.Sprintf("auto-renew %s", onOff(m.autoRenew)))
	headerContent := title + "  " + status

	// Pad to full width
	if padding := m.width - lipgloss.Width(headerContent); padding > 0 {
		headerContent += strings.Repeat(" ", padding)
	}

	return bar(headerContent, m.width)
}

func (m Model) renderToken() string {
	switch m.state {
	case StateLoading:
		return "Loading token..."
	case StateEmpty:
		return hintStyle.Render("No cached token. Press g to fetch one.")
	case StateError:
		msg := errStyle.Render("Error: " + m.err.Error())
		if m.cred == nil {
			return msg
		}
		return msg + "\n\n" + m.renderCredential()
	}
	return m.renderCredential()
}

func (m Model) renderCredential() string {
	status := statusBadge(m.Stale())

	remaining := m.cred.ExpiresAt.Sub(m.clock).Truncate(time.Second)
	if remaining < 0 {
		remaining = 0
	}

	scope := strings.Join(m.cred.Scope, " ")
	if scope == "" {
		scope = "-"
	}

	rows := []struct{ label, value string }{
		{"Status", status},
		{"Type", valueStyle.Render(m.cred.TokenType)},
		{"Expires At", valueStyle.Render(m.cred.ExpiresAt.Local().Format(time.RFC1123))},
		{"Remaining", valueStyle.Render(remaining.String())},
		{"Margin", valueStyle.Render(m.source.StaleMargin().String())},
		{"Scope", valueStyle.Render(scope)},
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fieldStyle.Render(r.label)+r.value)
	}
	return strings.Join(lines, "\n")
}

// renderFooter renders the footer bar with key hints.
func (m Model) renderFooter() string {
	keys := []struct {
		key  string
		desc string
	}{
		{"g", "get"},
		{"r", "force refresh"},
		{"c", "clear"},
		{"a", "auto-renew"},
		{"q", "quit"},
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts, keyStyle.Render(k.key)+" "+hintStyle.Render(k.desc))
	}
	footerContent := strings.Join(parts, "  •  ")

	if padding := m.width - lipgloss.Width(footerContent); padding > 0 {
		footerContent += strings.Repeat(" ", padding)
	}

	return bar(footerContent, m.width)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Run starts the monitor on the terminal and blocks until it exits.
func Run(source TokenSource, opts ...Option) error {
	p := tea.NewProgram(New(source, opts...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
