package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("39")
	muted  = lipgloss.Color("241")
	barBg  = lipgloss.Color("236")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Background(barBg).Padding(0, 1)
	panelStyle = lipgloss.NewStyle().Padding(1, 2)
	hintStyle  = lipgloss.NewStyle().Foreground(muted)
	keyStyle   = lipgloss.NewStyle().Foreground(accent).Bold(true)
	fieldStyle = lipgloss.NewStyle().Foreground(muted).Width(14)
	valueStyle = lipgloss.NewStyle().Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	freshStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	staleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
)

func statusBadge(stale bool) string {
	if stale {
		return staleStyle.Render("stale")
	}
	return freshStyle.Render("fresh")
}

// bar renders content as a full-width header or footer line.
func bar(content string, width int) string {
	return lipgloss.NewStyle().Background(barBg).Width(width).Render(content)
}

func eventTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	return s
}
