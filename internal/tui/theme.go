// Package tui renders daemon state for people: a live monitor of the event
// stream and styled text for command results.
package tui

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the monitor and result rendering.
type Theme struct {
	StatusOK      lipgloss.Style
	StatusRunning lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusWarning lipgloss.Style
	StatusIdle    lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		StatusWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		StatusIdle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		TickerActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		TickerInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}

// PlainTheme renders without colors, for pipes and tests.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		StatusOK:       plain,
		StatusRunning:  plain,
		StatusFailed:   plain,
		StatusWarning:  plain,
		StatusIdle:     plain,
		Border:         plain,
		Title:          plain,
		Header:         plain,
		Dim:            plain,
		Highlight:      plain,
		TickerActive:   plain,
		TickerInactive: plain,
	}
}
