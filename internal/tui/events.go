package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/eslint-node/internal/events"
)

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 10 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Local().Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case events.TypeJobCompleted, events.TypeWorkerReady:
		typeStyle = theme.StatusOK
	case events.TypeJobFailed, events.TypeWorkerFailed, events.TypeUnknownError:
		typeStyle = theme.StatusFailed
	case events.TypeJobSent, events.TypeWorkerStarting:
		typeStyle = theme.StatusRunning
	case events.TypeLinterSleep, events.TypeNotification:
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.Dim
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-22s", e.Type))
	return fmt.Sprintf("%s %s %s", ts, typeName, describeEvent(e))
}

// describeEvent picks the few payload fields worth a glance.
func describeEvent(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string
	if key, ok := data["key"].(string); ok {
		parts = append(parts, fmt.Sprintf("[%s]", shortKey(key)))
	}
	if typ, ok := data["type"].(string); ok {
		parts = append(parts, typ)
	}
	if path, ok := data["file_path"].(string); ok && path != "" {
		parts = append(parts, shortPath(path, 40))
	}
	if pid, ok := data["pid"].(float64); ok {
		parts = append(parts, fmt.Sprintf("pid=%d", int(pid)))
	}
	if kind, ok := data["error_kind"].(string); ok {
		parts = append(parts, kind)
	}
	if title, ok := data["title"].(string); ok {
		parts = append(parts, title)
	}
	if reason, ok := data["reason"].(string); ok && reason != "" {
		parts = append(parts, reason)
	}
	if msg, ok := data["error"].(string); ok && len(parts) == 0 {
		parts = append(parts, firstLine(msg))
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if raw == "{}" {
			return ""
		}
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
