package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/eslint-node/internal/journal"
	"github.com/mattjoyce/eslint-node/internal/linter"
)

// RenderLint formats a lint report in the compact file:line:col style.
func RenderLint(r *linter.LintReport, theme Theme) string {
	if r.Skipped != "" {
		return theme.Dim.Render(fmt.Sprintf("%s: skipped (%s)", r.FilePath, r.Skipped)) + "\n"
	}
	if len(r.Messages) == 0 {
		return theme.StatusOK.Render(fmt.Sprintf("%s: no problems", r.FilePath)) + "\n"
	}

	var b strings.Builder
	b.WriteString(theme.Header.Render(r.FilePath))
	b.WriteString("\n")

	var errs, warns int
	for _, m := range r.Messages {
		start := m.Location.Position[0]
		sev := severityStyle(m.Severity, theme).Render(fmt.Sprintf("%-7s", m.Severity))
		switch m.Severity {
		case "error":
			errs++
		case "warning":
			warns++
		}
		// Positions are zero-based; people count from one.
		fmt.Fprintf(&b, "  %s %s  %s", theme.Dim.Render(fmt.Sprintf("%4d:%-3d", start[0]+1, start[1]+1)), sev, m.Excerpt)
		if len(m.Solutions) > 0 {
			b.WriteString(theme.Dim.Render(" (fixable)"))
		}
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("%d problem%s (%d error%s, %d warning%s)",
		len(r.Messages), plural(len(r.Messages)), errs, plural(errs), warns, plural(warns))
	style := theme.StatusWarning
	if errs > 0 {
		style = theme.StatusFailed
	}
	b.WriteString(style.Render(summary))
	b.WriteString("\n")
	return b.String()
}

// RenderFix formats a fix report.
func RenderFix(r *linter.FixReport, theme Theme) string {
	if r.Skipped != "" {
		return theme.Dim.Render(fmt.Sprintf("%s: skipped (%s)", r.FilePath, r.Skipped)) + "\n"
	}
	style := theme.StatusOK
	if r.FixCount == 0 {
		style = theme.Dim
	}
	return fmt.Sprintf("%s: %s\n", r.FilePath, style.Render(r.Message))
}

// RenderDebug formats a debug report one fact per line.
func RenderDebug(r *linter.DebugReport, theme Theme) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("eslint-node debug"))
	b.WriteString("\n")
	for _, line := range r.Lines() {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderHistory formats journal entries as a table, newest first.
func RenderHistory(entries []journal.Entry, theme Theme) string {
	if len(entries) == 0 {
		return theme.Dim.Render("no jobs recorded") + "\n"
	}

	var b strings.Builder
	header := fmt.Sprintf("%-19s  %-11s  %-20s  %8s  %s", "WHEN", "TYPE", "OUTCOME", "TOOK", "FILE")
	b.WriteString(theme.Header.Render(header))
	b.WriteString("\n")
	for _, e := range entries {
		outcome := e.Outcome
		if e.Type == "fix" && e.FixCount != nil {
			outcome = fmt.Sprintf("%s (%d fixed)", e.Outcome, *e.FixCount)
		} else if e.Type == "lint" && e.Outcome == journal.OutcomeOK {
			outcome = fmt.Sprintf("%s (%d msgs)", e.Outcome, e.MessageCount)
		}
		style := theme.StatusOK
		if e.Outcome != journal.OutcomeOK {
			style = theme.StatusFailed
		}
		fmt.Fprintf(&b, "%-19s  %-11s  %s  %8s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Type,
			style.Render(fmt.Sprintf("%-20s", outcome)),
			e.Duration.Round(time.Millisecond),
			e.FilePath,
		)
	}
	return b.String()
}

func severityStyle(severity string, theme Theme) lipgloss.Style {
	switch severity {
	case "error":
		return theme.StatusFailed
	case "warning":
		return theme.StatusWarning
	default:
		return theme.Dim
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
