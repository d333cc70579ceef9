package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/eslint-node/internal/events"
)

const maxRecentJobs = 20

// JobState tracks one job seen on the event stream.
type JobState struct {
	Key       string
	Type      string
	FilePath  string
	Status    string
	ErrorKind string
	Error     string
	StartTime time.Time
	Duration  time.Duration
}

// JobBoard holds in-flight jobs and the most recent finished ones.
type JobBoard struct {
	Active map[string]*JobState
	Recent []*JobState
	OK     int
	Failed int
}

func newJobBoard() JobBoard {
	return JobBoard{Active: make(map[string]*JobState)}
}

// apply folds a job event into the board. Other events are ignored.
func (b *JobBoard) apply(e events.Event) {
	switch e.Type {
	case events.TypeJobSent, events.TypeJobCompleted, events.TypeJobFailed:
	default:
		return
	}

	var je events.JobEvent
	if err := json.Unmarshal(e.Data, &je); err != nil || je.Key == "" {
		return
	}

	if e.Type == events.TypeJobSent {
		b.Active[je.Key] = &JobState{
			Key:       je.Key,
			Type:      je.Type,
			FilePath:  je.FilePath,
			Status:    "running",
			StartTime: e.At,
		}
		return
	}

	job, ok := b.Active[je.Key]
	if !ok {
		job = &JobState{Key: je.Key, Type: je.Type, FilePath: je.FilePath}
	}
	delete(b.Active, je.Key)

	job.Duration = je.Duration
	if e.Type == events.TypeJobCompleted {
		job.Status = "ok"
		b.OK++
	} else {
		job.Status = "failed"
		job.ErrorKind = je.ErrorKind
		job.Error = je.Error
		b.Failed++
	}

	b.Recent = append([]*JobState{job}, b.Recent...)
	if len(b.Recent) > maxRecentJobs {
		b.Recent = b.Recent[:maxRecentJobs]
	}
}

func (b JobBoard) activeKeys() []string {
	keys := make([]string, 0, len(b.Active))
	for k := range b.Active {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return b.Active[keys[i]].StartTime.Before(b.Active[keys[j]].StartTime)
	})
	return keys
}

func renderJobs(b JobBoard, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	title := theme.Title.Render(fmt.Sprintf("JOBS  %s %d  %s %d",
		theme.StatusOK.Render("ok"), b.OK,
		theme.StatusFailed.Render("failed"), b.Failed,
	))

	var lines []string
	for _, key := range b.activeKeys() {
		job := b.Active[key]
		lines = append(lines, fmt.Sprintf(" %s %-6s %s %s",
			theme.StatusRunning.Render("▶"),
			job.Type,
			shortPath(job.FilePath, 40),
			theme.Dim.Render(now.Sub(job.StartTime).Round(time.Millisecond).String()),
		))
	}
	if len(lines) == 0 {
		lines = append(lines, theme.Dim.Render("  No jobs in flight"))
	}

	parts := append([]string{title}, lines...)
	if len(b.Recent) > 0 {
		parts = append(parts, "", recentTable(b.Recent, innerWidth).View())
	}

	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func recentTable(recent []*JobState, width int) table.Model {
	pathWidth := width - 8 - 10 - 22 - 10
	if pathWidth < 16 {
		pathWidth = 16
	}
	columns := []table.Column{
		{Title: "Key", Width: 8},
		{Title: "Type", Width: 10},
		{Title: "File", Width: pathWidth},
		{Title: "Outcome", Width: 22},
		{Title: "Took", Width: 10},
	}

	rows := make([]table.Row, 0, len(recent))
	for _, job := range recent {
		outcome := job.Status
		if job.ErrorKind != "" {
			outcome = job.ErrorKind
		}
		rows = append(rows, table.Row{
			shortKey(job.Key),
			job.Type,
			shortPath(job.FilePath, pathWidth),
			outcome,
			job.Duration.Round(time.Millisecond).String(),
		})
	}

	height := len(rows) + 1
	if height > 11 {
		height = 11
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(height),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Selected = styles.Cell
	t.SetStyles(styles)
	return t
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

// shortPath keeps the tail of a path within max runes.
func shortPath(p string, max int) string {
	if p == "" {
		return "-"
	}
	r := []rune(p)
	if len(r) <= max || max < 2 {
		return p
	}
	return "…" + string(r[len(r)-max+1:])
}
