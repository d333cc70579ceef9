package tui

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/eslint-node/internal/events"
)

// WorkerState tracks the worker process and the linter service from events.
type WorkerState struct {
	PID        int
	Generation int
	State      string
	LastError  string
	Spawns     int
	Exits      int
	LastChange time.Time

	Inactive    bool
	SleepReason string
	// Unknown counts keyless worker errors.
	Unknown int
}

// apply folds worker and linter events into the state.
func (w *WorkerState) apply(e events.Event) {
	switch e.Type {
	case events.TypeWorkerStarting, events.TypeWorkerReady, events.TypeWorkerFailed,
		events.TypeWorkerExited, events.TypeWorkerSuspend:
		var we events.WorkerEvent
		if err := json.Unmarshal(e.Data, &we); err != nil {
			return
		}
		w.State = we.State
		w.LastChange = e.At
		if we.Generation > 0 {
			w.Generation = we.Generation
		}
		switch e.Type {
		case events.TypeWorkerReady:
			w.PID = we.PID
			w.Spawns++
			w.LastError = ""
		case events.TypeWorkerFailed:
			w.PID = 0
			w.LastError = we.Error
		case events.TypeWorkerExited, events.TypeWorkerSuspend:
			w.PID = 0
			w.Exits++
			if we.Error != "" {
				w.LastError = we.Error
			}
		}

	case events.TypeLinterSleep:
		var le events.LinterEvent
		_ = json.Unmarshal(e.Data, &le)
		w.Inactive = true
		w.SleepReason = le.Reason

	case events.TypeLinterWake:
		w.Inactive = false
		w.SleepReason = ""

	case events.TypeUnknownError:
		w.Unknown++
	}
}

func renderWorker(w WorkerState, theme Theme, width int) string {
	innerWidth := width - 4

	state := w.State
	if state == "" {
		state = "absent"
	}
	var stateStr string
	switch state {
	case "ready":
		stateStr = theme.StatusOK.Render("[ready]")
	case "starting", "suspending":
		stateStr = theme.StatusRunning.Render("[" + state + "]")
	default:
		stateStr = theme.StatusIdle.Render("[" + state + "]")
	}

	pid := "-"
	if w.PID > 0 {
		pid = fmt.Sprintf("%d", w.PID)
	}

	line := fmt.Sprintf(" Worker %s  pid %s  gen %d  spawns %d  exits %d",
		stateStr, pid, w.Generation, w.Spawns, w.Exits)

	linter := theme.StatusOK.Render("active")
	if w.Inactive {
		linter = theme.StatusWarning.Render("sleeping")
		if w.SleepReason != "" {
			linter += theme.Dim.Render(" (" + w.SleepReason + ")")
		}
	}
	linterLine := fmt.Sprintf(" Linter %s  unknown errors %d", linter, w.Unknown)

	parts := []string{theme.Title.Render("WORKER"), line, linterLine}
	if w.LastError != "" {
		parts = append(parts, theme.StatusFailed.Render(" last error: "+firstLine(w.LastError)))
	}
	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
