package tui

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/eslint-node/internal/api"
	"github.com/mattjoyce/eslint-node/internal/events"
)

func event(t *testing.T, id int64, typ string, data any) events.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return events.Event{ID: id, Type: typ, At: time.Unix(1700000000, 0), Data: raw}
}

func newTestModel() Model {
	m := NewMonitor(context.Background(), api.NewClient("127.0.0.1:1", ""))
	m.theme = PlainTheme()
	m.now = func() time.Time { return time.Unix(1700000005, 0) }
	return *m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestJobBoard(t *testing.T) {
	b := newJobBoard()
	b.apply(event(t, 1, events.TypeJobSent, events.JobEvent{Key: "k1", Type: "lint", FilePath: "/p/a.js"}))
	b.apply(event(t, 2, events.TypeJobSent, events.JobEvent{Key: "k2", Type: "fix", FilePath: "/p/b.js"}))
	require.Len(t, b.Active, 2)

	b.apply(event(t, 3, events.TypeJobCompleted, events.JobEvent{Key: "k1", Type: "lint", Duration: 40 * time.Millisecond}))
	b.apply(event(t, 4, events.TypeJobFailed, events.JobEvent{Key: "k2", Type: "fix", ErrorKind: "killed", Error: "worker killed"}))

	assert.Empty(t, b.Active)
	require.Len(t, b.Recent, 2)
	assert.Equal(t, "k2", b.Recent[0].Key)
	assert.Equal(t, "killed", b.Recent[0].ErrorKind)
	assert.Equal(t, "/p/b.js", b.Recent[0].FilePath)
	assert.Equal(t, "ok", b.Recent[1].Status)
	assert.Equal(t, 1, b.OK)
	assert.Equal(t, 1, b.Failed)

	// Non-job events and keyless payloads are ignored.
	b.apply(event(t, 5, events.TypeWorkerReady, events.WorkerEvent{PID: 1}))
	b.apply(event(t, 6, events.TypeJobSent, events.JobEvent{Type: "lint"}))
	assert.Empty(t, b.Active)
}

func TestJobBoard_RecentIsBounded(t *testing.T) {
	b := newJobBoard()
	for i := 0; i < maxRecentJobs+5; i++ {
		b.apply(event(t, int64(i), events.TypeJobCompleted, events.JobEvent{Key: string(rune('a' + i)), Type: "lint"}))
	}
	assert.Len(t, b.Recent, maxRecentJobs)
}

func TestWorkerState(t *testing.T) {
	var w WorkerState
	w.apply(event(t, 1, events.TypeWorkerStarting, events.WorkerEvent{State: "starting"}))
	assert.Equal(t, "starting", w.State)

	w.apply(event(t, 2, events.TypeWorkerReady, events.WorkerEvent{PID: 99, Generation: 1, State: "ready"}))
	assert.Equal(t, 99, w.PID)
	assert.Equal(t, 1, w.Spawns)

	w.apply(event(t, 3, events.TypeWorkerExited, events.WorkerEvent{PID: 99, Generation: 1, State: "absent", Error: "signal: killed"}))
	assert.Equal(t, 0, w.PID)
	assert.Equal(t, 1, w.Exits)
	assert.Equal(t, "signal: killed", w.LastError)

	w.apply(event(t, 4, events.TypeLinterSleep, events.LinterEvent{Reason: "no-project"}))
	assert.True(t, w.Inactive)
	assert.Equal(t, "no-project", w.SleepReason)

	w.apply(event(t, 5, events.TypeLinterWake, events.LinterEvent{}))
	assert.False(t, w.Inactive)

	w.apply(event(t, 6, events.TypeUnknownError, map[string]string{"error": "boom"}))
	assert.Equal(t, 1, w.Unknown)
}

func TestModel_Update(t *testing.T) {
	m := newTestModel()

	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, eventMsg(event(t, 7, events.TypeJobSent, events.JobEvent{Key: "abcdef123456", Type: "lint", FilePath: "/p/a.js"})))
	assert.Equal(t, int64(7), m.lastID)
	assert.True(t, m.health.Connected)
	require.Len(t, m.eventLog, 1)

	m = update(t, m, healthMsg(api.HealthzResponse{Status: "ok", WorkerState: "ready", WorkerPid: 55, PendingJobs: 1}))
	assert.Equal(t, 55, m.worker.PID)
	assert.Equal(t, 1, m.health.PendingJobs)

	view := m.View()
	assert.Contains(t, view, "ESLINT-NODE MONITOR")
	assert.Contains(t, view, "WORKER")
	assert.Contains(t, view, "job.sent")
	assert.Contains(t, view, "[abcdef12]")

	m = update(t, m, sseDisconnectedMsg{})
	assert.False(t, m.health.Connected)
	assert.Contains(t, m.lastError, "reconnecting")

	// Older IDs never move the resume point backwards.
	m = update(t, m, eventMsg(event(t, 3, events.TypeLinterWake, events.LinterEvent{})))
	assert.Equal(t, int64(7), m.lastID)
}

func TestModel_ViewBeforeResize(t *testing.T) {
	m := newTestModel()
	assert.Contains(t, m.View(), "Connecting")
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "-", shortPath("", 10))
	assert.Equal(t, "/a/b.js", shortPath("/a/b.js", 10))
	assert.Equal(t, "…/deep/file.js", shortPath("/very/long/path/to/deep/file.js", 14))
}
