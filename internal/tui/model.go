package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/eslint-node/internal/api"
	"github.com/mattjoyce/eslint-node/internal/events"
)

const maxEventLog = 50

// Model is the BubbleTea model for the monitor.
type Model struct {
	ctx    context.Context
	client *api.Client

	width  int
	height int

	health   HealthState
	worker   WorkerState
	jobs     JobBoard
	eventLog []events.Event
	lastID   int64

	ticker  Ticker
	spinner Spinner
	theme   Theme
	now     func() time.Time

	hubEvents chan events.Event

	lastError string
}

// NewMonitor creates a monitor for the daemon behind c. Streaming stops
// when ctx is done.
func NewMonitor(ctx context.Context, c *api.Client) *Model {
	return &Model{
		ctx:       ctx,
		client:    c,
		jobs:      newJobBoard(),
		eventLog:  make([]events.Event, 0, maxEventLog),
		hubEvents: make(chan events.Event, 100),
		ticker:    NewTicker(),
		theme:     NewDefaultTheme(),
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.ctx, m.client, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.ctx, m.client) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.ticker.Tick()
		m.spinner.Decay(m.now())
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		if e.ID > m.lastID {
			m.lastID = e.ID
		}

		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}

		m.spinner.OnEvent(m.now())
		m.jobs.apply(e)
		m.worker.apply(e)

		m.health.Connected = true
		m.lastError = ""

		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.InstanceID = msg.InstanceID
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.PendingJobs = msg.PendingJobs
		m.health.Connected = true
		m.health.LastCheck = m.now()
		// Health is authoritative for the current worker; events fill in history.
		m.worker.State = msg.WorkerState
		m.worker.PID = msg.WorkerPid
		m.worker.Inactive = msg.Inactive
		m.lastError = ""

		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.ctx, m.client)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		if msg.err != nil {
			m.lastError = fmt.Sprintf("event stream: %v, reconnecting...", msg.err)
		}
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.ctx, m.client, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.ctx, m.client)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to eslint-node daemon..."
	}
	now := m.now()

	header := renderHeader(m.health, m.ticker, m.spinner, m.theme, m.width, now)
	worker := renderWorker(m.worker, m.theme, m.width)
	jobs := renderJobs(m.jobs, m.theme, m.width, now)
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit")

	parts := []string{header, worker, jobs, eventStream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
