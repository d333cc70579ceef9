package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/eslint-node/internal/api"
	"github.com/mattjoyce/eslint-node/internal/events"
)

type eventMsg events.Event

type healthMsg api.HealthzResponse

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{ err error }

type reconnectMsg struct{}

// subscribeToEvents streams /v1/events into ch, resuming after lastID.
// It returns sseDisconnectedMsg when the stream ends.
func subscribeToEvents(ctx context.Context, c *api.Client, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		err := c.Stream(ctx, lastID, nil, func(ev events.Event) error {
			select {
			case ch <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		return sseDisconnectedMsg{err: err}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchHealth queries /healthz.
func fetchHealth(ctx context.Context, c *api.Client) tea.Msg {
	h, err := c.Health(ctx)
	if err != nil {
		return errMsg(err)
	}
	return healthMsg(*h)
}
