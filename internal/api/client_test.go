package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/eslint-node/internal/events"
	"github.com/mattjoyce/eslint-node/internal/jobmanager"
	"github.com/mattjoyce/eslint-node/internal/journal"
	"github.com/mattjoyce/eslint-node/internal/linter"
)

func startDaemon(t *testing.T, cfg Config, deps Deps) *Client {
	t.Helper()
	if deps.Linter == nil {
		deps.Linter = &fakeLinter{}
	}
	ts := httptest.NewServer(New(cfg, deps, nil).Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, cfg.Token)
}

func TestNewClient_BaseURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:7766", NewClient("127.0.0.1:7766", "").BaseURL)
	assert.Equal(t, "https://lint.local", NewClient("https://lint.local/", "").BaseURL)
}

func TestClient_RoundTrip(t *testing.T) {
	fl := &fakeLinter{
		fixFn: func(req linter.Request) (*linter.FixReport, error) {
			return &linter.FixReport{FilePath: req.FilePath, FixCount: 3, Message: "Applied 3 fixes."}, nil
		},
	}
	hist := &fakeHistory{entries: []journal.Entry{{ID: "e1", Key: "k", Type: "lint", Outcome: "ok"}}}
	c := startDaemon(t, Config{Token: "tok"}, Deps{
		Linter:  fl,
		Worker:  fakeWorker{state: jobmanager.StateStarting},
		History: hist,
	})
	ctx := context.Background()

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "starting", health.WorkerState)

	contents := "var a = 1"
	lint, err := c.Lint(ctx, linter.Request{FilePath: "/p/a.js", Contents: &contents})
	require.NoError(t, err)
	assert.Equal(t, "/p/a.js", lint.FilePath)
	reqs := fl.seen()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Contents)
	assert.Equal(t, contents, *reqs[0].Contents)

	fix, err := c.Fix(ctx, linter.Request{FilePath: "/p/a.js"})
	require.NoError(t, err)
	assert.Equal(t, 3, fix.FixCount)
	assert.Equal(t, "Applied 3 fixes.", fix.Message)

	dbg, err := c.Debug(ctx, linter.Request{FilePath: "/p/a.js"})
	require.NoError(t, err)
	assert.Equal(t, "8.57.0", dbg.EslintVersion)

	require.NoError(t, c.ClearCache(ctx))
	assert.Equal(t, 1, fl.clearCount())

	entries, err := c.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 10, hist.lastLimit())
}

func TestClient_Errors(t *testing.T) {
	fl := &fakeLinter{
		lintFn: func(linter.Request) (*linter.LintReport, error) {
			return nil, &jobmanager.JobError{Kind: jobmanager.KindIncompatibleVersion, Message: "old", Version: "6.8.0"}
		},
	}
	c := startDaemon(t, Config{}, Deps{Linter: fl})

	_, err := c.Lint(context.Background(), linter.Request{FilePath: "/a.js"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "incompatible-version", apiErr.Kind)
	assert.Equal(t, "6.8.0", apiErr.Version)
	assert.Contains(t, apiErr.Error(), "incompatible-version")

	// Wrong token.
	c = startDaemon(t, Config{Token: "right"}, Deps{})
	c.Token = "wrong"
	err = c.ClearCache(context.Background())
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"id: 1",
		"event: worker.ready",
		`data: {"pid":12}`,
		"",
		"id: 2",
		"event: job.sent",
		`data: {"key":"k"}`,
		"",
	}, "\n")

	var got []events.Event
	err := ReadSSE(strings.NewReader(stream), func(ev events.Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "worker.ready", got[0].Type)
	assert.JSONEq(t, `{"pid":12}`, string(got[0].Data))
	assert.Equal(t, "job.sent", got[1].Type)

	stop := errors.New("stop")
	err = ReadSSE(strings.NewReader(stream), func(events.Event) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestClient_StreamEvents(t *testing.T) {
	hub := events.NewHub(16)
	hub.Publish(events.TypeWorkerReady, events.WorkerEvent{PID: 1, State: "ready"})
	hub.Publish(events.TypeJobSent, events.JobEvent{Key: "old", Type: "lint"})
	c := startDaemon(t, Config{}, Deps{Events: hub})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan events.Event, 8)
	done := make(chan error, 1)
	go func() {
		// Skip the first buffered event.
		done <- c.Stream(ctx, 1, nil, func(ev events.Event) error {
			got <- ev
			return nil
		})
	}()

	first := <-got
	assert.Equal(t, events.TypeJobSent, first.Type)
	assert.Equal(t, int64(2), first.ID)

	hub.Publish(events.TypeJobCompleted, events.JobEvent{Key: "new", Type: "lint"})
	select {
	case ev := <-got:
		assert.Equal(t, events.TypeJobCompleted, ev.Type)
		assert.Contains(t, string(ev.Data), `"new"`)
	case <-time.After(3 * time.Second):
		t.Fatal("live event not streamed")
	}

	cancel()
	<-done
}

func TestClient_StreamFiltered(t *testing.T) {
	hub := events.NewHub(16)
	hub.Publish(events.TypeWorkerReady, events.WorkerEvent{PID: 1, State: "ready"})
	hub.Publish(events.TypeJobSent, events.JobEvent{Key: "k1", Type: "lint"})
	c := startDaemon(t, Config{}, Deps{Events: hub})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan events.Event, 8)
	done := make(chan error, 1)
	go func() {
		done <- c.Stream(ctx, 0, events.Filter{"worker"}, func(ev events.Event) error {
			got <- ev
			return nil
		})
	}()

	first := <-got
	assert.Equal(t, events.TypeWorkerReady, first.Type)

	hub.Publish(events.TypeJobCompleted, events.JobEvent{Key: "k1", Type: "lint"})
	hub.Publish(events.TypeWorkerExited, events.WorkerEvent{PID: 1, State: "absent"})
	select {
	case ev := <-got:
		assert.Equal(t, events.TypeWorkerExited, ev.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("filtered event not streamed")
	}

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, health.EventSubscribers)

	cancel()
	<-done
}
