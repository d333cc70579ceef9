package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub(4)
	ch, cancel := h.Subscribe(nil)
	defer cancel()

	h.Publish(TypeJobSent, JobEvent{Key: "k1", Type: "lint"})

	select {
	case ev := <-ch:
		assert.Equal(t, TypeJobSent, ev.Type)
		assert.Equal(t, int64(1), ev.ID)
		var payload JobEvent
		require.NoError(t, json.Unmarshal(ev.Data, &payload))
		assert.Equal(t, "k1", payload.Key)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestHubBacklog(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish(TypeWorkerReady, WorkerEvent{Generation: i})
	}

	all := h.SnapshotSince(0)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ID)
	assert.Equal(t, int64(5), all[2].ID)

	since := h.SnapshotSince(4)
	require.Len(t, since, 1)
	assert.Equal(t, int64(5), since[0].ID)

	assert.Empty(t, h.SnapshotSince(5))
}

func TestFilter(t *testing.T) {
	tests := []struct {
		filter string
		typ    string
		want   bool
	}{
		{"", TypeJobFailed, true},
		{"job", TypeJobFailed, true},
		{"job", TypeWorkerReady, false},
		{"job.failed", TypeJobFailed, true},
		{"job.failed", TypeJobSent, false},
		{"worker, linter", TypeLinterWake, true},
		{"work", TypeWorkerReady, false},
	}
	for _, tt := range tests {
		t.Run(tt.filter+"/"+tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFilter(tt.filter).Match(tt.typ))
		})
	}
}

func TestHubSubscribeFilter(t *testing.T) {
	h := NewHub(8)
	ch, cancel := h.Subscribe(Filter{"worker"})
	defer cancel()

	h.Publish(TypeJobSent, JobEvent{Key: "k"})
	h.Publish(TypeWorkerReady, WorkerEvent{PID: 7})

	select {
	case ev := <-ch:
		assert.Equal(t, TypeWorkerReady, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(1)
	_, cancel := h.Subscribe(nil)
	defer cancel()

	for i := 0; i < subscriberBuffer+3; i++ {
		h.Publish(TypeJobSent, nil)
	}
	assert.Equal(t, int64(3), h.Dropped())
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe(nil)
	assert.Equal(t, 1, h.Subscribers())
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
}

func TestNilHubPublish(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(TypeJobSent, nil) })
}

func TestEventMarshalsRawPayload(t *testing.T) {
	h := NewHub(1)
	h.Publish(TypeLinterSleep, LinterEvent{Reason: "no-project"})
	data, err := json.Marshal(h.SnapshotSince(0)[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data":{"reason":"no-project"}`)
}
