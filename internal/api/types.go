package api

import "github.com/mattjoyce/eslint-node/internal/journal"

// ErrorResponse is returned on errors. Kind carries the job error type when
// the worker reported one.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Version string `json:"version,omitempty"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	InstanceID    string `json:"instance_id,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	WorkerState   string `json:"worker_state"`
	WorkerPid     int    `json:"worker_pid,omitempty"`
	PendingJobs   int    `json:"pending_jobs"`
	Inactive      bool   `json:"inactive"`
	// EventSubscribers and DroppedEvents describe the /v1/events fan-out.
	EventSubscribers int   `json:"event_subscribers"`
	DroppedEvents    int64 `json:"dropped_events"`
}

// ClearCacheResponse is returned by POST /v1/cache/clear.
type ClearCacheResponse struct {
	Cleared bool `json:"cleared"`
}

// HistoryResponse is returned by GET /v1/history.
type HistoryResponse struct {
	Entries []journal.Entry `json:"entries"`
}
