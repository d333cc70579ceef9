package events

import "time"

// Event types published by the job manager and the linter service.
const (
	TypeWorkerStarting = "worker.starting"
	TypeWorkerReady    = "worker.ready"
	TypeWorkerFailed   = "worker.failed"
	TypeWorkerExited   = "worker.exited"
	TypeWorkerSuspend  = "worker.suspended"

	TypeJobSent      = "job.sent"
	TypeJobCompleted = "job.completed"
	TypeJobFailed    = "job.failed"

	TypeUnknownError = "worker.unknown_error"
	TypeLinterSleep  = "linter.sleep"
	TypeLinterWake   = "linter.wake"
	TypeCacheCleared = "linter.cache_cleared"
	TypeNotification = "linter.notification"
)

// WorkerEvent describes a worker lifecycle transition.
type WorkerEvent struct {
	PID        int    `json:"pid,omitempty"`
	Generation int    `json:"generation"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
}

// JobEvent describes a job as it passes through the job manager.
type JobEvent struct {
	Key       string        `json:"key"`
	Type      string        `json:"type"`
	FilePath  string        `json:"file_path,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
}

// LinterEvent describes a change in the linter service's activity.
type LinterEvent struct {
	Reason string `json:"reason,omitempty"`
}

// NotificationEvent mirrors a user-facing notification.
type NotificationEvent struct {
	Level       string `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
