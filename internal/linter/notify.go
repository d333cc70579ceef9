package linter

import (
	"log/slog"

	"github.com/mattjoyce/eslint-node/internal/log"
)

// Level is the severity of a Notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a message meant for a person rather than a log file.
type Notification struct {
	Level       Level  `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Notifier delivers notifications to whatever surface the caller has.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = log.WithComponent("notify")
	}
	args := []any{"title", n.Title}
	if n.Description != "" {
		args = append(args, "description", n.Description)
	}
	switch n.Level {
	case LevelError:
		logger.Error("notification", args...)
	case LevelWarning:
		logger.Warn("notification", args...)
	default:
		logger.Info("notification", args...)
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }
