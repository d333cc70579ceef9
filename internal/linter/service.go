// Package linter is the caller-facing command surface: lint, fix, debug and
// clear-cache, plus the policy that decides what each worker failure means
// to the person editing.
//
// The service can be asleep ("inactive"). It goes to sleep when a project
// is unlikely to need linting at all (no ESLint, an ESLint too old, no
// project, or an overlap with the legacy package) and the worker is
// suspended. Lint requests then return nothing without a round trip. Any
// project change, config change, or explicit fix/debug command wakes it; the
// worker is respawned on the next job.
package linter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/events"
	"github.com/mattjoyce/eslint-node/internal/jobmanager"
	"github.com/mattjoyce/eslint-node/internal/journal"
	"github.com/mattjoyce/eslint-node/internal/log"
	"github.com/mattjoyce/eslint-node/internal/nodebin"
	"github.com/mattjoyce/eslint-node/internal/protocol"
)

// Names reported by Debug for which package ends up linting a project.
const (
	PackageName       = "eslint-node"
	LegacyPackageName = "linter-eslint"
	NothingWillLint   = "(nothing)"
)

const suspendTimeout = 5 * time.Second

// ErrModified is returned by Fix for a buffer with unsaved changes.
var ErrModified = errors.New("buffer has unsaved changes")

// Jobs is the part of the job manager the service drives.
type Jobs interface {
	Send(ctx context.Context, b protocol.Bundle) (*protocol.Response, error)
	Suspend(ctx context.Context) error
	SetNodeBin(nodeBin string)
	Pid() int
}

// Recorder stores finished jobs.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Options configures a Service.
type Options struct {
	Jobs      Jobs
	Validator *nodebin.Validator
	// Base is the host-level lint options before per-project overrides.
	Base      config.Options
	Overrides *config.OverrideStore
	Notifier  Notifier
	Recorder  Recorder
	Hub       *events.Hub
	// Version is reported by Debug.
	Version string
}

// Service implements the lint/fix/debug/clear-cache commands.
type Service struct {
	jobs      Jobs
	validator *nodebin.Validator
	overrides *config.OverrideStore
	notifier  Notifier
	recorder  Recorder
	hub       *events.Hub
	version   string
	started   time.Time
	logger    *slog.Logger

	mu       sync.Mutex
	base     config.Options
	inactive bool
	notified struct {
		incompatibleVersion bool
		invalidNodeBin      bool
	}
}

// New returns an awake Service.
func New(opts Options) *Service {
	s := &Service{
		jobs:      opts.Jobs,
		validator: opts.Validator,
		overrides: opts.Overrides,
		notifier:  opts.Notifier,
		recorder:  opts.Recorder,
		hub:       opts.Hub,
		version:   opts.Version,
		started:   time.Now(),
		logger:    log.WithComponent("linter"),
		base:      opts.Base,
	}
	if s.validator == nil {
		s.validator = nodebin.New()
	}
	if s.overrides == nil {
		s.overrides = config.NewOverrideStore()
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	if s.version == "" {
		s.version = "unknown"
	}
	return s
}

// Inactive reports whether the service is asleep.
func (s *Service) Inactive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inactive
}

// Sleep suspends the worker and makes lint requests no-ops until Wake.
func (s *Service) Sleep() { s.sleep("requested") }

func (s *Service) sleep(reason string) {
	s.mu.Lock()
	was := s.inactive
	s.inactive = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), suspendTimeout)
	defer cancel()
	if err := s.jobs.Suspend(ctx); err != nil {
		s.logger.Warn("suspend failed", "error", err)
	}
	if !was {
		s.logger.Info("going to sleep", "reason", reason)
		s.hub.Publish(events.TypeLinterSleep, events.LinterEvent{Reason: reason})
	}
}

// Wake leaves the inactive state and reports whether the service was asleep.
// The worker itself is only started by the next job.
func (s *Service) Wake() bool {
	s.mu.Lock()
	was := s.inactive
	s.inactive = false
	s.mu.Unlock()
	if was {
		s.logger.Info("waking")
		s.hub.Publish(events.TypeLinterWake, events.LinterEvent{})
	}
	return was
}

// BaseOptions returns the host-level lint options.
func (s *Service) BaseOptions() config.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// Options returns the effective lint options for a project: the base
// options with the project's overrides file applied.
func (s *Service) Options(projectPath string) config.Options {
	base := s.BaseOptions()
	opts, err := s.overrides.Resolve(base, projectPath)
	if err != nil {
		s.logger.Warn("ignoring project overrides", "project", projectPath, "error", err)
		return base
	}
	return opts
}

// UpdateOptions replaces the base options and reacts to what changed.
func (s *Service) UpdateOptions(ctx context.Context, cur config.Options) {
	s.mu.Lock()
	prev := s.base
	s.base = cur
	s.mu.Unlock()
	s.OnConfigChange(ctx, prev, cur)
}

// RescanOverrides re-reads a project's overrides file and reacts to what
// changed in its effective options.
func (s *Service) RescanOverrides(ctx context.Context, projectPath string) error {
	prev := s.Options(projectPath)
	err := s.overrides.Rescan(projectPath)
	cur := s.Options(projectPath)
	s.OnConfigChange(ctx, prev, cur)
	return err
}

// OnConfigChange wakes the service, clears the worker's engine cache when
// options baked into cached engines changed, and switches the runtime binary
// when nodeBin changed. The new binary is validated in the background; a bad
// one puts the service to sleep.
func (s *Service) OnConfigChange(ctx context.Context, prev, cur config.Options) {
	s.Wake()

	if config.ShouldInvalidateWorkerCache(prev, cur) {
		if err := s.ClearCache(ctx); err != nil {
			s.logger.Warn("clear cache after config change failed", "error", err)
		}
	}

	if prev.NodeBin == cur.NodeBin {
		return
	}
	s.mu.Lock()
	s.notified.invalidNodeBin = false
	s.mu.Unlock()

	s.jobs.SetNodeBin(cur.NodeBin)
	if err := s.jobs.Suspend(ctx); err != nil {
		s.logger.Warn("suspend after node change failed", "error", err)
	}

	results := s.validator.ValidateAsync(cur.NodeBin)
	go func() {
		res := <-results
		if res.Err != nil {
			s.sleep("invalid-node-bin")
			s.notifyInvalidNodeBin()
			return
		}
		s.logger.Info("switched node", "node_bin", cur.NodeBin, "version", res.Version)
	}()
}

// ClearCache tells the worker to drop its engine instances.
func (s *Service) ClearCache(ctx context.Context) error {
	s.logger.Debug("telling the worker to clear its cache")
	if _, err := s.send(ctx, protocol.JobClearCache, Request{}, nil, nil); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.hub.Publish(events.TypeCacheCleared, nil)
	return nil
}

func (s *Service) notify(level Level, title, description string) {
	n := Notification{Level: level, Title: title, Description: description}
	s.notifier.Notify(n)
	s.hub.Publish(events.TypeNotification, events.NotificationEvent{
		Level: string(level), Title: title, Description: description,
	})
}

func (s *Service) notifyInvalidNodeBin() {
	s.mu.Lock()
	if s.notified.invalidNodeBin {
		s.mu.Unlock()
		return
	}
	s.notified.invalidNodeBin = true
	s.mu.Unlock()

	s.notify(LevelError, "eslint-node: Invalid Node path",
		"Couldn't use the provided path to your node binary. Are you sure it's correct?")
}

// send builds a bundle for req, runs it, and journals the outcome. opts is
// nil for jobs that carry no options.
func (s *Service) send(ctx context.Context, jobType protocol.JobType, req Request, opts *config.Options, text *string) (*protocol.Response, error) {
	b := protocol.Bundle{
		Key:                  uuid.NewString(),
		Type:                 jobType,
		Contents:             text,
		FilePath:             req.FilePath,
		ProjectPath:          req.ProjectPath,
		IsModified:           req.IsModified,
		LegacyPackagePresent: req.LegacyPackagePresent,
	}
	if opts != nil {
		raw, err := json.Marshal(opts)
		if err != nil {
			return nil, fmt.Errorf("marshal options: %w", err)
		}
		b.Config = raw
	}

	logger := log.WithJob(b.Key, string(jobType))
	logger.Debug("sending job", "file", b.FilePath)

	start := time.Now()
	resp, err := s.jobs.Send(ctx, b)
	s.record(ctx, b, resp, err, time.Since(start))
	if err != nil {
		logger.Debug("job failed", "error", err)
	}
	return resp, err
}

func (s *Service) record(ctx context.Context, b protocol.Bundle, resp *protocol.Response, err error, d time.Duration) {
	if s.recorder == nil {
		return
	}
	e := journal.Entry{
		Key:         b.Key,
		Type:        string(b.Type),
		FilePath:    b.FilePath,
		ProjectPath: b.ProjectPath,
		Outcome:     outcome(err),
		Duration:    d,
	}
	if b.Contents != nil {
		e.ContentDigest = config.HashBytes([]byte(*b.Contents))
	}
	if err != nil {
		e.Error = err.Error()
	}
	if resp != nil {
		e.MessageCount = len(resp.Results)
		e.FixCount = resp.FixCount
	}
	if rerr := s.recorder.Record(context.WithoutCancel(ctx), e); rerr != nil {
		s.logger.Warn("journal write failed", "job_key", b.Key, "error", rerr)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return journal.OutcomeOK
	case errors.Is(err, jobmanager.ErrInvalidWorker):
		return "invalid-worker"
	case errors.Is(err, jobmanager.ErrWorkerKilled):
		return journal.OutcomeKilled
	case errors.Is(err, jobmanager.ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	if je, ok := jobmanager.AsJobError(err); ok {
		return je.Kind.String()
	}
	return protocol.ErrTypeUnknown
}

// Request identifies the file a command runs against.
type Request struct {
	FilePath    string `json:"filePath"`
	ProjectPath string `json:"projectPath,omitempty"`
	// Contents is the buffer text. Nil means read FilePath from disk.
	Contents             *string `json:"contents,omitempty"`
	IsModified           bool    `json:"isModified,omitempty"`
	LegacyPackagePresent bool    `json:"legacyPackagePresent,omitempty"`
	// OnSave marks a fix triggered by saving the file.
	OnSave bool `json:"onSave,omitempty"`

	// CurrentContents, when set, is consulted after a lint finishes; results
	// for text that has since changed are discarded.
	CurrentContents func() string `json:"-"`
}

func (r Request) text() (string, error) {
	if r.Contents != nil {
		return *r.Contents, nil
	}
	data, err := os.ReadFile(r.FilePath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", r.FilePath, err)
	}
	return string(data), nil
}
