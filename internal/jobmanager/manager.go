// Package jobmanager owns the worker subprocess and multiplexes jobs over
// its stdio.
//
// Jobs are correlated by key only. The manager writes one bundle per line,
// in the order Send is called, and resolves each waiter when a line with its
// key comes back on stdout or stderr. Replies may arrive in any order.
//
// Lifecycle: Absent -> Starting -> Ready -> Suspending -> Absent. Creation is
// single-flight: any number of concurrent Sends against an absent worker
// cause exactly one spawn. Suspend waits for an in-flight creation before
// killing, and every job pending on a worker that goes away fails with
// ErrWorkerKilled.
package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/eslint-node/internal/events"
	"github.com/mattjoyce/eslint-node/internal/log"
	"github.com/mattjoyce/eslint-node/internal/metrics"
	"github.com/mattjoyce/eslint-node/internal/nodebin"
	"github.com/mattjoyce/eslint-node/internal/protocol"
)

// DefaultStartupTimeout bounds the wait for a worker's ready line.
const DefaultStartupTimeout = 10 * time.Second

// Options configures a Manager.
type Options struct {
	// NodeBin is validated before every spawn.
	NodeBin   string
	Validator *nodebin.Validator
	Spawner   Spawner

	// JobTimeout bounds each Send. Zero waits until the reply, the worker's
	// death, or the caller's context.
	JobTimeout     time.Duration
	StartupTimeout time.Duration

	// MaxLineSize bounds one line of worker output. Longer lines are skipped.
	// Zero means protocol.MaxLineSize.
	MaxLineSize int

	Hub     *events.Hub
	Metrics *metrics.Collector

	// OnUnknownError is called for every keyless worker error, in addition
	// to the Errors channel.
	OnUnknownError func(error)
}

type outcome struct {
	resp *protocol.Response
	err  error
}

type waiter struct {
	ch       chan outcome
	jobType  protocol.JobType
	filePath string
	started  time.Time
}

type attempt struct {
	done chan struct{}
	err  error
}

// Manager owns one worker subprocess at a time.
type Manager struct {
	validator      *nodebin.Validator
	spawner        Spawner
	jobTimeout     time.Duration
	startupTimeout time.Duration
	maxLine        int
	hub            *events.Hub
	metrics        *metrics.Collector
	onUnknown      func(error)
	logger         *slog.Logger
	errs           chan error

	mu         sync.Mutex
	nodeBin    string
	state      State
	proc       Process
	enc        *protocol.Encoder
	exited     chan struct{}
	gen        int
	creating   *attempt
	suspending chan struct{}
	pending    map[string]*waiter
	closed     bool
}

// New returns a Manager with no worker. The worker is spawned on first use.
func New(opts Options) *Manager {
	validator := opts.Validator
	if validator == nil {
		validator = nodebin.New()
	}
	startup := opts.StartupTimeout
	if startup <= 0 {
		startup = DefaultStartupTimeout
	}
	return &Manager{
		validator:      validator,
		spawner:        opts.Spawner,
		jobTimeout:     opts.JobTimeout,
		startupTimeout: startup,
		maxLine:        opts.MaxLineSize,
		hub:            opts.Hub,
		metrics:        opts.Metrics,
		onUnknown:      opts.OnUnknownError,
		logger:         log.WithComponent("jobmanager"),
		errs:           make(chan error, 16),
		nodeBin:        opts.NodeBin,
		pending:        make(map[string]*waiter),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pid returns the worker's process id, or 0 when there is none.
func (m *Manager) Pid() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc == nil {
		return 0
	}
	return m.proc.Pid()
}

// PendingCount returns the number of jobs awaiting a reply.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// NodeBin returns the binary validated before spawning.
func (m *Manager) NodeBin() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodeBin
}

// SetNodeBin changes the binary used for the next spawn. It does not touch a
// running worker; callers Suspend first when they want a switch.
func (m *Manager) SetNodeBin(nodeBin string) {
	m.mu.Lock()
	m.nodeBin = nodeBin
	m.mu.Unlock()
}

// Validator returns the binary validator shared with callers.
func (m *Manager) Validator() *nodebin.Validator { return m.validator }

// Errors delivers keyless worker errors and protocol violations. Errors are
// dropped, and logged, when nobody drains the channel.
func (m *Manager) Errors() <-chan error { return m.errs }

// Send writes bundle to the worker, spawning it if needed, and waits for the
// reply carrying the bundle's key. A bundle without a key is given one.
func (m *Manager) Send(ctx context.Context, bundle protocol.Bundle) (*protocol.Response, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if s := m.suspending; s != nil {
			m.mu.Unlock()
			if err := waitChan(ctx, s); err != nil {
				return nil, err
			}
			continue
		}
		if m.state == StateReady {
			break
		}
		m.mu.Unlock()
		if err := m.CreateWorker(ctx); err != nil {
			return nil, err
		}
	}

	// m.mu is held here
	if bundle.Key == "" {
		bundle.Key = uuid.NewString()
	}
	w := &waiter{
		ch:       make(chan outcome, 1),
		jobType:  bundle.Type,
		filePath: bundle.FilePath,
		started:  time.Now(),
	}
	m.pending[bundle.Key] = w
	enc, gen := m.enc, m.gen
	m.metrics.SetPending(len(m.pending))
	m.mu.Unlock()

	m.metrics.RecordSent(string(bundle.Type))
	m.hub.Publish(events.TypeJobSent, events.JobEvent{Key: bundle.Key, Type: string(bundle.Type), FilePath: bundle.FilePath})

	if err := ctx.Err(); err != nil {
		if m.abandon(bundle.Key) {
			m.recordOutcome(bundle.Key, w, err)
		}
		return nil, err
	}

	var timeout <-chan time.Time
	if m.jobTimeout > 0 {
		timer := time.NewTimer(m.jobTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	// The write blocks once the worker stops reading and the pipe fills.
	written := make(chan error, 1)
	go func() { written <- enc.Encode(&bundle) }()

	select {
	case err := <-written:
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrWorkerKilled, err)
			if m.abandon(bundle.Key) {
				m.recordOutcome(bundle.Key, w, err)
			}
			return nil, err
		}
	case <-ctx.Done():
		m.giveUpWrite(gen, bundle.Key, w, written, ctx.Err())
		return nil, ctx.Err()
	case <-timeout:
		m.giveUpWrite(gen, bundle.Key, w, written, ErrJobTimeout)
		return nil, fmt.Errorf("%w after %s", ErrJobTimeout, m.jobTimeout)
	}

	select {
	case out := <-w.ch:
		return out.resp, out.err
	case <-ctx.Done():
		if m.abandon(bundle.Key) {
			m.recordOutcome(bundle.Key, w, ctx.Err())
		}
		return nil, ctx.Err()
	case <-timeout:
		if m.abandon(bundle.Key) {
			m.recordOutcome(bundle.Key, w, ErrJobTimeout)
		}
		return nil, fmt.Errorf("%w after %s", ErrJobTimeout, m.jobTimeout)
	}
}

// CreateWorker spawns a worker unless one is ready or already starting, and
// waits for it to announce readiness. Concurrent callers share one attempt.
func (m *Manager) CreateWorker(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return ErrClosed
		}
		if s := m.suspending; s != nil {
			m.mu.Unlock()
			if err := waitChan(ctx, s); err != nil {
				return err
			}
			continue
		}
		switch m.state {
		case StateReady:
			m.mu.Unlock()
			return nil
		case StateStarting:
			a := m.creating
			m.mu.Unlock()
			return waitAttempt(ctx, a)
		}

		a := &attempt{done: make(chan struct{})}
		m.state = StateStarting
		m.creating = a
		nodeBin := m.nodeBin
		m.mu.Unlock()

		go m.create(a, nodeBin)
		return waitAttempt(ctx, a)
	}
}

// create runs one creation attempt detached from any caller's context.
func (m *Manager) create(a *attempt, nodeBin string) {
	m.hub.Publish(events.TypeWorkerStarting, events.WorkerEvent{State: StateStarting.String()})

	err := m.start(nodeBin)

	m.mu.Lock()
	if err != nil {
		m.state = StateAbsent
	} else {
		m.state = StateReady
	}
	m.creating = nil
	gen, pid := m.gen, 0
	if m.proc != nil {
		pid = m.proc.Pid()
	}
	a.err = err
	close(a.done)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("worker creation failed", "error", err)
		m.hub.Publish(events.TypeWorkerFailed, events.WorkerEvent{Generation: gen, State: StateAbsent.String(), Error: err.Error()})
		return
	}
	m.logger.Info("worker ready", "pid", pid, "generation", gen)
	m.hub.Publish(events.TypeWorkerReady, events.WorkerEvent{PID: pid, Generation: gen, State: StateReady.String()})
}

func (m *Manager) start(nodeBin string) error {
	validateCtx, cancel := context.WithTimeout(context.Background(), m.startupTimeout)
	version, err := m.validator.Validate(validateCtx, nodeBin)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorker, err)
	}
	m.logger.Debug("node binary validated", "node_bin", nodeBin, "version", version)

	if m.spawner == nil {
		return errors.New("no worker spawner configured")
	}
	proc, err := m.spawner.Spawn(context.Background())
	if err != nil {
		return fmt.Errorf("spawn worker: %w", err)
	}
	m.metrics.RecordSpawn()

	exited := make(chan struct{})
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.proc = proc
	m.enc = protocol.NewEncoder(proc.Stdin())
	m.exited = exited
	m.mu.Unlock()

	ready := make(chan struct{})
	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(ready) }) }

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		m.readStdout(proc, markReady)
	}()
	go func() {
		defer readers.Done()
		m.readStderr(proc)
	}()
	go func() {
		// Wait closes the pipes, so replies written just before exit are
		// read first.
		readers.Wait()
		waitErr := proc.Wait()
		m.onExit(gen, waitErr)
		close(exited)
	}()

	timer := time.NewTimer(m.startupTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-exited:
		return fmt.Errorf("%w: exited before ready", ErrWorkerKilled)
	case <-timer.C:
		_ = proc.Kill()
		return fmt.Errorf("%w within %s", ErrStartupTimeout, m.startupTimeout)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.proc == nil {
		return fmt.Errorf("%w: exited before ready", ErrWorkerKilled)
	}
	return nil
}

// Suspend kills the worker, failing every pending job with ErrWorkerKilled.
// It waits for an in-flight creation first and is a no-op without a worker.
func (m *Manager) Suspend(ctx context.Context) error {
	return m.suspend(ctx, 0)
}

// giveUpWrite abandons key while its bundle is still being written. Unless
// the write has just finished, worker generation gen has stopped reading its
// input and is killed.
func (m *Manager) giveUpWrite(gen int, key string, w *waiter, written <-chan error, err error) {
	if m.abandon(key) {
		m.recordOutcome(key, w, err)
	}
	select {
	case werr := <-written:
		if werr == nil {
			return
		}
	default:
	}
	m.logger.Warn("worker is not reading its input, killing it", "generation", gen, "job_key", key, "error", err)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultKillGrace+time.Second)
		defer cancel()
		_ = m.suspend(ctx, gen)
	}()
}

// suspend is Suspend restricted to worker generation gen. Zero matches any.
func (m *Manager) suspend(ctx context.Context, gen int) error {
	for {
		m.mu.Lock()
		if s := m.suspending; s != nil {
			m.mu.Unlock()
			return waitChan(ctx, s)
		}
		if m.state == StateStarting {
			a := m.creating
			m.mu.Unlock()
			if err := waitAttempt(ctx, a); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		break
	}

	// m.mu is held here
	if gen != 0 && gen != m.gen {
		m.mu.Unlock()
		return nil
	}
	if m.proc == nil {
		m.state = StateAbsent
		m.mu.Unlock()
		return nil
	}

	s := make(chan struct{})
	m.suspending = s
	m.state = StateSuspending
	proc, exited := m.proc, m.exited
	gen = m.gen
	pending := m.takePendingLocked()
	m.proc = nil
	m.enc = nil
	m.mu.Unlock()

	m.failAll(pending, ErrWorkerKilled)
	m.logger.Info("suspending worker", "pid", proc.Pid(), "generation", gen, "failed_jobs", len(pending))

	_ = proc.Stdin().Close()
	if err := proc.Kill(); err != nil {
		m.logger.Warn("failed to signal worker", "error", err)
	}

	select {
	case <-exited:
	case <-ctx.Done():
	}

	m.metrics.RecordExit()
	m.mu.Lock()
	m.state = StateAbsent
	m.suspending = nil
	close(s)
	m.mu.Unlock()

	m.hub.Publish(events.TypeWorkerSuspend, events.WorkerEvent{PID: proc.Pid(), Generation: gen, State: StateAbsent.String()})
	return ctx.Err()
}

// Close suspends the worker and refuses any further Send.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultKillGrace+time.Second)
	defer cancel()
	return m.Suspend(ctx)
}

func (m *Manager) onExit(gen int, waitErr error) {
	m.mu.Lock()
	if gen != m.gen || m.proc == nil {
		// already suspended, or superseded by a newer worker
		m.mu.Unlock()
		return
	}
	pid := m.proc.Pid()
	m.proc = nil
	m.enc = nil
	if m.state == StateReady {
		m.state = StateAbsent
	}
	pending := m.takePendingLocked()
	m.mu.Unlock()

	m.metrics.RecordExit()
	m.logger.Warn("worker exited", "pid", pid, "generation", gen, "error", waitErr, "failed_jobs", len(pending))
	m.failAll(pending, ErrWorkerKilled)

	msg := ""
	if waitErr != nil {
		msg = waitErr.Error()
	}
	m.hub.Publish(events.TypeWorkerExited, events.WorkerEvent{PID: pid, Generation: gen, State: StateAbsent.String(), Error: msg})
}

func (m *Manager) readStdout(proc Process, markReady func()) {
	reader := protocol.NewLineReaderSize(proc.Stdout(), m.maxLine)
	for {
		line, err := reader.Next()
		if errors.Is(err, protocol.ErrLineTooLong) {
			m.logger.Warn("skipping oversize worker output", "pid", proc.Pid())
			continue
		}
		if err != nil {
			m.readFailed(proc, "stdout", err)
			return
		}
		resp, err := protocol.ParseResponse(line)
		if err != nil {
			m.logger.Warn("unparseable worker output", "line", string(line), "error", err)
			continue
		}

		switch {
		case resp.IsLog():
			m.logger.Debug("worker log", "pid", proc.Pid(), "log", *resp.Log)
		case resp.IsReady():
			markReady()
		case resp.Key != "":
			if resp.IsError() {
				m.complete(resp.Key, outcome{err: &JobError{
					Kind:    KindFromType(resp.Type),
					Message: resp.Error,
					Version: resp.Version,
					Key:     resp.Key,
					Stack:   resp.Stack,
				}})
			} else {
				m.complete(resp.Key, outcome{resp: resp})
			}
		default:
			err := fmt.Errorf("%w: %s", ErrProtocolViolation, line)
			m.logger.Error("keyless worker output", "line", string(line))
			m.reportUnknown(err)
		}
	}
}

func (m *Manager) readStderr(proc Process) {
	reader := protocol.NewLineReaderSize(proc.Stderr(), m.maxLine)
	for {
		line, err := reader.Next()
		if errors.Is(err, protocol.ErrLineTooLong) {
			m.logger.Warn("skipping oversize worker stderr", "pid", proc.Pid())
			continue
		}
		if err != nil {
			m.readFailed(proc, "stderr", err)
			return
		}
		resp, err := protocol.ParseResponse(line)
		if err != nil {
			m.logger.Warn("worker stderr", "pid", proc.Pid(), "line", string(line))
			continue
		}

		if resp.Key != "" {
			m.complete(resp.Key, outcome{err: &JobError{
				Kind:    KindUnknown,
				Message: resp.Error,
				Key:     resp.Key,
				Stack:   resp.Stack,
			}})
			continue
		}
		m.reportUnknown(&UnknownWorkerError{Message: resp.Error, Stack: resp.Stack, Uncaught: resp.Uncaught})
	}
}

// readFailed handles the end of a worker stream. Anything but EOF leaves the
// pipe unread, and a worker blocked writing to it would hang every job, so
// the worker is killed and its pending jobs fail through onExit.
func (m *Manager) readFailed(proc Process, stream string, err error) {
	if errors.Is(err, io.EOF) {
		return
	}
	m.logger.Error("reading worker output failed, killing worker", "pid", proc.Pid(), "stream", stream, "error", err)
	if kerr := proc.Kill(); kerr != nil {
		m.logger.Warn("failed to signal worker", "error", kerr)
	}
}

// complete removes the waiter for key and delivers out to it. Lines whose
// key has no waiter are dropped.
func (m *Manager) complete(key string, out outcome) {
	m.mu.Lock()
	w, ok := m.pending[key]
	if ok {
		delete(m.pending, key)
		m.metrics.SetPending(len(m.pending))
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("dropping reply with no waiter", "job_key", key)
		return
	}
	w.ch <- out
	m.recordOutcome(key, w, out.err)
}

// abandon drops the waiter for key and reports whether it was still pending.
func (m *Manager) abandon(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[key]; !ok {
		return false
	}
	delete(m.pending, key)
	m.metrics.SetPending(len(m.pending))
	return true
}

func (m *Manager) takePendingLocked() map[string]*waiter {
	pending := m.pending
	m.pending = make(map[string]*waiter)
	m.metrics.SetPending(0)
	return pending
}

func (m *Manager) failAll(pending map[string]*waiter, err error) {
	for key, w := range pending {
		w.ch <- outcome{err: err}
		m.recordOutcome(key, w, err)
	}
}

func (m *Manager) recordOutcome(key string, w *waiter, err error) {
	d := time.Since(w.started)
	label := "ok"
	ev := events.JobEvent{Key: key, Type: string(w.jobType), FilePath: w.filePath, Duration: d}
	if err != nil {
		switch {
		case errors.Is(err, ErrWorkerKilled):
			label = "killed"
		case errors.Is(err, ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
			label = "timeout"
		case errors.Is(err, context.Canceled):
			label = "canceled"
		default:
			if je, ok := AsJobError(err); ok {
				label = je.Kind.String()
			} else {
				label = "error"
			}
		}
		ev.ErrorKind = label
		ev.Error = err.Error()
		m.hub.Publish(events.TypeJobFailed, ev)
	} else {
		m.hub.Publish(events.TypeJobCompleted, ev)
	}
	m.metrics.RecordCompleted(string(w.jobType), label, d)
}

func (m *Manager) reportUnknown(err error) {
	m.metrics.RecordUnknownError()
	m.hub.Publish(events.TypeUnknownError, map[string]string{"error": err.Error()})
	if m.onUnknown != nil {
		m.onUnknown(err)
	}
	select {
	case m.errs <- err:
	default:
		m.logger.Error("unknown worker error dropped, channel full", "error", err)
	}
}

func waitChan(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitAttempt(ctx context.Context, a *attempt) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
