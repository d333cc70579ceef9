package jobmanager

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/mattjoyce/eslint-node/internal/protocol"
)

// fakeProc is an in-memory worker wired together with io.Pipe.
type fakeProc struct {
	pid int

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	out    *protocol.Encoder
	errOut *protocol.Encoder

	once   sync.Once
	done   chan struct{}
	killed atomic.Bool
}

func newFakeProc(pid int) *fakeProc {
	p := &fakeProc{pid: pid, done: make(chan struct{})}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	p.out = protocol.NewEncoder(p.stdoutW)
	p.errOut = protocol.NewEncoder(p.stderrW)
	return p
}

func (p *fakeProc) Stdin() io.WriteCloser { return p.stdinW }
func (p *fakeProc) Stdout() io.Reader     { return p.stdoutR }
func (p *fakeProc) Stderr() io.Reader     { return p.stderrR }
func (p *fakeProc) Pid() int              { return p.pid }

func (p *fakeProc) Kill() error {
	p.killed.Store(true)
	p.exit()
	return nil
}

func (p *fakeProc) Wait() error {
	<-p.done
	if p.killed.Load() {
		return errors.New("signal: terminated")
	}
	return nil
}

// exit simulates the process going away on its own.
func (p *fakeProc) exit() {
	p.once.Do(func() {
		_ = p.stdinR.CloseWithError(io.ErrClosedPipe)
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
		close(p.done)
	})
}

// bundles decodes what the manager writes to the worker's stdin.
func (p *fakeProc) bundles(fn func(b *protocol.Bundle)) {
	reader := protocol.NewLineReader(p.stdinR)
	for {
		line, err := reader.Next()
		if err != nil {
			return
		}
		b, err := protocol.ParseBundle(line)
		if err != nil {
			continue
		}
		fn(b)
	}
}

// fakeSpawner hands each new fakeProc to run on its own goroutine.
type fakeSpawner struct {
	run func(p *fakeProc)

	mu    sync.Mutex
	procs []*fakeProc
	err   error
}

func (s *fakeSpawner) Spawn(ctx context.Context) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p := newFakeProc(1000 + len(s.procs))
	s.procs = append(s.procs, p)
	go s.run(p)
	return p, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

func (s *fakeSpawner) last() *fakeProc {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.procs) == 0 {
		return nil
	}
	return s.procs[len(s.procs)-1]
}

// echoWorker announces readiness and answers every bundle with an empty result.
func echoWorker(p *fakeProc) {
	_ = p.out.Encode(protocol.Ready{Type: protocol.TypeReady})
	p.bundles(func(b *protocol.Bundle) {
		_ = p.out.Encode(protocol.Result{Key: b.Key, Results: []protocol.Message{}})
	})
}

// silentWorker announces readiness and never answers.
func silentWorker(p *fakeProc) {
	_ = p.out.Encode(protocol.Ready{Type: protocol.TypeReady})
	p.bundles(func(*protocol.Bundle) {})
}
