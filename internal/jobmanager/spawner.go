package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is a running worker.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	Pid() int
	// Kill asks the process to stop and forces it after a grace period.
	Kill() error
	// Wait blocks until the process exits. It is called exactly once.
	Wait() error
}

// Spawner starts worker processes.
type Spawner interface {
	Spawn(ctx context.Context) (Process, error)
}

// DefaultKillGrace is how long a worker gets between SIGTERM and SIGKILL.
const DefaultKillGrace = 2 * time.Second

// ExecSpawner starts the worker as a subprocess.
type ExecSpawner struct {
	// Command is the argv, e.g. ["/usr/local/bin/eslint-node", "worker"].
	Command []string
	Env     []string
	Dir     string
	Grace   time.Duration
}

// Spawn starts Command with piped stdio.
func (s ExecSpawner) Spawn(ctx context.Context) (Process, error) {
	if len(s.Command) == 0 {
		return nil, errors.New("worker command is empty")
	}
	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	grace := s.Grace
	if grace <= 0 {
		grace = DefaultKillGrace
	}
	return &execProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		grace:  grace,
		done:   make(chan struct{}),
	}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
	grace  time.Duration

	done     chan struct{}
	killOnce sync.Once
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Stderr() io.Reader     { return p.stderr }
func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }

// Kill sends SIGTERM to the worker's process group, then SIGKILL if it has
// not exited within the grace period.
func (p *execProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		pgid := -p.cmd.Process.Pid
		if sigErr := syscall.Kill(pgid, syscall.SIGTERM); sigErr != nil {
			err = p.cmd.Process.Signal(syscall.SIGTERM)
		}
		go func() {
			select {
			case <-p.done:
			case <-time.After(p.grace):
				_ = syscall.Kill(pgid, syscall.SIGKILL)
				_ = p.cmd.Process.Kill()
			}
		}()
	})
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Wait() error {
	defer close(p.done)
	return p.cmd.Wait()
}
