// Package nodebin checks that a configured runtime binary can actually run
// before anything is spawned with it.
package nodebin

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mattjoyce/eslint-node/internal/log"
)

// ErrInvalidBinary is returned when a candidate cannot be executed or does
// not answer a version probe.
var ErrInvalidBinary = errors.New("invalid node binary")

// DefaultProbeTimeout bounds a single `--version` probe.
const DefaultProbeTimeout = 5 * time.Second

// Prober runs a candidate and returns the version it reports.
type Prober func(ctx context.Context, candidate string) (string, error)

// Result is delivered by ValidateAsync.
type Result struct {
	Version string
	Err     error
}

// Validator caches known-good candidates and collapses concurrent probes of
// the same candidate into one subprocess.
type Validator struct {
	mu      sync.RWMutex
	good    map[string]string
	group   singleflight.Group
	probe   Prober
	timeout time.Duration
}

// Option configures a Validator.
type Option func(*Validator)

// WithProber replaces the exec-based probe.
func WithProber(p Prober) Option {
	return func(v *Validator) { v.probe = p }
}

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// New returns a Validator with an empty cache.
func New(opts ...Option) *Validator {
	v := &Validator{
		good:    make(map[string]string),
		probe:   ExecProber,
		timeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Cached returns the remembered version of a known-good candidate.
func (v *Validator) Cached(candidate string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	version, ok := v.good[candidate]
	return version, ok
}

// Forget drops a cached good result so the next validation probes again.
func (v *Validator) Forget(candidate string) {
	v.mu.Lock()
	delete(v.good, candidate)
	v.mu.Unlock()
}

// Validate probes candidate, or returns the cached version when it already
// passed. Failures wrap ErrInvalidBinary and are never cached. A caller whose
// ctx ends stops waiting, but the shared probe keeps running for the others.
func (v *Validator) Validate(ctx context.Context, candidate string) (string, error) {
	if version, ok := v.Cached(candidate); ok {
		return version, nil
	}

	ch := v.group.DoChan(candidate, func() (any, error) {
		if version, ok := v.Cached(candidate); ok {
			return version, nil
		}

		probeCtx, cancel := context.WithTimeout(context.Background(), v.timeout)
		defer cancel()

		version, err := v.probe(probeCtx, candidate)
		if err != nil {
			log.WithComponent("nodebin").Debug("probe failed", "candidate", candidate, "error", err)
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidBinary, candidate, err)
		}

		v.mu.Lock()
		v.good[candidate] = version
		v.mu.Unlock()
		return version, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// ValidateAsync runs Validate in the background and delivers exactly one
// Result on the returned channel.
func (v *Validator) ValidateAsync(candidate string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		version, err := v.Validate(context.Background(), candidate)
		out <- Result{Version: version, Err: err}
	}()
	return out
}

// ValidateSync blocks until candidate is validated. It shares the cache and
// in-flight probes with Validate.
func (v *Validator) ValidateSync(candidate string) (string, bool) {
	version, err := v.Validate(context.Background(), candidate)
	if err != nil {
		return "", false
	}
	return version, true
}

// ExecProber runs `<candidate> --version` and returns the first output line.
func ExecProber(ctx context.Context, candidate string) (string, error) {
	if strings.TrimSpace(candidate) == "" {
		return "", errors.New("empty binary path")
	}
	cmd := exec.CommandContext(ctx, candidate, "--version")
	cmd.WaitDelay = 500 * time.Millisecond
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	line := firstLine(strings.TrimSpace(string(output)))
	if line == "" {
		return "", errors.New("no version output")
	}
	return line, nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}
