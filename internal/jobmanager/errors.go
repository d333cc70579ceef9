package jobmanager

import (
	"errors"
	"fmt"

	"github.com/mattjoyce/eslint-node/internal/protocol"
)

var (
	// ErrInvalidWorker means the configured runtime binary failed validation.
	// Callers treat it as "no linting available", not as a crash.
	ErrInvalidWorker = errors.New("invalid worker: node binary failed validation")
	// ErrWorkerKilled fails every job pending on a worker that exited or was
	// suspended.
	ErrWorkerKilled = errors.New("worker killed")
	// ErrJobTimeout is returned when a job outlives the configured timeout.
	ErrJobTimeout = errors.New("job timed out")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("job manager closed")
	// ErrProtocolViolation marks worker output that fits no known shape.
	ErrProtocolViolation = errors.New("worker protocol violation")
	// ErrStartupTimeout is returned when a spawned worker never announces readiness.
	ErrStartupTimeout = errors.New("worker did not become ready")
)

// Kind classifies a typed job failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfigNotFound
	KindIncompatibleVersion
	KindVersionOverlap
	KindNoProject
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfigNotFound:
		return protocol.ErrTypeConfigNotFound
	case KindIncompatibleVersion:
		return protocol.ErrTypeIncompatibleVersion
	case KindVersionOverlap:
		return protocol.ErrTypeVersionOverlap
	case KindNoProject:
		return protocol.ErrTypeNoProject
	default:
		return protocol.ErrTypeUnknown
	}
}

// KindFromType maps a reply's type field onto a Kind.
func KindFromType(t string) Kind {
	switch t {
	case protocol.ErrTypeConfigNotFound:
		return KindConfigNotFound
	case protocol.ErrTypeIncompatibleVersion:
		return KindIncompatibleVersion
	case protocol.ErrTypeVersionOverlap:
		return KindVersionOverlap
	case protocol.ErrTypeNoProject:
		return KindNoProject
	default:
		return KindUnknown
	}
}

// JobError is a failure the worker reported for one job.
type JobError struct {
	Kind    Kind
	Message string
	// Version is the engine version for version-gate failures.
	Version string
	Key     string
	Stack   string
}

func (e *JobError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Version, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// UnknownWorkerError is a keyless failure with no job to attach to.
type UnknownWorkerError struct {
	Message  string
	Stack    string
	Uncaught bool
}

func (e *UnknownWorkerError) Error() string {
	return "unknown worker error: " + e.Message
}

// AsJobError unwraps err into a *JobError.
func AsJobError(err error) (*JobError, bool) {
	var je *JobError
	if errors.As(err, &je) {
		return je, true
	}
	return nil, false
}
