package jobmanager

// State is the worker lifecycle state.
type State int

const (
	StateAbsent State = iota
	StateStarting
	StateReady
	StateSuspending
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateSuspending:
		return "suspending"
	default:
		return "unknown"
	}
}
