package runtime

// State is the lifecycle position of a processor.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
	StateAborting
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateAborting:
		return "aborting"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state marks a finished run. A terminal
// processor is reset to idle by the next Start.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateAborted
}

// Active reports whether worker goroutines may still be running.
func (s State) Active() bool {
	return s == StateRunning || s == StateStopping || s == StateAborting
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
