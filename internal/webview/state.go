package webview

// State is the lifecycle state of one browser instance.
type State int

const (
	StateBeforeCreated State = iota
	StateCreated
	StateReady
	StateClosing
	StateClosed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateBeforeCreated:
		return "before_created"
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether to is a legal successor of s. The graph
// only moves forward; Ready may be skipped when close is requested early.
func (s State) CanTransition(to State) bool {
	switch s {
	case StateBeforeCreated:
		return to == StateCreated
	case StateCreated:
		return to == StateReady || to == StateClosing
	case StateReady:
		return to == StateClosing
	case StateClosing:
		return to == StateClosed
	default:
		return false
	}
}

// HasBrowser reports whether a browser reference is held in state s.
func (s State) HasBrowser() bool {
	return s == StateCreated || s == StateReady || s == StateClosing
}
