package pluginhost

import "fmt"

// Status is the plugin lifecycle state (§3), totally ordered.
type Status int

const (
	Uninitialized Status = iota
	Initialized
	Activated
	Processing
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Activated:
		return "activated"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// transitionError is never returned to a caller — it is only ever
// reported via cabi.Bug, since an out-of-order lifecycle call is a
// harness bug, never a plugin failure (§3, §8 invariant 1).
type transitionError struct {
	From, To Status
	Op       string
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("illegal call to %s while in state %s (expected to reach %s)", e.Op, e.From, e.To)
}
