package ws

import "time"

// Reconnect defaults.
const (
	DefaultInitialBackoff  = 1 * time.Second
	DefaultMaxBackoff      = 30 * time.Second
	DefaultErrorRetryDelay = 3 * time.Second
)

// State is the reconnect loop's position.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Event drives a Machine transition.
type Event int

const (
	EventConnected         Event = iota // subscribe frame accepted by the connection
	EventConnFailure                    // refused, reset or closed
	EventUnexpectedFailure              // any other fault in the receive loop
	EventRetry                          // wait elapsed
)

// Machine is the reconnect/backoff state machine. It is a value: Step
// returns the next machine and never mutates the receiver.
type Machine struct {
	State State
	Delay time.Duration // sleep applied by the next connectivity failure

	initial    time.Duration
	max        time.Duration
	errorDelay time.Duration
}

// NewMachine returns a machine in StateConnecting. Non-positive arguments
// fall back to the defaults.
func NewMachine(initial, max, errorDelay time.Duration) Machine {
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	if max <= 0 {
		max = DefaultMaxBackoff
	}
	if max < initial {
		max = initial
	}
	if errorDelay <= 0 {
		errorDelay = DefaultErrorRetryDelay
	}
	return Machine{
		State:      StateConnecting,
		Delay:      initial,
		initial:    initial,
		max:        max,
		errorDelay: errorDelay,
	}
}

// Step applies ev and returns the next machine plus how long the caller
// must wait before sending EventRetry (zero when no wait applies).
//
// A connectivity failure waits the current delay and then doubles it up to
// max. An unexpected failure waits the fixed error delay and leaves the
// doubling sequence untouched. Reaching Connected resets the delay.
func (m Machine) Step(ev Event) (Machine, time.Duration) {
	switch ev {
	case EventConnected:
		m.State = StateConnected
		m.Delay = m.initial
		return m, 0

	case EventConnFailure:
		wait := m.Delay
		m.State = StateBackoff
		m.Delay *= 2
		if m.Delay > m.max {
			m.Delay = m.max
		}
		return m, wait

	case EventUnexpectedFailure:
		m.State = StateBackoff
		return m, m.errorDelay

	case EventRetry:
		m.State = StateConnecting
		return m, 0
	}
	return m, 0
}
