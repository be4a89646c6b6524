package cursor

import (
	"errors"
	"time"
)

// State is the pass state of one chain.
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateResolving  State = "resolving"
	StatePersisting State = "persisting"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
// Every state may fall back to idle when a pass aborts.
var ValidTransitions = map[State][]State{
	StateIdle:       {StateScanning},
	StateScanning:   {StateResolving, StateIdle},
	StateResolving:  {StatePersisting, StateIdle},
	StatePersisting: {StateIdle},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to State, reason string) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case StateIdle:
		return "Idle - waiting for the next cycle"
	case StateScanning:
		return "Scanning - querying contract logs"
	case StateResolving:
		return "Resolving - fetching transactions and receipts"
	case StatePersisting:
		return "Persisting - recording events and cursor"
	default:
		return "Unknown state"
	}
}
