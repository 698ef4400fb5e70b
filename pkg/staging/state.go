// Package staging implements the work-commit chain and the session
// state machine that governs it: flush, compaction, abort, and the
// stale-session recovery policy.
package staging

import (
	"errors"
	"fmt"
)

// ErrInvalidStateTransition is returned by Transition for any event
// not in the accepted transition table.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// StateKind is the tag persisted on every work-commit.
type StateKind uint8

const (
	StateRunning StateKind = iota + 1
	StateAwaitingUser
	StateInterrupted
	StatePendingComplete
	StateComplete
	StateAborted
)

func (k StateKind) String() string {
	switch k {
	case StateRunning:
		return "Running"
	case StateAwaitingUser:
		return "AwaitingUser"
	case StateInterrupted:
		return "Interrupted"
	case StatePendingComplete:
		return "PendingComplete"
	case StateComplete:
		return "Complete"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// State is the tagged variant persisted inside each work-commit.
// Only the fields relevant to Kind are populated; the rest are zero.
type State struct {
	Kind StateKind

	Question    string // AwaitingUser
	AskedAt     int64  // AwaitingUser
	UserMessage string // Interrupted
	Summary     string // PendingComplete
	Reason      string // Aborted
}

// Running is the initial state of a fresh session.
func Running() State { return State{Kind: StateRunning} }

// Event names the transition being requested. Kept as a small closed
// set of string constants rather than a Go type per event, since the
// event names appear verbatim in error messages and CLI flags.
type Event string

const (
	EventAsk       Event = "ask"
	EventRespond   Event = "respond"
	EventInterrupt Event = "interrupt"
	EventResume    Event = "resume"
	EventFinish    Event = "finish"
	EventConfirm   Event = "confirm"
	EventModify    Event = "modify"
	EventAbort     Event = "abort"
)

// Transition applies event to the current state and returns the next
// state, or ErrInvalidStateTransition if the (state, event) pair isn't
// in the accepted table:
//
//	Running --ask--> AwaitingUser --respond--> Running
//	Running --interrupt--> Interrupted --resume--> Running
//	Running --finish--> PendingComplete --confirm--> Complete
//	PendingComplete --modify--> Running
//	AwaitingUser | PendingComplete | Running --abort--> Aborted
func Transition(current State, event Event, payload State) (State, error) {
	fail := func() (State, error) {
		return State{}, fmt.Errorf("%w: %s from %s", ErrInvalidStateTransition, event, current.Kind)
	}

	switch event {
	case EventAsk:
		if current.Kind != StateRunning {
			return fail()
		}
		return State{Kind: StateAwaitingUser, Question: payload.Question, AskedAt: payload.AskedAt}, nil
	case EventRespond:
		if current.Kind != StateAwaitingUser {
			return fail()
		}
		return Running(), nil
	case EventInterrupt:
		if current.Kind != StateRunning {
			return fail()
		}
		return State{Kind: StateInterrupted, UserMessage: payload.UserMessage}, nil
	case EventResume:
		if current.Kind != StateInterrupted {
			return fail()
		}
		return Running(), nil
	case EventFinish:
		if current.Kind != StateRunning {
			return fail()
		}
		return State{Kind: StatePendingComplete, Summary: payload.Summary}, nil
	case EventConfirm:
		if current.Kind != StatePendingComplete {
			return fail()
		}
		return State{Kind: StateComplete}, nil
	case EventModify:
		if current.Kind != StatePendingComplete {
			return fail()
		}
		return Running(), nil
	case EventAbort:
		switch current.Kind {
		case StateAwaitingUser, StatePendingComplete, StateRunning:
			return State{Kind: StateAborted, Reason: payload.Reason}, nil
		default:
			return fail()
		}
	default:
		return State{}, fmt.Errorf("%w: unknown event %q", ErrInvalidStateTransition, event)
	}
}

// Terminal reports whether a session in this state is eligible for
// compaction (Complete or Aborted --compact--> ∅).
func (s State) Terminal() bool {
	return s.Kind == StateComplete || s.Kind == StateAborted
}
