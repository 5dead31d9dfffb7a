package app

import (
	"sync"

	"github.com/bft-labs/stamper/internal/domain"
	"github.com/bft-labs/stamper/pkg/log"
)

// State represents the lifecycle state of a pipeline.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Observer is notified after every state change.
type Observer interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle manages the pipeline state machine.
type Lifecycle struct {
	mu       sync.RWMutex
	state    State
	logger   log.Logger
	observer Observer
}

// NewLifecycle creates a lifecycle in StateIdle. observer may be nil.
func NewLifecycle(logger log.Logger, observer Observer) *Lifecycle {
	return &Lifecycle{
		state:    StateIdle,
		logger:   log.OrNoop(logger),
		observer: observer,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// CanRun returns true if the pipeline may be (re)started.
func (l *Lifecycle) CanRun() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateIdle || l.state == StateStopped || l.state == StateFailed
}

// TransitionTo moves to newState, or returns an error and leaves the state
// unchanged if the transition is not allowed.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	if err := checkTransition(oldState, newState); err != nil {
		l.mu.Unlock()
		return err
	}

	l.state = newState
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

func checkTransition(from, to State) error {
	switch from {
	case StateIdle, StateStopped, StateFailed:
		if to != StateRunning {
			return domain.ErrNotRunning
		}
	case StateRunning:
		if to != StateDraining && to != StateFailed {
			return domain.ErrAlreadyRunning
		}
	case StateDraining:
		if to != StateStopped && to != StateFailed {
			return domain.ErrAlreadyRunning
		}
	}
	return nil
}
