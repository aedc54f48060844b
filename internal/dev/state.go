package dev

import (
	"fmt"
	"sync"
)

// State is the dev server's build state.
type State int

const (
	// StateIdle means no build has started.
	StateIdle State = iota
	// StateBuilding means the first good compilation is being built.
	StateBuilding
	// StateServingFresh means the current compilation matches the sources.
	StateServingFresh
	// StateServingStaleWhileBuilding means a rebuild is running and the
	// previous good compilation is still served.
	StateServingStaleWhileBuilding
	// StateServingStaleWithErrors means the last build failed. The previous
	// good compilation, if any, is still served and the errors are shown.
	StateServingStaleWithErrors
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateServingFresh:
		return "serving-fresh"
	case StateServingStaleWhileBuilding:
		return "serving-stale-while-building"
	case StateServingStaleWithErrors:
		return "serving-stale-with-errors"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the allowed moves. A building state may repeat when a
// build is superseded by a newer one.
var transitions = map[State][]State{
	StateIdle:                      {StateBuilding},
	StateBuilding:                  {StateBuilding, StateServingFresh, StateServingStaleWithErrors},
	StateServingFresh:              {StateServingStaleWhileBuilding},
	StateServingStaleWhileBuilding: {StateServingStaleWhileBuilding, StateServingFresh, StateServingStaleWithErrors},
	StateServingStaleWithErrors:    {StateBuilding, StateServingStaleWhileBuilding},
}

// stateMachine guards State transitions.
type stateMachine struct {
	mu    sync.RWMutex
	state State
}

// Get returns the current state.
func (m *stateMachine) Get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// transition moves to next or reports why it cannot.
func (m *stateMachine) transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", m.state, next)
}

// begin enters the building state that matches whether a good compilation
// is being served.
func (m *stateMachine) begin(serving bool) error {
	if serving {
		return m.transition(StateServingStaleWhileBuilding)
	}
	return m.transition(StateBuilding)
}

// finish leaves the building state.
func (m *stateMachine) finish(ok bool) error {
	if ok {
		return m.transition(StateServingFresh)
	}
	return m.transition(StateServingStaleWithErrors)
}
