// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wsclient

import (
	"fmt"
	"sync"
)

// ReadyState is the lifecycle state of a websocket connection.
type ReadyState int

// The ready states of a websocket connection, in lifecycle order.
const (
	Connecting ReadyState = iota
	Open
	Closing
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("ReadyState(%d)", int(s))
}

// transitions lists the allowed successor states for each ready state. A
// connection attempt moves Connecting → Open → Closing → Closed, but may also
// skip Open when the attempt fails. Only a fresh connection attempt leaves
// Closed.
var transitions = map[ReadyState][]ReadyState{
	Closed:     {Connecting},
	Connecting: {Open, Closing},
	Open:       {Closing},
	Closing:    {Closed},
}

// stateMachine tracks the ready state of a client and enforces the allowed
// transitions. It can safely be used from multiple go routines.
type stateMachine struct {
	m     sync.Mutex
	state ReadyState
}

// newStateMachine returns a state machine for a never connected client,
// which thus is Closed.
func newStateMachine() *stateMachine {
	return &stateMachine{state: Closed}
}

// current returns the current ready state.
func (sm *stateMachine) current() ReadyState {
	sm.m.Lock()
	defer sm.m.Unlock()
	return sm.state
}

// transition changes into the specified new state if this is an allowed
// transition, otherwise it returns an ErrIllegalTransition error and leaves
// the state unchanged.
func (sm *stateMachine) transition(to ReadyState) error {
	sm.m.Lock()
	defer sm.m.Unlock()
	for _, next := range transitions[sm.state] {
		if next == to {
			sm.state = to
			return nil
		}
	}
	return fmt.Errorf("%w from %s to %s", ErrIllegalTransition, sm.state, to)
}
