package dul

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

const altSuffix = "/alt"

// StateMachine holds the current DUL state. Its events are built from
// TransitionTable so only listed pairs can move it.
type StateMachine struct {
	fsm *fsm.FSM
}

// NewStateMachine starts in Sta1. onEnter, if set, runs after every change
// of state with the source and destination states and the event name.
func NewStateMachine(onEnter func(from, to State, event string)) *StateMachine {
	sm := &StateMachine{}

	events := make(fsm.Events, 0, len(TransitionTable)+2)
	for key, t := range TransitionTable {
		events = append(events, fsm.EventDesc{
			Name: string(key.Event),
			Src:  []string{string(key.State)},
			Dst:  string(t.Next),
		})
		if t.Alt != "" {
			events = append(events, fsm.EventDesc{
				Name: string(key.Event) + altSuffix,
				Src:  []string{string(key.State)},
				Dst:  string(t.Alt),
			})
		}
	}

	callbacks := fsm.Callbacks{}
	if onEnter != nil {
		callbacks["enter_state"] = func(_ context.Context, e *fsm.Event) {
			onEnter(State(e.Src), State(e.Dst), e.Event)
		}
	}

	sm.fsm = fsm.NewFSM(string(Sta1), events, callbacks)
	return sm
}

func (sm *StateMachine) Current() State {
	return State(sm.fsm.Current())
}

// Can reports whether (Current, e) is in the table.
func (sm *StateMachine) Can(e Event) bool {
	return sm.fsm.Can(string(e))
}

// Fire moves the machine for e. alt selects the alternative next state.
// A transition back into the same state is not an error.
func (sm *StateMachine) Fire(e Event, alt bool) (State, error) {
	name := string(e)
	if alt {
		name += altSuffix
	}
	err := sm.fsm.Event(context.Background(), name)
	switch err.(type) {
	case nil, fsm.NoTransitionError:
		return sm.Current(), nil
	default:
		return sm.Current(), fmt.Errorf("dul: %s in %s: %w", e, sm.Current(), err)
	}
}

// Reset forces the machine back to Sta1.
func (sm *StateMachine) Reset() {
	sm.fsm.SetState(string(Sta1))
}
