package dul

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineInitialState(t *testing.T) {
	sm := NewStateMachine(nil)
	assert.Equal(t, Sta1, sm.Current())
	assert.True(t, sm.Can(Evt1))
	assert.True(t, sm.Can(Evt5))
	assert.False(t, sm.Can(Evt9))
}

func TestStateMachineAcceptorPath(t *testing.T) {
	var entered []State
	sm := NewStateMachine(func(from, to State, event string) {
		entered = append(entered, to)
	})

	steps := []struct {
		event Event
		alt   bool
		want  State
	}{
		{Evt5, false, Sta2},
		{Evt6, false, Sta3},
		{Evt7, false, Sta6},
		{Evt10, false, Sta6},
		{Evt9, false, Sta6},
		{Evt12, false, Sta8},
		{Evt14, false, Sta13},
		{Evt17, false, Sta1},
	}
	for _, s := range steps {
		got, err := sm.Fire(s.event, s.alt)
		require.NoError(t, err, "%s", s.event)
		assert.Equal(t, s.want, got, "%s", s.event)
	}
	// self transitions do not enter a state
	assert.Equal(t, []State{Sta2, Sta3, Sta6, Sta8, Sta13, Sta1}, entered)
}

func TestStateMachineAlternative(t *testing.T) {
	t.Run("AE-6 rejects", func(t *testing.T) {
		sm := NewStateMachine(nil)
		_, err := sm.Fire(Evt5, false)
		require.NoError(t, err)
		got, err := sm.Fire(Evt6, true)
		require.NoError(t, err)
		assert.Equal(t, Sta13, got)
	})

	t.Run("AR-8 acceptor", func(t *testing.T) {
		sm := NewStateMachine(nil)
		for _, e := range []Event{Evt1, Evt2, Evt3, Evt11} {
			_, err := sm.Fire(e, false)
			require.NoError(t, err)
		}
		require.Equal(t, Sta7, sm.Current())
		got, err := sm.Fire(Evt12, true)
		require.NoError(t, err)
		assert.Equal(t, Sta10, got)
	})
}

func TestStateMachineRejectsUnknownPair(t *testing.T) {
	sm := NewStateMachine(nil)
	got, err := sm.Fire(Evt9, false)
	assert.Error(t, err)
	assert.Equal(t, Sta1, got)

	_, err = sm.Fire(Evt1, true)
	assert.Error(t, err)
	assert.Equal(t, Sta1, sm.Current())
}

func TestStateMachineReset(t *testing.T) {
	sm := NewStateMachine(nil)
	_, err := sm.Fire(Evt1, false)
	require.NoError(t, err)
	require.Equal(t, Sta4, sm.Current())

	sm.Reset()
	assert.Equal(t, Sta1, sm.Current())
	assert.True(t, sm.Can(Evt1))
}
