package dul

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// next state of every action that has a single outcome
var actionNext = map[Action]State{
	AE1: Sta4, AE2: Sta5, AE3: Sta6, AE4: Sta1, AE5: Sta2, AE7: Sta6, AE8: Sta13,
	DT1: Sta6, DT2: Sta6,
	AR1: Sta7, AR2: Sta8, AR3: Sta1, AR4: Sta13, AR5: Sta1, AR6: Sta7, AR7: Sta8, AR9: Sta11, AR10: Sta12,
	AA1: Sta13, AA2: Sta1, AA3: Sta1, AA4: Sta1, AA5: Sta1, AA6: Sta13, AA7: Sta13, AA8: Sta13,
}

func TestTransitionTableConsistent(t *testing.T) {
	require.Len(t, TransitionTable, 123)

	for key, tr := range TransitionTable {
		assert.Contains(t, States, key.State, "%v", key)
		assert.Contains(t, Events, key.Event, "%v", key)
		assert.NotEmpty(t, tr.Action.Description(), "%v", key)

		switch tr.Action {
		case AE6:
			assert.Equal(t, Sta3, tr.Next)
			assert.Equal(t, Sta13, tr.Alt)
		case AR8:
			assert.Equal(t, Sta9, tr.Next)
			assert.Equal(t, Sta10, tr.Alt)
		default:
			assert.Empty(t, tr.Alt, "%v", key)
			assert.Equal(t, actionNext[tr.Action], tr.Next, "%v %s", key, tr.Action)
		}
	}
}

func TestTransitionTableRows(t *testing.T) {
	cases := []struct {
		state  State
		event  Event
		action Action
	}{
		{Sta1, Evt1, AE1},
		{Sta4, Evt2, AE2},
		{Sta5, Evt3, AE3},
		{Sta5, Evt4, AE4},
		{Sta1, Evt5, AE5},
		{Sta2, Evt6, AE6},
		{Sta3, Evt7, AE7},
		{Sta3, Evt8, AE8},
		{Sta6, Evt9, DT1},
		{Sta8, Evt9, AR7},
		{Sta6, Evt10, DT2},
		{Sta7, Evt10, AR6},
		{Sta6, Evt11, AR1},
		{Sta6, Evt12, AR2},
		{Sta7, Evt12, AR8},
		{Sta7, Evt13, AR3},
		{Sta10, Evt13, AR10},
		{Sta11, Evt13, AR3},
		{Sta8, Evt14, AR4},
		{Sta9, Evt14, AR9},
		{Sta12, Evt14, AR4},
		{Sta4, Evt15, AA2},
		{Sta6, Evt15, AA1},
		{Sta2, Evt16, AA2},
		{Sta6, Evt16, AA3},
		{Sta2, Evt17, AA5},
		{Sta6, Evt17, AA4},
		{Sta13, Evt17, AR5},
		{Sta2, Evt18, AA2},
		{Sta13, Evt18, AA2},
		{Sta2, Evt19, AA1},
		{Sta6, Evt19, AA8},
		{Sta13, Evt19, AA7},
		{Sta13, Evt10, AA6},
		{Sta13, Evt6, AA7},
	}
	for _, c := range cases {
		tr, ok := Lookup(c.state, c.event)
		require.True(t, ok, "%s %s", c.state, c.event)
		assert.Equal(t, c.action, tr.Action, "%s %s", c.state, c.event)
	}

	missing := []Key{
		{Sta1, Evt3}, {Sta1, Evt17}, {Sta6, Evt1}, {Sta7, Evt9}, {Sta2, Evt15}, {Sta13, Evt15}, {Sta6, Evt18},
	}
	for _, k := range missing {
		_, ok := Lookup(k.State, k.Event)
		assert.False(t, ok, "%v", k)
	}
}

func TestDescriptions(t *testing.T) {
	for _, s := range States {
		assert.NotEmpty(t, s.Description(), s)
	}
	for _, e := range Events {
		assert.NotEmpty(t, e.Description(), e)
	}
	assert.Equal(t, "Idle", Sta1.Description())
}
