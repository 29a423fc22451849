package dul

// Key is a (state, event) pair of the transition table.
type Key struct {
	State State
	Event Event
}

// Transition is what happens for one Key. Alt is the next state when the
// action takes its alternative branch: AE-6 rejecting the A-ASSOCIATE-RQ,
// or AR-8 on the acceptor side of a release collision.
type Transition struct {
	Action Action
	Next   State
	Alt    State
}

// TransitionTable is PS3.8 table 9-10. Pairs missing from it are protocol
// errors.
var TransitionTable = map[Key]Transition{
	{Sta1, Evt1}: {Action: AE1, Next: Sta4},

	{Sta4, Evt2}: {Action: AE2, Next: Sta5},

	{Sta2, Evt3}:  {Action: AA1, Next: Sta13},
	{Sta3, Evt3}:  {Action: AA8, Next: Sta13},
	{Sta5, Evt3}:  {Action: AE3, Next: Sta6},
	{Sta6, Evt3}:  {Action: AA8, Next: Sta13},
	{Sta7, Evt3}:  {Action: AA8, Next: Sta13},
	{Sta8, Evt3}:  {Action: AA8, Next: Sta13},
	{Sta9, Evt3}:  {Action: AA8, Next: Sta13},
	{Sta10, Evt3}: {Action: AA8, Next: Sta13},
	{Sta11, Evt3}: {Action: AA8, Next: Sta13},
	{Sta12, Evt3}: {Action: AA8, Next: Sta13},
	{Sta13, Evt3}: {Action: AA6, Next: Sta13},

	{Sta2, Evt4}:  {Action: AA1, Next: Sta13},
	{Sta3, Evt4}:  {Action: AA8, Next: Sta13},
	{Sta5, Evt4}:  {Action: AE4, Next: Sta1},
	{Sta6, Evt4}:  {Action: AA8, Next: Sta13},
	{Sta7, Evt4}:  {Action: AA8, Next: Sta13},
	{Sta8, Evt4}:  {Action: AA8, Next: Sta13},
	{Sta9, Evt4}:  {Action: AA8, Next: Sta13},
	{Sta10, Evt4}: {Action: AA8, Next: Sta13},
	{Sta11, Evt4}: {Action: AA8, Next: Sta13},
	{Sta12, Evt4}: {Action: AA8, Next: Sta13},
	{Sta13, Evt4}: {Action: AA6, Next: Sta13},

	{Sta1, Evt5}: {Action: AE5, Next: Sta2},

	{Sta2, Evt6}:  {Action: AE6, Next: Sta3, Alt: Sta13},
	{Sta3, Evt6}:  {Action: AA8, Next: Sta13},
	{Sta5, Evt6}:  {Action: AA8, Next: Sta13},
	{Sta6, Evt6}:  {Action: AA8, Next: Sta13},
	{Sta7, Evt6}:  {Action: AA8, Next: Sta13},
	{Sta8, Evt6}:  {Action: AA8, Next: Sta13},
	{Sta9, Evt6}:  {Action: AA8, Next: Sta13},
	{Sta10, Evt6}: {Action: AA8, Next: Sta13},
	{Sta11, Evt6}: {Action: AA8, Next: Sta13},
	{Sta12, Evt6}: {Action: AA8, Next: Sta13},
	{Sta13, Evt6}: {Action: AA7, Next: Sta13},

	{Sta3, Evt7}: {Action: AE7, Next: Sta6},

	{Sta3, Evt8}: {Action: AE8, Next: Sta13},

	{Sta6, Evt9}: {Action: DT1, Next: Sta6},
	{Sta8, Evt9}: {Action: AR7, Next: Sta8},

	{Sta2, Evt10}:  {Action: AA1, Next: Sta13},
	{Sta3, Evt10}:  {Action: AA8, Next: Sta13},
	{Sta5, Evt10}:  {Action: AA8, Next: Sta13},
	{Sta6, Evt10}:  {Action: DT2, Next: Sta6},
	{Sta7, Evt10}:  {Action: AR6, Next: Sta7},
	{Sta8, Evt10}:  {Action: AA8, Next: Sta13},
	{Sta9, Evt10}:  {Action: AA8, Next: Sta13},
	{Sta10, Evt10}: {Action: AA8, Next: Sta13},
	{Sta11, Evt10}: {Action: AA8, Next: Sta13},
	{Sta12, Evt10}: {Action: AA8, Next: Sta13},
	{Sta13, Evt10}: {Action: AA6, Next: Sta13},

	{Sta6, Evt11}: {Action: AR1, Next: Sta7},

	{Sta2, Evt12}:  {Action: AA1, Next: Sta13},
	{Sta3, Evt12}:  {Action: AA8, Next: Sta13},
	{Sta5, Evt12}:  {Action: AA8, Next: Sta13},
	{Sta6, Evt12}:  {Action: AR2, Next: Sta8},
	{Sta7, Evt12}:  {Action: AR8, Next: Sta9, Alt: Sta10},
	{Sta8, Evt12}:  {Action: AA8, Next: Sta13},
	{Sta9, Evt12}:  {Action: AA8, Next: Sta13},
	{Sta10, Evt12}: {Action: AA8, Next: Sta13},
	{Sta11, Evt12}: {Action: AA8, Next: Sta13},
	{Sta12, Evt12}: {Action: AA8, Next: Sta13},
	{Sta13, Evt12}: {Action: AA6, Next: Sta13},

	{Sta2, Evt13}:  {Action: AA1, Next: Sta13},
	{Sta3, Evt13}:  {Action: AA8, Next: Sta13},
	{Sta5, Evt13}:  {Action: AA8, Next: Sta13},
	{Sta6, Evt13}:  {Action: AA8, Next: Sta13},
	{Sta7, Evt13}:  {Action: AR3, Next: Sta1},
	{Sta8, Evt13}:  {Action: AA8, Next: Sta13},
	{Sta9, Evt13}:  {Action: AA8, Next: Sta13},
	{Sta10, Evt13}: {Action: AR10, Next: Sta12},
	{Sta11, Evt13}: {Action: AR3, Next: Sta1},
	{Sta12, Evt13}: {Action: AA8, Next: Sta13},
	{Sta13, Evt13}: {Action: AA6, Next: Sta13},

	{Sta8, Evt14}:  {Action: AR4, Next: Sta13},
	{Sta9, Evt14}:  {Action: AR9, Next: Sta11},
	{Sta12, Evt14}: {Action: AR4, Next: Sta13},

	{Sta3, Evt15}:  {Action: AA1, Next: Sta13},
	{Sta4, Evt15}:  {Action: AA2, Next: Sta1},
	{Sta5, Evt15}:  {Action: AA1, Next: Sta13},
	{Sta6, Evt15}:  {Action: AA1, Next: Sta13},
	{Sta7, Evt15}:  {Action: AA1, Next: Sta13},
	{Sta8, Evt15}:  {Action: AA1, Next: Sta13},
	{Sta9, Evt15}:  {Action: AA1, Next: Sta13},
	{Sta10, Evt15}: {Action: AA1, Next: Sta13},
	{Sta11, Evt15}: {Action: AA1, Next: Sta13},
	{Sta12, Evt15}: {Action: AA1, Next: Sta13},

	{Sta2, Evt16}:  {Action: AA2, Next: Sta1},
	{Sta3, Evt16}:  {Action: AA3, Next: Sta1},
	{Sta5, Evt16}:  {Action: AA3, Next: Sta1},
	{Sta6, Evt16}:  {Action: AA3, Next: Sta1},
	{Sta7, Evt16}:  {Action: AA3, Next: Sta1},
	{Sta8, Evt16}:  {Action: AA3, Next: Sta1},
	{Sta9, Evt16}:  {Action: AA3, Next: Sta1},
	{Sta10, Evt16}: {Action: AA3, Next: Sta1},
	{Sta11, Evt16}: {Action: AA3, Next: Sta1},
	{Sta12, Evt16}: {Action: AA3, Next: Sta1},
	{Sta13, Evt16}: {Action: AA2, Next: Sta1},

	{Sta2, Evt17}:  {Action: AA5, Next: Sta1},
	{Sta3, Evt17}:  {Action: AA4, Next: Sta1},
	{Sta4, Evt17}:  {Action: AA4, Next: Sta1},
	{Sta5, Evt17}:  {Action: AA4, Next: Sta1},
	{Sta6, Evt17}:  {Action: AA4, Next: Sta1},
	{Sta7, Evt17}:  {Action: AA4, Next: Sta1},
	{Sta8, Evt17}:  {Action: AA4, Next: Sta1},
	{Sta9, Evt17}:  {Action: AA4, Next: Sta1},
	{Sta10, Evt17}: {Action: AA4, Next: Sta1},
	{Sta11, Evt17}: {Action: AA4, Next: Sta1},
	{Sta12, Evt17}: {Action: AA4, Next: Sta1},
	{Sta13, Evt17}: {Action: AR5, Next: Sta1},

	{Sta2, Evt18}:  {Action: AA2, Next: Sta1},
	{Sta13, Evt18}: {Action: AA2, Next: Sta1},

	{Sta2, Evt19}:  {Action: AA1, Next: Sta13},
	{Sta3, Evt19}:  {Action: AA8, Next: Sta13},
	{Sta5, Evt19}:  {Action: AA8, Next: Sta13},
	{Sta6, Evt19}:  {Action: AA8, Next: Sta13},
	{Sta7, Evt19}:  {Action: AA8, Next: Sta13},
	{Sta8, Evt19}:  {Action: AA8, Next: Sta13},
	{Sta9, Evt19}:  {Action: AA8, Next: Sta13},
	{Sta10, Evt19}: {Action: AA8, Next: Sta13},
	{Sta11, Evt19}: {Action: AA8, Next: Sta13},
	{Sta12, Evt19}: {Action: AA8, Next: Sta13},
	{Sta13, Evt19}: {Action: AA7, Next: Sta13},
}

// Lookup returns the transition for (s, e).
func Lookup(s State, e Event) (Transition, bool) {
	t, ok := TransitionTable[Key{s, e}]
	return t, ok
}
