// Package dul implements the DICOM Upper Layer protocol machine
// (PS3.8 section 9.2): thirteen states driven by local service requests,
// received PDUs, transport indications and the ARTIM timer.
package dul

// State is one of Sta1..Sta13.
type State string

const (
	Sta1  State = "Sta1"
	Sta2  State = "Sta2"
	Sta3  State = "Sta3"
	Sta4  State = "Sta4"
	Sta5  State = "Sta5"
	Sta6  State = "Sta6"
	Sta7  State = "Sta7"
	Sta8  State = "Sta8"
	Sta9  State = "Sta9"
	Sta10 State = "Sta10"
	Sta11 State = "Sta11"
	Sta12 State = "Sta12"
	Sta13 State = "Sta13"
)

var States = []State{Sta1, Sta2, Sta3, Sta4, Sta5, Sta6, Sta7, Sta8, Sta9, Sta10, Sta11, Sta12, Sta13}

var stateDescriptions = map[State]string{
	Sta1:  "Idle",
	Sta2:  "Transport connection open (Awaiting A-ASSOCIATE-RQ PDU)",
	Sta3:  "Awaiting local A-ASSOCIATE response primitive",
	Sta4:  "Awaiting transport connection opening to complete",
	Sta5:  "Awaiting A-ASSOCIATE-AC or A-ASSOCIATE-RJ PDU",
	Sta6:  "Association established and ready for data transfer",
	Sta7:  "Awaiting A-RELEASE-RP PDU",
	Sta8:  "Awaiting local A-RELEASE response primitive",
	Sta9:  "Release collision requestor side; awaiting A-RELEASE response",
	Sta10: "Release collision acceptor side; awaiting A-RELEASE-RP PDU",
	Sta11: "Release collision requestor side; awaiting A-RELEASE-RP PDU",
	Sta12: "Release collision acceptor side; awaiting A-RELEASE response primitive",
	Sta13: "Awaiting Transport Connection Close Indication",
}

func (s State) Description() string {
	return stateDescriptions[s]
}

// Event is one of Evt1..Evt19.
type Event string

const (
	Evt1  Event = "Evt1"
	Evt2  Event = "Evt2"
	Evt3  Event = "Evt3"
	Evt4  Event = "Evt4"
	Evt5  Event = "Evt5"
	Evt6  Event = "Evt6"
	Evt7  Event = "Evt7"
	Evt8  Event = "Evt8"
	Evt9  Event = "Evt9"
	Evt10 Event = "Evt10"
	Evt11 Event = "Evt11"
	Evt12 Event = "Evt12"
	Evt13 Event = "Evt13"
	Evt14 Event = "Evt14"
	Evt15 Event = "Evt15"
	Evt16 Event = "Evt16"
	Evt17 Event = "Evt17"
	Evt18 Event = "Evt18"
	Evt19 Event = "Evt19"
)

var Events = []Event{
	Evt1, Evt2, Evt3, Evt4, Evt5, Evt6, Evt7, Evt8, Evt9, Evt10,
	Evt11, Evt12, Evt13, Evt14, Evt15, Evt16, Evt17, Evt18, Evt19,
}

var eventDescriptions = map[Event]string{
	Evt1:  "A-ASSOCIATE request (local user)",
	Evt2:  "Transport connect confirmation (local transport service)",
	Evt3:  "A-ASSOCIATE-AC PDU (received on transport connection)",
	Evt4:  "A-ASSOCIATE-RJ PDU (received on transport connection)",
	Evt5:  "Transport connection indication (local transport service)",
	Evt6:  "A-ASSOCIATE-RQ PDU (received on transport connection)",
	Evt7:  "A-ASSOCIATE response primitive (accept)",
	Evt8:  "A-ASSOCIATE response primitive (reject)",
	Evt9:  "P-DATA request primitive",
	Evt10: "P-DATA-TF PDU",
	Evt11: "A-RELEASE request primitive",
	Evt12: "A-RELEASE-RQ PDU (received on open transport connection)",
	Evt13: "A-RELEASE-RP PDU (received on transport connection)",
	Evt14: "A-RELEASE response primitive",
	Evt15: "A-ABORT request primitive",
	Evt16: "A-ABORT PDU (received on open transport connection)",
	Evt17: "Transport connection closed indication (local transport service)",
	Evt18: "ARTIM timer expired (Association reject/release timer)",
	Evt19: "Unrecognized or invalid PDU received",
}

func (e Event) Description() string {
	return eventDescriptions[e]
}

// Action is one of the PS3.8 table 9-6 to 9-9 actions.
type Action string

const (
	AE1  Action = "AE-1"
	AE2  Action = "AE-2"
	AE3  Action = "AE-3"
	AE4  Action = "AE-4"
	AE5  Action = "AE-5"
	AE6  Action = "AE-6"
	AE7  Action = "AE-7"
	AE8  Action = "AE-8"
	DT1  Action = "DT-1"
	DT2  Action = "DT-2"
	AR1  Action = "AR-1"
	AR2  Action = "AR-2"
	AR3  Action = "AR-3"
	AR4  Action = "AR-4"
	AR5  Action = "AR-5"
	AR6  Action = "AR-6"
	AR7  Action = "AR-7"
	AR8  Action = "AR-8"
	AR9  Action = "AR-9"
	AR10 Action = "AR-10"
	AA1  Action = "AA-1"
	AA2  Action = "AA-2"
	AA3  Action = "AA-3"
	AA4  Action = "AA-4"
	AA5  Action = "AA-5"
	AA6  Action = "AA-6"
	AA7  Action = "AA-7"
	AA8  Action = "AA-8"
)

var actionDescriptions = map[Action]string{
	AE1:  "Issue TRANSPORT CONNECT request primitive to local transport service",
	AE2:  "Send A-ASSOCIATE-RQ PDU",
	AE3:  "Issue A-ASSOCIATE confirmation (accept) primitive",
	AE4:  "Issue A-ASSOCIATE confirmation (reject) primitive and close transport connection",
	AE5:  "Issue Transport connection response primitive; start ARTIM timer",
	AE6:  "Stop ARTIM timer and if A-ASSOCIATE-RQ acceptable by service-provider issue A-ASSOCIATE indication primitive, otherwise issue A-ASSOCIATE-RJ-PDU and start ARTIM timer",
	AE7:  "Send A-ASSOCIATE-AC PDU",
	AE8:  "Send A-ASSOCIATE-RJ PDU and start ARTIM timer",
	DT1:  "Send P-DATA-TF PDU",
	DT2:  "Send P-DATA indication primitive",
	AR1:  "Send A-RELEASE-RQ PDU",
	AR2:  "Issue A-RELEASE indication primitive",
	AR3:  "Issue A-RELEASE confirmation primitive, and close transport connection",
	AR4:  "Issue A-RELEASE-RP PDU and start ARTIM timer",
	AR5:  "Stop ARTIM timer",
	AR6:  "Issue P-DATA indication",
	AR7:  "Issue P-DATA-TF PDU",
	AR8:  "Issue A-RELEASE indication (release collision)",
	AR9:  "Send A-RELEASE-RP PDU",
	AR10: "Issue A-RELEASE confirmation primitive",
	AA1:  "Send A-ABORT PDU (service-user source) and start (or restart if already started) ARTIM timer",
	AA2:  "Stop ARTIM timer if running. Close transport connection",
	AA3:  "If (service-user initiated abort): issue A-ABORT indication and close transport connection, otherwise (service-provider initiated abort): issue A-P-ABORT indication and close transport connection",
	AA4:  "Issue A-P-ABORT indication primitive",
	AA5:  "Stop ARTIM timer",
	AA6:  "Ignore PDU",
	AA7:  "Send A-ABORT PDU",
	AA8:  "Send A-ABORT PDU (service-provider source), issue an A-P-ABORT indication, and start ARTIM timer",
}

func (a Action) Description() string {
	return actionDescriptions[a]
}
