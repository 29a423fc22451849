package common

// Observer event names.
const (
	EventFSMTransition = "fsm-transition"
	EventPDUSent       = "pdu-sent"
	EventPDURecv       = "pdu-recv"
	EventProtocolError = "protocol-error"
	EventDecodeFailed  = "decode-failed"
	EventDIMSESent     = "dimse-sent"
	EventDIMSERecv     = "dimse-recv"

	EventRequested   = "requested"
	EventAccepted    = "accepted"
	EventEstablished = "established"
	EventRejected    = "rejected"
	EventReleased    = "released"
	EventAborted     = "aborted"
	EventConnClosed  = "conn-closed"
)

var (
	// EventNames lists every event a registry can receive.
	EventNames = []string{
		EventFSMTransition, EventPDUSent, EventPDURecv, EventProtocolError, EventDecodeFailed,
		EventDIMSESent, EventDIMSERecv, EventRequested, EventAccepted, EventEstablished,
		EventRejected, EventReleased, EventAborted, EventConnClosed,
	}
)
