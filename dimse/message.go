package dimse

import (
	"fmt"

	"github.com/ahmetb/go-linq/v3"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Command field values.
const (
	CStoreRQ        uint16 = 0x0001
	CStoreRSP       uint16 = 0x8001
	CGetRQ          uint16 = 0x0010
	CGetRSP         uint16 = 0x8010
	CFindRQ         uint16 = 0x0020
	CFindRSP        uint16 = 0x8020
	CMoveRQ         uint16 = 0x0021
	CMoveRSP        uint16 = 0x8021
	CEchoRQ         uint16 = 0x0030
	CEchoRSP        uint16 = 0x8030
	CCancelRQ       uint16 = 0x0FFF
	NEventReportRQ  uint16 = 0x0100
	NEventReportRSP uint16 = 0x8100
	NGetRQ          uint16 = 0x0110
	NGetRSP         uint16 = 0x8110
	NSetRQ          uint16 = 0x0120
	NSetRSP         uint16 = 0x8120
	NActionRQ       uint16 = 0x0130
	NActionRSP      uint16 = 0x8130
	NCreateRQ       uint16 = 0x0140
	NCreateRSP      uint16 = 0x8140
	NDeleteRQ       uint16 = 0x0150
	NDeleteRSP      uint16 = 0x8150
)

// CommandDataSetType values.
const (
	DataSetPresent uint16 = 0x0001
	NoDataSet      uint16 = 0x0101
)

// Priority values.
const (
	PriorityMedium uint16 = 0x0000
	PriorityHigh   uint16 = 0x0001
	PriorityLow    uint16 = 0x0002
)

// Status values shared by every service.
const (
	StatusSuccess               uint16 = 0x0000
	StatusPending               uint16 = 0xFF00
	StatusCancel                uint16 = 0xFE00
	StatusWarning               uint16 = 0x0001
	StatusRefused               uint16 = 0xA700
	StatusFailure               uint16 = 0xC000
	StatusNoSuchSOP             uint16 = 0x0118
	StatusUnrecognizedOperation uint16 = 0x0211
)

// VerificationSOPClass is the abstract syntax of C-ECHO.
const VerificationSOPClass = "1.2.840.10008.1.1"

var commandNames = map[uint16]string{
	CStoreRQ:        "C_STORE_RQ",
	CStoreRSP:       "C_STORE_RSP",
	CGetRQ:          "C_GET_RQ",
	CGetRSP:         "C_GET_RSP",
	CFindRQ:         "C_FIND_RQ",
	CFindRSP:        "C_FIND_RSP",
	CMoveRQ:         "C_MOVE_RQ",
	CMoveRSP:        "C_MOVE_RSP",
	CEchoRQ:         "C_ECHO_RQ",
	CEchoRSP:        "C_ECHO_RSP",
	CCancelRQ:       "C_CANCEL_RQ",
	NEventReportRQ:  "N_EVENT_REPORT_RQ",
	NEventReportRSP: "N_EVENT_REPORT_RSP",
	NGetRQ:          "N_GET_RQ",
	NGetRSP:         "N_GET_RSP",
	NSetRQ:          "N_SET_RQ",
	NSetRSP:         "N_SET_RSP",
	NActionRQ:       "N_ACTION_RQ",
	NActionRSP:      "N_ACTION_RSP",
	NCreateRQ:       "N_CREATE_RQ",
	NCreateRSP:      "N_CREATE_RSP",
	NDeleteRQ:       "N_DELETE_RQ",
	NDeleteRSP:      "N_DELETE_RSP",
}

// CommandName returns "C_ECHO_RQ" style names.
func CommandName(field uint16) string {
	if name, ok := commandNames[field]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_0x%04X", field)
}

// CommandFieldByName is the inverse of CommandName.
func CommandFieldByName(name string) (uint16, bool) {
	kv := linq.From(commandNames).FirstWith(func(i interface{}) bool {
		return i.(linq.KeyValue).Value.(string) == name
	})
	if kv == nil {
		return 0, false
	}
	return kv.(linq.KeyValue).Key.(uint16), true
}

func isResponse(field uint16) bool {
	return field&0x8000 != 0
}

// usesPriority lists the requests that carry a Priority element.
func usesPriority(field uint16) bool {
	switch field {
	case CStoreRQ, CFindRQ, CGetRQ, CMoveRQ:
		return true
	}
	return false
}

// usesRequestedUID lists the requests addressed by Requested rather than
// Affected SOP class/instance.
func usesRequestedUID(field uint16) bool {
	switch field {
	case NGetRQ, NSetRQ, NActionRQ, NDeleteRQ:
		return true
	}
	return false
}

// Message is a DIMSE message: a command set and an optional opaque data set.
type Message struct {
	Command *CommandSet
	DataSet []byte
}

// NewRequest builds a request. MessageID, the SOP class UID and
// CommandDataSetType are set; dataSet may be nil.
func NewRequest(field, messageID uint16, sopClassUID string, dataSet []byte) *Message {
	m := &Message{Command: NewCommandSet()}
	m.Command.SetUS(CommandField, field)
	m.Command.SetUS(MessageID, messageID)
	if sopClassUID != "" {
		if usesRequestedUID(field) {
			m.Command.SetUI(RequestedSOPClassUID, sopClassUID)
		} else {
			m.Command.SetUI(AffectedSOPClassUID, sopClassUID)
		}
	}
	if usesPriority(field) {
		m.Command.SetUS(Priority, PriorityMedium)
	}
	m.SetDataSet(dataSet)
	return m
}

// NewResponse answers rq with status. The SOP class and instance UIDs of
// the request are echoed as affected UIDs.
func NewResponse(rq *Message, status uint16, dataSet []byte) *Message {
	m := &Message{Command: NewCommandSet()}
	m.Command.SetUS(CommandField, rq.CommandField()|0x8000)
	id, _ := rq.Command.US(MessageID)
	m.Command.SetUS(MessageIDBeingRespondedTo, id)
	m.Command.SetUS(Status, status)
	for _, pair := range [][2]tag.Tag{
		{AffectedSOPClassUID, RequestedSOPClassUID},
		{AffectedSOPInstanceUID, RequestedSOPInstanceUID},
	} {
		for _, src := range pair {
			if uid, ok := rq.Command.Text(src); ok {
				m.Command.SetUI(pair[0], uid)
				break
			}
		}
	}
	m.SetDataSet(dataSet)
	return m
}

// NewCEchoRQ builds a Verification request.
func NewCEchoRQ(messageID uint16) *Message {
	return NewRequest(CEchoRQ, messageID, VerificationSOPClass, nil)
}

// NewCStoreRQ builds a storage request for one encoded instance.
func NewCStoreRQ(messageID uint16, sopClassUID, sopInstanceUID string, dataSet []byte) *Message {
	m := NewRequest(CStoreRQ, messageID, sopClassUID, dataSet)
	m.Command.SetUI(AffectedSOPInstanceUID, sopInstanceUID)
	return m
}

// NewCCancelRQ cancels the operation started by request messageID.
func NewCCancelRQ(messageID uint16) *Message {
	m := &Message{Command: NewCommandSet()}
	m.Command.SetUS(CommandField, CCancelRQ)
	m.Command.SetUS(MessageIDBeingRespondedTo, messageID)
	m.SetDataSet(nil)
	return m
}

// SetDataSet replaces the data set and keeps CommandDataSetType in step.
func (m *Message) SetDataSet(ds []byte) {
	m.DataSet = ds
	if ds == nil {
		m.Command.SetUS(CommandDataSetType, NoDataSet)
	} else {
		m.Command.SetUS(CommandDataSetType, DataSetPresent)
	}
}

func (m *Message) CommandField() uint16 {
	v, _ := m.Command.US(CommandField)
	return v
}

func (m *Message) Name() string {
	return CommandName(m.CommandField())
}

func (m *Message) IsResponse() bool {
	return isResponse(m.CommandField())
}

// MessageID is the request's own ID.
func (m *Message) MessageID() (uint16, bool) {
	return m.Command.US(MessageID)
}

// RespondedTo is the MessageIDBeingRespondedTo of responses and C-CANCEL.
func (m *Message) RespondedTo() (uint16, bool) {
	return m.Command.US(MessageIDBeingRespondedTo)
}

// HasDataSet reports whether a data set follows the command set.
func (m *Message) HasDataSet() bool {
	v, ok := m.Command.US(CommandDataSetType)
	return ok && v != NoDataSet
}

func (m *Message) Status() (uint16, bool) {
	return m.Command.US(Status)
}

// SetPriority sets Priority on the requests that carry one and reports
// whether it applied.
func (m *Message) SetPriority(p uint16) bool {
	if !usesPriority(m.CommandField()) {
		return false
	}
	m.Command.SetUS(Priority, p)
	return true
}

func (m *Message) String() string {
	if id, ok := m.MessageID(); ok {
		return fmt.Sprintf("%s{id:%d data:%d}", m.Name(), id, len(m.DataSet))
	}
	id, _ := m.RespondedTo()
	status, _ := m.Status()
	return fmt.Sprintf("%s{rsp-to:%d status:0x%04X data:%d}", m.Name(), id, status, len(m.DataSet))
}
