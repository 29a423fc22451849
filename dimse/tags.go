package dimse

import (
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// VR of a command element.
type VR string

const (
	VRUS VR = "US"
	VRUL VR = "UL"
	VRUI VR = "UI"
	VRAE VR = "AE"
	VRLO VR = "LO"
	VRAT VR = "AT"
	VRUN VR = "UN"
)

// Command set elements, group 0000 (PS3.7 annex E).
var (
	CommandGroupLength                   = tag.Tag{Group: 0x0000, Element: 0x0000}
	AffectedSOPClassUID                  = tag.Tag{Group: 0x0000, Element: 0x0002}
	RequestedSOPClassUID                 = tag.Tag{Group: 0x0000, Element: 0x0003}
	CommandField                         = tag.Tag{Group: 0x0000, Element: 0x0100}
	MessageID                            = tag.Tag{Group: 0x0000, Element: 0x0110}
	MessageIDBeingRespondedTo            = tag.Tag{Group: 0x0000, Element: 0x0120}
	MoveDestination                      = tag.Tag{Group: 0x0000, Element: 0x0600}
	Priority                             = tag.Tag{Group: 0x0000, Element: 0x0700}
	CommandDataSetType                   = tag.Tag{Group: 0x0000, Element: 0x0800}
	Status                               = tag.Tag{Group: 0x0000, Element: 0x0900}
	OffendingElement                     = tag.Tag{Group: 0x0000, Element: 0x0901}
	ErrorComment                         = tag.Tag{Group: 0x0000, Element: 0x0902}
	ErrorID                              = tag.Tag{Group: 0x0000, Element: 0x0903}
	AffectedSOPInstanceUID               = tag.Tag{Group: 0x0000, Element: 0x1000}
	RequestedSOPInstanceUID              = tag.Tag{Group: 0x0000, Element: 0x1001}
	EventTypeID                          = tag.Tag{Group: 0x0000, Element: 0x1002}
	AttributeIdentifierList              = tag.Tag{Group: 0x0000, Element: 0x1005}
	ActionTypeID                         = tag.Tag{Group: 0x0000, Element: 0x1008}
	NumberOfRemainingSuboperations       = tag.Tag{Group: 0x0000, Element: 0x1020}
	NumberOfCompletedSuboperations       = tag.Tag{Group: 0x0000, Element: 0x1021}
	NumberOfFailedSuboperations          = tag.Tag{Group: 0x0000, Element: 0x1022}
	NumberOfWarningSuboperations         = tag.Tag{Group: 0x0000, Element: 0x1023}
	MoveOriginatorApplicationEntityTitle = tag.Tag{Group: 0x0000, Element: 0x1030}
	MoveOriginatorMessageID              = tag.Tag{Group: 0x0000, Element: 0x1031}
)

type dictEntry struct {
	vr   VR
	name string
}

var dictionary = map[tag.Tag]dictEntry{
	CommandGroupLength:                   {VRUL, "CommandGroupLength"},
	AffectedSOPClassUID:                  {VRUI, "AffectedSOPClassUID"},
	RequestedSOPClassUID:                 {VRUI, "RequestedSOPClassUID"},
	CommandField:                         {VRUS, "CommandField"},
	MessageID:                            {VRUS, "MessageID"},
	MessageIDBeingRespondedTo:            {VRUS, "MessageIDBeingRespondedTo"},
	MoveDestination:                      {VRAE, "MoveDestination"},
	Priority:                             {VRUS, "Priority"},
	CommandDataSetType:                   {VRUS, "CommandDataSetType"},
	Status:                               {VRUS, "Status"},
	OffendingElement:                     {VRAT, "OffendingElement"},
	ErrorComment:                         {VRLO, "ErrorComment"},
	ErrorID:                              {VRUS, "ErrorID"},
	AffectedSOPInstanceUID:               {VRUI, "AffectedSOPInstanceUID"},
	RequestedSOPInstanceUID:              {VRUI, "RequestedSOPInstanceUID"},
	EventTypeID:                          {VRUS, "EventTypeID"},
	AttributeIdentifierList:              {VRAT, "AttributeIdentifierList"},
	ActionTypeID:                         {VRUS, "ActionTypeID"},
	NumberOfRemainingSuboperations:       {VRUS, "NumberOfRemainingSuboperations"},
	NumberOfCompletedSuboperations:       {VRUS, "NumberOfCompletedSuboperations"},
	NumberOfFailedSuboperations:          {VRUS, "NumberOfFailedSuboperations"},
	NumberOfWarningSuboperations:         {VRUS, "NumberOfWarningSuboperations"},
	MoveOriginatorApplicationEntityTitle: {VRAE, "MoveOriginatorApplicationEntityTitle"},
	MoveOriginatorMessageID:              {VRUS, "MoveOriginatorMessageID"},
}

// LookupVR returns the VR of a command element, VRUN when unknown.
func LookupVR(t tag.Tag) VR {
	if e, ok := dictionary[t]; ok {
		return e.vr
	}
	return VRUN
}

// TagName returns the keyword of a command element or its (gggg,eeee) form.
func TagName(t tag.Tag) string {
	if e, ok := dictionary[t]; ok {
		return e.name
	}
	return formatTag(t)
}

func formatTag(t tag.Tag) string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}
