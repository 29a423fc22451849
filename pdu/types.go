// Package pdu encodes and decodes DICOM Upper Layer protocol data units
// (PS3.8 section 9.3).
package pdu

import "fmt"

// Type is the first byte of every PDU.
type Type byte

const (
	TypeAssociateRQ Type = 0x01
	TypeAssociateAC Type = 0x02
	TypeAssociateRJ Type = 0x03
	TypePDataTF     Type = 0x04
	TypeReleaseRQ   Type = 0x05
	TypeReleaseRP   Type = 0x06
	TypeAbort       Type = 0x07
)

// HeaderLength is type, reserved and the 4 byte length.
const HeaderLength = 6

var typeNames = map[Type]string{
	TypeAssociateRQ: "A-ASSOCIATE-RQ",
	TypeAssociateAC: "A-ASSOCIATE-AC",
	TypeAssociateRJ: "A-ASSOCIATE-RJ",
	TypePDataTF:     "P-DATA-TF",
	TypeReleaseRQ:   "A-RELEASE-RQ",
	TypeReleaseRP:   "A-RELEASE-RP",
	TypeAbort:       "A-ABORT",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PDU(0x%02x)", byte(t))
}

// Known reports whether t is one of the seven PS3.8 PDU types.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// Item types of the variable part of A-ASSOCIATE-RQ/AC.
const (
	ItemApplicationContext    byte = 0x10
	ItemPresentationContextRQ byte = 0x20
	ItemPresentationContextAC byte = 0x21
	ItemAbstractSyntax        byte = 0x30
	ItemTransferSyntax        byte = 0x40
	ItemUserInformation       byte = 0x50

	SubItemMaximumLength               byte = 0x51
	SubItemImplementationClassUID      byte = 0x52
	SubItemAsyncOperationsWindow       byte = 0x53
	SubItemRoleSelection               byte = 0x54
	SubItemImplementationVersionName   byte = 0x55
	SubItemSOPClassExtendedNegotiation byte = 0x56
	SubItemUserIdentityRQ              byte = 0x58
	SubItemUserIdentityAC              byte = 0x59
)

// ProtocolVersion is the only version defined by PS3.8.
const ProtocolVersion uint16 = 0x0001

// ApplicationContextName is the DICOM application context.
const ApplicationContextName = "1.2.840.10008.3.1.1.1"

// A-ASSOCIATE-RJ result, source and reason values (PS3.8 table 9-21).
const (
	RejectResultPermanent byte = 0x01
	RejectResultTransient byte = 0x02

	RejectSourceServiceUser                 byte = 0x01
	RejectSourceServiceProviderACSE         byte = 0x02
	RejectSourceServiceProviderPresentation byte = 0x03

	// source 1
	RejectReasonNoReasonGiven                  byte = 0x01
	RejectReasonApplicationContextNotSupported byte = 0x02
	RejectReasonCallingAENotRecognized         byte = 0x03
	RejectReasonCalledAENotRecognized          byte = 0x07
	// source 2
	RejectReasonProtocolVersionNotSupported byte = 0x02
	// source 3
	RejectReasonTemporaryCongestion byte = 0x01
	RejectReasonLocalLimitExceeded  byte = 0x02
)

// A-ABORT source and reason values (PS3.8 table 9-26).
const (
	AbortSourceServiceUser     byte = 0x00
	AbortSourceServiceProvider byte = 0x02

	AbortReasonNotSpecified          byte = 0x00
	AbortReasonUnrecognizedPDU       byte = 0x01
	AbortReasonUnexpectedPDU         byte = 0x02
	AbortReasonUnrecognizedParameter byte = 0x04
	AbortReasonUnexpectedParameter   byte = 0x05
	AbortReasonInvalidParameter      byte = 0x06
)

// PDU is one of the seven Upper Layer PDUs.
type PDU interface {
	Type() Type
	String() string
	encodePayload(e *encoder)
}
