package pdu

import (
	"fmt"
	"strings"
)

// AssociateRQ is the A-ASSOCIATE-RQ PDU.
type AssociateRQ struct {
	ProtocolVersion      uint16
	CalledAETitle        string
	CallingAETitle       string
	ApplicationContext   string
	PresentationContexts []PresentationContextRQ
	UserInformation      *UserInformation
}

func (*AssociateRQ) Type() Type { return TypeAssociateRQ }

func (p *AssociateRQ) encodePayload(e *encoder) {
	if len(p.PresentationContexts) == 0 {
		e.fail(ErrNoPresentationContexts)
		return
	}
	encodeAssociateHeader(e, p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle, p.ApplicationContext)
	for _, pc := range p.PresentationContexts {
		pc.encode(e)
	}
	if p.UserInformation != nil {
		p.UserInformation.encode(e)
	}
}

func (p *AssociateRQ) String() string {
	parts := make([]string, 0, len(p.PresentationContexts))
	for _, pc := range p.PresentationContexts {
		parts = append(parts, pc.String())
	}
	return fmt.Sprintf("A-ASSOCIATE-RQ{called:%q calling:%q app:%s contexts:[%s]}",
		p.CalledAETitle, p.CallingAETitle, p.ApplicationContext, strings.Join(parts, " "))
}

// AssociateAC is the A-ASSOCIATE-AC PDU. The AE titles echo the request.
type AssociateAC struct {
	ProtocolVersion      uint16
	CalledAETitle        string
	CallingAETitle       string
	ApplicationContext   string
	PresentationContexts []PresentationContextAC
	UserInformation      *UserInformation
}

func (*AssociateAC) Type() Type { return TypeAssociateAC }

func (p *AssociateAC) encodePayload(e *encoder) {
	if len(p.PresentationContexts) == 0 {
		e.fail(ErrNoPresentationContexts)
		return
	}
	encodeAssociateHeader(e, p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle, p.ApplicationContext)
	for _, pc := range p.PresentationContexts {
		pc.encode(e)
	}
	if p.UserInformation != nil {
		p.UserInformation.encode(e)
	}
}

func (p *AssociateAC) String() string {
	parts := make([]string, 0, len(p.PresentationContexts))
	for _, pc := range p.PresentationContexts {
		parts = append(parts, pc.String())
	}
	return fmt.Sprintf("A-ASSOCIATE-AC{called:%q calling:%q contexts:[%s]}",
		p.CalledAETitle, p.CallingAETitle, strings.Join(parts, " "))
}

func encodeAssociateHeader(e *encoder, version uint16, called, calling, appContext string) {
	e.u16(version)
	e.zeros(2)
	e.aeTitle(called)
	e.aeTitle(calling)
	e.zeros(32)
	e.item(ItemApplicationContext, func(e *encoder) { e.str(appContext) })
}

// associateVariable holds the decoded variable part shared by RQ and AC.
type associateVariable struct {
	version    uint16
	called     string
	calling    string
	appContext string
	userInfo   *UserInformation
}

func decodeAssociate(r *reader, onContext func(typ byte, start int, body *reader)) associateVariable {
	var v associateVariable
	v.version = r.u16()
	r.skip(2)
	v.called = strings.TrimRight(string(r.take(16)), " \x00")
	v.calling = strings.TrimRight(string(r.take(16)), " \x00")
	r.skip(32)
	for r.more() {
		start := r.offset()
		typ, body := r.item()
		if body == nil {
			break
		}
		switch typ {
		case ItemApplicationContext:
			v.appContext = uid(body.rest())
		case ItemPresentationContextRQ, ItemPresentationContextAC:
			onContext(typ, start, body)
		case ItemUserInformation:
			r.within(body, func(b *reader) { v.userInfo = decodeUserInformation(b) })
		default:
			r.failAt(start, ErrUnknownItem, "item 0x%02x", typ)
		}
	}
	return v
}

func decodeAssociateRQ(r *reader) *AssociateRQ {
	p := &AssociateRQ{}
	v := decodeAssociate(r, func(typ byte, start int, body *reader) {
		if typ != ItemPresentationContextRQ {
			r.failAt(start, ErrUnknownItem, "item 0x%02x in %s", typ, TypeAssociateRQ)
			return
		}
		r.within(body, func(b *reader) {
			p.PresentationContexts = append(p.PresentationContexts, decodePresentationContextRQ(b))
		})
	})
	p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle = v.version, v.called, v.calling
	p.ApplicationContext, p.UserInformation = v.appContext, v.userInfo
	if r.err == nil && len(p.PresentationContexts) == 0 {
		r.fail(ErrNoPresentationContexts, "")
	}
	return p
}

func decodeAssociateAC(r *reader) *AssociateAC {
	p := &AssociateAC{}
	v := decodeAssociate(r, func(typ byte, start int, body *reader) {
		if typ != ItemPresentationContextAC {
			r.failAt(start, ErrUnknownItem, "item 0x%02x in %s", typ, TypeAssociateAC)
			return
		}
		r.within(body, func(b *reader) {
			p.PresentationContexts = append(p.PresentationContexts, decodePresentationContextAC(b))
		})
	})
	p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle = v.version, v.called, v.calling
	p.ApplicationContext, p.UserInformation = v.appContext, v.userInfo
	if r.err == nil && len(p.PresentationContexts) == 0 {
		r.fail(ErrNoPresentationContexts, "")
	}
	return p
}

// AssociateRJ is the A-ASSOCIATE-RJ PDU.
type AssociateRJ struct {
	Result byte
	Source byte
	Reason byte
}

func (*AssociateRJ) Type() Type { return TypeAssociateRJ }

func (p *AssociateRJ) encodePayload(e *encoder) {
	e.zeros(1)
	e.u8(p.Result)
	e.u8(p.Source)
	e.u8(p.Reason)
}

func (p *AssociateRJ) String() string {
	return fmt.Sprintf("A-ASSOCIATE-RJ{result:%d source:%d reason:%d}", p.Result, p.Source, p.Reason)
}

func decodeAssociateRJ(r *reader) *AssociateRJ {
	r.skip(1)
	return &AssociateRJ{Result: r.u8(), Source: r.u8(), Reason: r.u8()}
}

// ReleaseRQ is the A-RELEASE-RQ PDU.
type ReleaseRQ struct{}

func (*ReleaseRQ) Type() Type               { return TypeReleaseRQ }
func (*ReleaseRQ) encodePayload(e *encoder) { e.zeros(4) }
func (*ReleaseRQ) String() string           { return "A-RELEASE-RQ" }

// ReleaseRP is the A-RELEASE-RP PDU.
type ReleaseRP struct{}

func (*ReleaseRP) Type() Type               { return TypeReleaseRP }
func (*ReleaseRP) encodePayload(e *encoder) { e.zeros(4) }
func (*ReleaseRP) String() string           { return "A-RELEASE-RP" }

// Abort is the A-ABORT PDU.
type Abort struct {
	Source byte
	Reason byte
}

func (*Abort) Type() Type { return TypeAbort }

func (p *Abort) encodePayload(e *encoder) {
	e.zeros(2)
	e.u8(p.Source)
	e.u8(p.Reason)
}

func (p *Abort) String() string {
	return fmt.Sprintf("A-ABORT{source:%d reason:%d}", p.Source, p.Reason)
}

func decodeAbort(r *reader) *Abort {
	r.skip(2)
	return &Abort{Source: r.u8(), Reason: r.u8()}
}

// PDV is one presentation data value item of a P-DATA-TF.
type PDV struct {
	ContextID byte
	Command   bool
	Last      bool
	Data      []byte
}

// PDVOverhead is the item length, context ID and control header.
const PDVOverhead = 6

func (v PDV) header() byte {
	var h byte
	if v.Command {
		h |= 0x01
	}
	if v.Last {
		h |= 0x02
	}
	return h
}

func (v PDV) String() string {
	kind := "data"
	if v.Command {
		kind = "command"
	}
	return fmt.Sprintf("pdv{ctx:%d %s last:%v len:%d}", v.ContextID, kind, v.Last, len(v.Data))
}

// PDataTF is the P-DATA-TF PDU.
type PDataTF struct {
	Items []PDV
}

func (*PDataTF) Type() Type { return TypePDataTF }

func (p *PDataTF) encodePayload(e *encoder) {
	if len(p.Items) == 0 {
		e.fail(fmt.Errorf("%w: P-DATA-TF without PDV items", ErrInvalidItem))
		return
	}
	for _, v := range p.Items {
		e.u32(uint32(2 + len(v.Data)))
		e.u8(v.ContextID)
		e.u8(v.header())
		e.raw(v.Data)
	}
}

func (p *PDataTF) String() string {
	parts := make([]string, 0, len(p.Items))
	for _, v := range p.Items {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("P-DATA-TF[%s]", strings.Join(parts, " "))
}

// Length is the encoded payload size.
func (p *PDataTF) Length() int {
	n := 0
	for _, v := range p.Items {
		n += PDVOverhead + len(v.Data)
	}
	return n
}

func decodePDataTF(r *reader) *PDataTF {
	p := &PDataTF{}
	for r.more() {
		start := r.offset()
		if r.remaining() < 4 {
			r.failAt(start, ErrItemTruncated, "PDV length needs 4 bytes, have %d", r.remaining())
			break
		}
		length := r.u32()
		if length < 2 {
			r.failAt(start, ErrInvalidItem, "PDV length %d", length)
			break
		}
		if uint64(length) > uint64(r.remaining()) {
			r.failAt(start, ErrItemTruncated, "PDV declares %d bytes, have %d", length, r.remaining())
			break
		}
		v := PDV{ContextID: r.u8()}
		h := r.u8()
		if h&^0x03 != 0 {
			r.failAt(start+5, ErrInvalidItem, "control header 0x%02x", h)
			break
		}
		v.Command, v.Last = h&0x01 != 0, h&0x02 != 0
		v.Data = r.take(int(length) - 2)
		p.Items = append(p.Items, v)
	}
	if r.err == nil && len(p.Items) == 0 {
		r.fail(ErrInvalidItem, "P-DATA-TF without PDV items")
	}
	return p
}
