package pdu

import (
	"fmt"
	"strings"
)

// PresentationContextRQ is item 0x20.
type PresentationContextRQ struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string
}

func (v PresentationContextRQ) encode(e *encoder) {
	e.item(ItemPresentationContextRQ, func(e *encoder) {
		e.u8(v.ID)
		e.zeros(3)
		e.item(ItemAbstractSyntax, func(e *encoder) { e.str(v.AbstractSyntax) })
		for _, ts := range v.TransferSyntaxes {
			ts := ts
			e.item(ItemTransferSyntax, func(e *encoder) { e.str(ts) })
		}
	})
}

func (v PresentationContextRQ) String() string {
	return fmt.Sprintf("ctx{id:%d as:%s ts:[%s]}", v.ID, v.AbstractSyntax, strings.Join(v.TransferSyntaxes, " "))
}

func decodePresentationContextRQ(r *reader) PresentationContextRQ {
	var v PresentationContextRQ
	v.ID = r.u8()
	r.skip(3)
	for r.more() {
		start := r.offset()
		typ, body := r.item()
		if body == nil {
			break
		}
		switch typ {
		case ItemAbstractSyntax:
			v.AbstractSyntax = uid(body.rest())
		case ItemTransferSyntax:
			v.TransferSyntaxes = append(v.TransferSyntaxes, uid(body.rest()))
		default:
			r.failAt(start, ErrUnknownItem, "item 0x%02x in presentation context %d", typ, v.ID)
			return v
		}
	}
	if v.AbstractSyntax == "" {
		r.fail(ErrInvalidItem, "presentation context %d has no abstract syntax", v.ID)
	} else if len(v.TransferSyntaxes) == 0 {
		r.fail(ErrInvalidItem, "presentation context %d has no transfer syntax", v.ID)
	}
	return v
}

// PresentationContextAC is item 0x21.
type PresentationContextAC struct {
	ID     byte
	Result byte
	// TransferSyntax is not significant unless Result is acceptance.
	TransferSyntax string
}

func (v PresentationContextAC) encode(e *encoder) {
	e.item(ItemPresentationContextAC, func(e *encoder) {
		e.u8(v.ID)
		e.zeros(1)
		e.u8(v.Result)
		e.zeros(1)
		e.item(ItemTransferSyntax, func(e *encoder) { e.str(v.TransferSyntax) })
	})
}

func (v PresentationContextAC) String() string {
	return fmt.Sprintf("ctx{id:%d result:%d ts:%s}", v.ID, v.Result, v.TransferSyntax)
}

func decodePresentationContextAC(r *reader) PresentationContextAC {
	var v PresentationContextAC
	v.ID = r.u8()
	r.skip(1)
	v.Result = r.u8()
	r.skip(1)
	for r.more() {
		start := r.offset()
		typ, body := r.item()
		if body == nil {
			break
		}
		if typ != ItemTransferSyntax {
			r.failAt(start, ErrUnknownItem, "item 0x%02x in presentation context %d", typ, v.ID)
			return v
		}
		v.TransferSyntax = uid(body.rest())
	}
	return v
}

// SubItem is a user information sub-item.
type SubItem interface {
	ItemType() byte
	encode(e *encoder)
}

// UserInformation is item 0x50.
type UserInformation struct {
	Items []SubItem
}

func (v *UserInformation) encode(e *encoder) {
	e.item(ItemUserInformation, func(e *encoder) {
		for _, sub := range v.Items {
			sub.encode(e)
		}
	})
}

func (v *UserInformation) find(typ byte) SubItem {
	if v == nil {
		return nil
	}
	for _, sub := range v.Items {
		if sub.ItemType() == typ {
			return sub
		}
	}
	return nil
}

// MaximumLength returns the maximum length sub-item value.
func (v *UserInformation) MaximumLength() (uint32, bool) {
	if sub, ok := v.find(SubItemMaximumLength).(*MaximumLength); ok {
		return sub.Length, true
	}
	return 0, false
}

func (v *UserInformation) ImplementationClassUID() string {
	if sub, ok := v.find(SubItemImplementationClassUID).(*ImplementationClassUID); ok {
		return sub.UID
	}
	return ""
}

func (v *UserInformation) ImplementationVersionName() string {
	if sub, ok := v.find(SubItemImplementationVersionName).(*ImplementationVersionName); ok {
		return sub.Name
	}
	return ""
}

// RoleSelections returns every SCP/SCU role selection sub-item.
func (v *UserInformation) RoleSelections() []*RoleSelection {
	if v == nil {
		return nil
	}
	var out []*RoleSelection
	for _, sub := range v.Items {
		if rs, ok := sub.(*RoleSelection); ok {
			out = append(out, rs)
		}
	}
	return out
}

func decodeUserInformation(r *reader) *UserInformation {
	v := &UserInformation{}
	for r.more() {
		typ, body := r.item()
		if body == nil {
			break
		}
		sub := decodeSubItem(typ, body)
		if body.err != nil {
			r.err = body.err
			return v
		}
		body.expectEnd()
		if body.err != nil {
			r.err = body.err
			return v
		}
		v.Items = append(v.Items, sub)
	}
	return v
}

func decodeSubItem(typ byte, r *reader) SubItem {
	switch typ {
	case SubItemMaximumLength:
		return &MaximumLength{Length: r.u32()}
	case SubItemImplementationClassUID:
		return &ImplementationClassUID{UID: uid(r.rest())}
	case SubItemImplementationVersionName:
		return &ImplementationVersionName{Name: strings.TrimRight(string(r.rest()), " \x00")}
	case SubItemAsyncOperationsWindow:
		return &AsyncOperationsWindow{Invoked: r.u16(), Performed: r.u16()}
	case SubItemRoleSelection:
		v := &RoleSelection{}
		v.SOPClassUID = uid(r.take(int(r.u16())))
		v.SCURole = r.u8()
		v.SCPRole = r.u8()
		return v
	case SubItemSOPClassExtendedNegotiation:
		v := &SOPClassExtendedNegotiation{}
		v.SOPClassUID = uid(r.take(int(r.u16())))
		v.Info = r.rest()
		return v
	case SubItemUserIdentityRQ:
		v := &UserIdentityRQ{}
		v.IdentityType = r.u8()
		v.PositiveResponseRequested = r.u8() == 1
		v.PrimaryField = r.take(int(r.u16()))
		v.SecondaryField = r.take(int(r.u16()))
		return v
	case SubItemUserIdentityAC:
		return &UserIdentityAC{ServerResponse: r.take(int(r.u16()))}
	default:
		return &RawSubItem{Type: typ, Data: r.rest()}
	}
}

// MaximumLength is sub-item 0x51. Zero means no limit.
type MaximumLength struct {
	Length uint32
}

func (*MaximumLength) ItemType() byte { return SubItemMaximumLength }
func (v *MaximumLength) encode(e *encoder) {
	e.item(SubItemMaximumLength, func(e *encoder) { e.u32(v.Length) })
}

// ImplementationClassUID is sub-item 0x52.
type ImplementationClassUID struct {
	UID string
}

func (*ImplementationClassUID) ItemType() byte { return SubItemImplementationClassUID }
func (v *ImplementationClassUID) encode(e *encoder) {
	e.item(SubItemImplementationClassUID, func(e *encoder) { e.str(v.UID) })
}

// ImplementationVersionName is sub-item 0x55, at most 16 characters.
type ImplementationVersionName struct {
	Name string
}

func (*ImplementationVersionName) ItemType() byte { return SubItemImplementationVersionName }
func (v *ImplementationVersionName) encode(e *encoder) {
	if len(v.Name) > 16 {
		e.fail(fmt.Errorf("%w: implementation version name %q longer than 16", ErrInvalidItem, v.Name))
		return
	}
	e.item(SubItemImplementationVersionName, func(e *encoder) { e.str(v.Name) })
}

// AsyncOperationsWindow is sub-item 0x53.
type AsyncOperationsWindow struct {
	Invoked   uint16
	Performed uint16
}

func (*AsyncOperationsWindow) ItemType() byte { return SubItemAsyncOperationsWindow }
func (v *AsyncOperationsWindow) encode(e *encoder) {
	e.item(SubItemAsyncOperationsWindow, func(e *encoder) {
		e.u16(v.Invoked)
		e.u16(v.Performed)
	})
}

// RoleSelection is sub-item 0x54.
type RoleSelection struct {
	SOPClassUID string
	SCURole     byte
	SCPRole     byte
}

func (*RoleSelection) ItemType() byte { return SubItemRoleSelection }
func (v *RoleSelection) encode(e *encoder) {
	e.item(SubItemRoleSelection, func(e *encoder) {
		e.u16(uint16(len(v.SOPClassUID)))
		e.str(v.SOPClassUID)
		e.u8(v.SCURole)
		e.u8(v.SCPRole)
	})
}

// SOPClassExtendedNegotiation is sub-item 0x56. Info is service specific.
type SOPClassExtendedNegotiation struct {
	SOPClassUID string
	Info        []byte
}

func (*SOPClassExtendedNegotiation) ItemType() byte { return SubItemSOPClassExtendedNegotiation }
func (v *SOPClassExtendedNegotiation) encode(e *encoder) {
	e.item(SubItemSOPClassExtendedNegotiation, func(e *encoder) {
		e.u16(uint16(len(v.SOPClassUID)))
		e.str(v.SOPClassUID)
		e.raw(v.Info)
	})
}

// UserIdentityRQ is sub-item 0x58.
type UserIdentityRQ struct {
	// IdentityType: 1 username, 2 username+passcode, 3 Kerberos, 4 SAML, 5 JWT.
	IdentityType              byte
	PositiveResponseRequested bool
	PrimaryField              []byte
	SecondaryField            []byte
}

func (*UserIdentityRQ) ItemType() byte { return SubItemUserIdentityRQ }
func (v *UserIdentityRQ) encode(e *encoder) {
	e.item(SubItemUserIdentityRQ, func(e *encoder) {
		e.u8(v.IdentityType)
		if v.PositiveResponseRequested {
			e.u8(1)
		} else {
			e.u8(0)
		}
		e.u16(uint16(len(v.PrimaryField)))
		e.raw(v.PrimaryField)
		e.u16(uint16(len(v.SecondaryField)))
		e.raw(v.SecondaryField)
	})
}

// UserIdentityAC is sub-item 0x59.
type UserIdentityAC struct {
	ServerResponse []byte
}

func (*UserIdentityAC) ItemType() byte { return SubItemUserIdentityAC }
func (v *UserIdentityAC) encode(e *encoder) {
	e.item(SubItemUserIdentityAC, func(e *encoder) {
		e.u16(uint16(len(v.ServerResponse)))
		e.raw(v.ServerResponse)
	})
}

// RawSubItem keeps a sub-item this package does not interpret.
type RawSubItem struct {
	Type byte
	Data []byte
}

func (v *RawSubItem) ItemType() byte { return v.Type }
func (v *RawSubItem) encode(e *encoder) {
	e.item(v.Type, func(e *encoder) { e.raw(v.Data) })
}

// uid strips the padding some peers append to UIDs.
func uid(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}
