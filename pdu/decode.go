package pdu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrUnknownPDUType         = errors.New("pdu: unknown PDU type")
	ErrTruncated              = errors.New("pdu: declared length exceeds available bytes")
	ErrLengthMismatch         = errors.New("pdu: length does not match content")
	ErrItemTruncated          = errors.New("pdu: item truncated")
	ErrUnknownItem            = errors.New("pdu: unexpected item type")
	ErrInvalidItem            = errors.New("pdu: invalid item")
	ErrNoPresentationContexts = errors.New("pdu: no presentation context items")
)

// DecodeError reports where in the PDU bytes decoding failed.
type DecodeError struct {
	Offset int
	Type   Type
	Err    error
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s at offset %d in %s: %s", e.Err, e.Offset, e.Type, e.Detail)
	}
	return fmt.Sprintf("%s at offset %d in %s", e.Err, e.Offset, e.Type)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// reader walks a byte slice, tracking the absolute offset of each field.
// After the first failure every read returns zero values.
type reader struct {
	buf  []byte
	pos  int
	base int
	typ  Type
	err  *DecodeError
}

func (r *reader) offset() int { return r.base + r.pos }

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) more() bool { return r.err == nil && r.remaining() > 0 }

func (r *reader) failAt(offset int, err error, format string, args ...interface{}) {
	if r.err == nil {
		r.err = &DecodeError{Offset: offset, Type: r.typ, Err: err, Detail: fmt.Sprintf(format, args...)}
	}
}

func (r *reader) fail(err error, format string, args ...interface{}) {
	r.failAt(r.offset(), err, format, args...)
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n > r.remaining() {
		r.fail(ErrItemTruncated, "need %d bytes, have %d", n, r.remaining())
		return false
	}
	return true
}

func (r *reader) u8() byte {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) skip(n int) {
	if r.need(n) {
		r.pos += n
	}
}

// take copies the next n bytes; zero length yields nil.
func (r *reader) take(n int) []byte {
	if n == 0 || !r.need(n) {
		return nil
	}
	v := append([]byte(nil), r.buf[r.pos:r.pos+n]...)
	r.pos += n
	return v
}

func (r *reader) rest() []byte {
	return r.take(r.remaining())
}

// sub returns a reader over the next n bytes sharing r's error slot.
func (r *reader) sub(n int) *reader {
	s := &reader{buf: r.buf[r.pos : r.pos+n], base: r.offset(), typ: r.typ}
	r.pos += n
	return s
}

// item reads an item header and returns a reader over exactly its body.
// A nil reader means r has failed.
func (r *reader) item() (byte, *reader) {
	start := r.offset()
	if r.remaining() < 4 {
		r.failAt(start, ErrItemTruncated, "item header needs 4 bytes, have %d", r.remaining())
		return 0, nil
	}
	typ := r.u8()
	r.skip(1)
	length := int(r.u16())
	if length > r.remaining() {
		r.failAt(start, ErrItemTruncated, "item 0x%02x declares %d bytes, have %d", typ, length, r.remaining())
		return typ, nil
	}
	return typ, r.sub(length)
}

func (r *reader) expectEnd() {
	if r.err == nil && r.remaining() != 0 {
		r.fail(ErrLengthMismatch, "%d unread bytes", r.remaining())
	}
}

// within decodes a nested item body and folds its error into r.
func (r *reader) within(body *reader, fn func(*reader)) {
	fn(body)
	body.expectEnd()
	if body.err != nil && r.err == nil {
		r.err = body.err
	}
}

// DecodeHeader parses the 6 byte PDU header.
func DecodeHeader(b []byte) (Type, uint32, error) {
	if len(b) < HeaderLength {
		return 0, 0, &DecodeError{Offset: len(b), Err: ErrTruncated, Detail: "short header"}
	}
	t := Type(b[0])
	if !t.Known() {
		return t, 0, &DecodeError{Offset: 0, Type: t, Err: ErrUnknownPDUType}
	}
	return t, binary.BigEndian.Uint32(b[2:6]), nil
}

// Decode parses one complete PDU. b must hold exactly the header and the
// declared payload.
func Decode(b []byte) (PDU, error) {
	t, length, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	avail := len(b) - HeaderLength
	if uint64(length) > uint64(avail) {
		return nil, &DecodeError{Offset: 2, Type: t, Err: ErrTruncated,
			Detail: fmt.Sprintf("declares %d bytes, have %d", length, avail)}
	}
	if int(length) < avail {
		return nil, &DecodeError{Offset: HeaderLength + int(length), Type: t, Err: ErrLengthMismatch,
			Detail: fmt.Sprintf("%d bytes after payload", avail-int(length))}
	}

	r := &reader{buf: b[HeaderLength:], base: HeaderLength, typ: t}
	var p PDU
	switch t {
	case TypeAssociateRQ:
		p = decodeAssociateRQ(r)
	case TypeAssociateAC:
		p = decodeAssociateAC(r)
	case TypeAssociateRJ:
		p = decodeAssociateRJ(r)
	case TypePDataTF:
		p = decodePDataTF(r)
	case TypeReleaseRQ:
		r.skip(4)
		p = &ReleaseRQ{}
	case TypeReleaseRP:
		r.skip(4)
		p = &ReleaseRP{}
	case TypeAbort:
		p = decodeAbort(r)
	}
	r.expectEnd()
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}
