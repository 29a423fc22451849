package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// byteWriter is the subset of dicomio.Writer the encoder needs.
type byteWriter interface {
	WriteByte(v byte) error
	WriteUInt16(v uint16) error
	WriteUInt32(v uint32) error
	WriteZeros(n int) error
	WriteString(v string) error
	WriteBytes(v []byte) error
}

// encoder writes big-endian PDU fields and remembers the first error.
type encoder struct {
	buf bytes.Buffer
	w   byteWriter
	err error
}

func newEncoder() *encoder {
	e := &encoder{}
	e.w = dicomio.NewWriter(&e.buf, binary.BigEndian, false)
	return e
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) u8(v byte) {
	if e.err == nil {
		e.err = e.w.WriteByte(v)
	}
}

func (e *encoder) u16(v uint16) {
	if e.err == nil {
		e.err = e.w.WriteUInt16(v)
	}
}

func (e *encoder) u32(v uint32) {
	if e.err == nil {
		e.err = e.w.WriteUInt32(v)
	}
}

func (e *encoder) zeros(n int) {
	if e.err == nil {
		e.err = e.w.WriteZeros(n)
	}
}

func (e *encoder) str(v string) {
	if e.err == nil && v != "" {
		e.err = e.w.WriteString(v)
	}
}

func (e *encoder) raw(v []byte) {
	if e.err == nil && len(v) > 0 {
		e.err = e.w.WriteBytes(v)
	}
}

// item writes typ, a reserved byte, a 2 byte length and the body.
func (e *encoder) item(typ byte, body func(*encoder)) {
	if e.err != nil {
		return
	}
	sub := newEncoder()
	body(sub)
	if sub.err != nil {
		e.fail(sub.err)
		return
	}
	if sub.buf.Len() > math.MaxUint16 {
		e.fail(fmt.Errorf("%w: item 0x%02x is %d bytes", ErrInvalidItem, typ, sub.buf.Len()))
		return
	}
	e.u8(typ)
	e.zeros(1)
	e.u16(uint16(sub.buf.Len()))
	e.raw(sub.buf.Bytes())
}

// aeTitle writes a 16 byte space padded AE title.
func (e *encoder) aeTitle(title string) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 16 {
		e.fail(fmt.Errorf("%w: AE title %q must be 1-16 characters", ErrInvalidItem, title))
		return
	}
	e.str(title + strings.Repeat(" ", 16-len(title)))
}

// Encode returns the wire form of p including the 6 byte header.
func Encode(p PDU) ([]byte, error) {
	body := newEncoder()
	p.encodePayload(body)
	if body.err != nil {
		return nil, fmt.Errorf("pdu: encode %s: %w", p.Type(), body.err)
	}
	if uint64(body.buf.Len()) > math.MaxUint32 {
		return nil, fmt.Errorf("pdu: encode %s: payload of %d bytes", p.Type(), body.buf.Len())
	}

	out := newEncoder()
	out.u8(byte(p.Type()))
	out.zeros(1)
	out.u32(uint32(body.buf.Len()))
	out.raw(body.buf.Bytes())
	if out.err != nil {
		return nil, fmt.Errorf("pdu: encode %s: %w", p.Type(), out.err)
	}
	return out.buf.Bytes(), nil
}
