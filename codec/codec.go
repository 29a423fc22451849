// Package codec frames PDUs on a transport: header first, then exactly the
// declared payload.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/younglifestyle/dicom4go/pdu"
	"github.com/younglifestyle/dicom4go/transport"
)

// DefaultMaxReceive bounds the payload of one received PDU. It is also the
// bound for every PDU other than P-DATA-TF when a smaller limit is set.
const DefaultMaxReceive = 64 * 1024 * 1024

var ErrPDUTooLarge = errors.New("codec: PDU exceeds receive limit")

// Codec reads and writes whole PDUs. Receive and Send may run on different
// goroutines; Receive itself is not reentrant.
type Codec struct {
	t          transport.Transport
	maxReceive uint32
}

// New wraps t. maxReceive bounds P-DATA-TF payloads, the locally declared
// maximum length; 0 selects DefaultMaxReceive.
func New(t transport.Transport, maxReceive uint32) *Codec {
	if maxReceive == 0 {
		maxReceive = DefaultMaxReceive
	}
	return &Codec{t: t, maxReceive: maxReceive}
}

func (c *Codec) Transport() transport.Transport {
	return c.t
}

// Receive blocks for the next PDU. It returns the raw bytes alongside the
// decoded value so callers can trace them. Errors from the transport are
// returned as is; malformed bytes yield a *pdu.DecodeError. After
// ErrPDUTooLarge the stream is no longer framed.
func (c *Codec) Receive() (pdu.PDU, []byte, error) {
	head, err := c.t.Receive(pdu.HeaderLength)
	if err != nil {
		return nil, nil, err
	}
	// the body of an unknown PDU type is still consumed so the stream
	// stays framed
	typ, length := pdu.Type(head[0]), binary.BigEndian.Uint32(head[2:6])
	if limit := c.limit(typ); length > limit {
		return nil, head, &pdu.DecodeError{Offset: 2, Type: typ, Err: ErrPDUTooLarge,
			Detail: fmt.Sprintf("declares %d bytes, limit %d", length, limit)}
	}

	raw := head
	if length > 0 {
		body, err := c.t.Receive(int(length))
		if err != nil {
			return nil, nil, err
		}
		raw = make([]byte, 0, pdu.HeaderLength+int(length))
		raw = append(raw, head...)
		raw = append(raw, body...)
	}

	p, err := pdu.Decode(raw)
	if err != nil {
		return nil, raw, err
	}
	return p, raw, nil
}

func (c *Codec) limit(typ pdu.Type) uint32 {
	if typ != pdu.TypePDataTF && c.maxReceive < DefaultMaxReceive {
		return DefaultMaxReceive
	}
	return c.maxReceive
}

// Send encodes p and writes it in one call.
func (c *Codec) Send(p pdu.PDU) ([]byte, error) {
	b, err := pdu.Encode(p)
	if err != nil {
		return nil, err
	}
	return b, c.t.Send(b)
}

// SetReadDeadline is a no-op when the transport cannot time out.
func (c *Codec) SetReadDeadline(t time.Time) error {
	if d, ok := c.t.(transport.Deadliner); ok {
		return d.SetReadDeadline(t)
	}
	return nil
}

func (c *Codec) IsAlive() bool {
	return c.t.IsAlive()
}

func (c *Codec) Close() error {
	return c.t.Close()
}
