package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/funny/utest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/younglifestyle/dicom4go/pdu"
	"github.com/younglifestyle/dicom4go/transport"
)

func TestSendReceive(t *testing.T) {
	a, b := transport.Pipe()
	local, remote := New(a, 0), New(b, 0)
	defer local.Close()
	defer remote.Close()

	sent := []pdu.PDU{
		&pdu.ReleaseRQ{},
		&pdu.PDataTF{Items: []pdu.PDV{{ContextID: 1, Command: true, Last: true, Data: []byte{1, 2, 3, 4}}}},
		&pdu.Abort{Source: pdu.AbortSourceServiceUser},
	}
	go func() {
		for _, p := range sent {
			if _, err := local.Send(p); err != nil {
				return
			}
		}
	}()

	for _, want := range sent {
		got, raw, err := remote.Receive()
		utest.IsNilNow(t, err)
		utest.EqualNow(t, got.Type(), want.Type())
		assert.Equal(t, want, got)
		encoded, err := pdu.Encode(want)
		utest.IsNilNow(t, err)
		assert.Equal(t, encoded, raw)
	}
}

func TestReceiveDecodeError(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
		want error
	}{
		{"unknown type", []byte{0x09, 0x00, 0x00, 0x00, 0x00, 0x00}, pdu.ErrUnknownPDUType},
		{"bad release body", []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00}, pdu.ErrItemTruncated},
		{"too large", []byte{0x04, 0x00, 0x00, 0x00, 0x10, 0x00}, ErrPDUTooLarge},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, b := transport.Pipe()
			defer a.Close()
			remote := New(b, 1024)
			defer remote.Close()

			go a.Send(c.raw)

			_, _, err := remote.Receive()
			require.Error(t, err)
			var de *pdu.DecodeError
			require.True(t, errors.As(err, &de), "%v", err)
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestReceiveTransportError(t *testing.T) {
	a, b := transport.Pipe()
	remote := New(b, 0)
	defer remote.Close()

	go func() {
		a.Send([]byte{0x04, 0x00})
		a.Close()
	}()

	_, _, err := remote.Receive()
	require.Error(t, err)
	var de *pdu.DecodeError
	assert.False(t, errors.As(err, &de))
	assert.False(t, remote.IsAlive())
}

func TestReadDeadline(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	remote := New(b, 0)
	defer remote.Close()

	require.NoError(t, remote.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, _, err := remote.Receive()
	require.Error(t, err)
	assert.True(t, transport.IsTimeout(err))
}

func TestSendEncodeError(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	defer b.Close()

	_, err := New(a, 0).Send(&pdu.PDataTF{})
	assert.ErrorIs(t, err, pdu.ErrInvalidItem)
}

func TestReceiveLimitAppliesToPData(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	remote := New(b, 8)
	defer remote.Close()

	rq := &pdu.AssociateRQ{
		ProtocolVersion:    pdu.ProtocolVersion,
		CalledAETitle:      "ANY-SCP",
		CallingAETitle:     "ECHOSCU",
		ApplicationContext: pdu.ApplicationContextName,
		PresentationContexts: []pdu.PresentationContextRQ{
			{ID: 1, AbstractSyntax: "1.2.840.10008.1.1", TransferSyntaxes: []string{"1.2.840.10008.1.2"}},
		},
	}
	small := &pdu.PDataTF{Items: []pdu.PDV{{ContextID: 1, Command: true, Last: true, Data: []byte{1, 2}}}}
	large := &pdu.PDataTF{Items: []pdu.PDV{{ContextID: 1, Command: true, Last: true, Data: []byte{1, 2, 3}}}}
	go func() {
		local := New(a, 0)
		for _, p := range []pdu.PDU{rq, small, large} {
			if _, err := local.Send(p); err != nil {
				return
			}
		}
	}()

	got, _, err := remote.Receive()
	utest.IsNilNow(t, err)
	utest.EqualNow(t, got.Type(), pdu.TypeAssociateRQ)

	got, _, err = remote.Receive()
	utest.IsNilNow(t, err)
	assert.Equal(t, small, got)

	_, _, err = remote.Receive()
	assert.ErrorIs(t, err, ErrPDUTooLarge)
}

func TestUnknownTypeKeepsFraming(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	remote := New(b, 0)
	defer remote.Close()

	go func() {
		a.Send([]byte{0x0A, 0x00, 0x00, 0x00, 0x00, 0x03, 0xAA, 0xBB, 0xCC})
		a.Send([]byte{0x06, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00})
	}()

	_, raw, err := remote.Receive()
	assert.ErrorIs(t, err, pdu.ErrUnknownPDUType)
	utest.EqualNow(t, len(raw), 9)

	p, _, err := remote.Receive()
	utest.IsNilNow(t, err)
	assert.Equal(t, &pdu.ReleaseRP{}, p)
}
