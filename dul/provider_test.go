package dul

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/younglifestyle/dicom4go/codec"
	"github.com/younglifestyle/dicom4go/common"
	"github.com/younglifestyle/dicom4go/pdu"
	"github.com/younglifestyle/dicom4go/transport"
	"github.com/younglifestyle/dicom4go/utils"
)

const waitFor = 2 * time.Second

func testTimeouts() *common.Timeouts {
	t := common.NewTimeouts()
	t.SetARTIM(200 * time.Millisecond)
	t.SetNetwork(0)
	t.SetConnect(time.Second)
	return t
}

func associateRQ() *pdu.AssociateRQ {
	return &pdu.AssociateRQ{
		ProtocolVersion:    pdu.ProtocolVersion,
		CalledAETitle:      "ANY-SCP",
		CallingAETitle:     "ECHOSCU",
		ApplicationContext: pdu.ApplicationContextName,
		PresentationContexts: []pdu.PresentationContextRQ{
			{ID: 1, AbstractSyntax: "1.2.840.10008.1.1", TransferSyntaxes: []string{"1.2.840.10008.1.2"}},
		},
		UserInformation: &pdu.UserInformation{Items: []pdu.SubItem{&pdu.MaximumLength{Length: 16382}}},
	}
}

func associateAC() *pdu.AssociateAC {
	return &pdu.AssociateAC{
		ProtocolVersion:    pdu.ProtocolVersion,
		CalledAETitle:      "ANY-SCP",
		CallingAETitle:     "ECHOSCU",
		ApplicationContext: pdu.ApplicationContextName,
		PresentationContexts: []pdu.PresentationContextAC{
			{ID: 1, Result: 0, TransferSyntax: "1.2.840.10008.1.2"},
		},
		UserInformation: &pdu.UserInformation{Items: []pdu.SubItem{&pdu.MaximumLength{Length: 16382}}},
	}
}

// recorder collects observer events by name.
type recorder struct {
	mu     sync.Mutex
	events map[string][]common.Event
	notify chan string
}

func newRecorder(ev *common.Events) *recorder {
	r := &recorder{events: map[string][]common.Event{}, notify: make(chan string, 256)}
	for _, name := range common.EventNames {
		ev.Bind(name, r.record)
	}
	return r
}

func (r *recorder) record(e common.Event) error {
	r.mu.Lock()
	r.events[e.Name] = append(r.events[e.Name], e)
	r.mu.Unlock()
	select {
	case r.notify <- e.Name:
	default:
	}
	return nil
}

func (r *recorder) get(name string) []common.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]common.Event{}, r.events[name]...)
}

// rawPeer drives the far end of a pipe PDU by PDU.
type rawPeer struct {
	c *codec.Codec
}

func (r *rawPeer) send(t *testing.T, p pdu.PDU) {
	_, err := r.c.Send(p)
	require.NoError(t, err)
}

func (r *rawPeer) expect(t *testing.T, typ pdu.Type) pdu.PDU {
	require.NoError(t, r.c.SetReadDeadline(time.Now().Add(waitFor)))
	p, _, err := r.c.Receive()
	require.NoError(t, err)
	require.Equal(t, typ, p.Type(), "got %s", p)
	return p
}

func receive(t *testing.T, p *Provider) Primitive {
	prim, ok := p.Receive(waitFor)
	require.True(t, ok, "no primitive received")
	return prim
}

func eventually(t *testing.T, p *Provider, want State) {
	require.Eventually(t, func() bool { return p.State() == want }, waitFor, 5*time.Millisecond,
		"state %s, want %s", p.State(), want)
}

func waitDone(t *testing.T, p *Provider) {
	select {
	case <-p.Done():
	case <-time.After(waitFor):
		t.Fatalf("provider still in %s", p.State())
	}
}

// establishedAcceptor returns an acceptor in Sta6 with a raw requestor peer.
func establishedAcceptor(t *testing.T, timeouts *common.Timeouts, events *common.Events) (*Provider, *rawPeer) {
	a, b := transport.Pipe()
	p := NewProvider(Config{Timeouts: timeouts, Events: events})
	peer := &rawPeer{c: codec.New(a, 0)}
	t.Cleanup(func() {
		peer.c.Close()
		p.Stop()
	})

	require.NoError(t, p.Accept(b))
	peer.send(t, associateRQ())
	rq := receive(t, p)
	require.IsType(t, &pdu.AssociateRQ{}, rq)

	go func() { p.AcceptResponse(associateAC()) }()
	peer.expect(t, pdu.TypeAssociateAC)
	eventually(t, p, Sta6)
	return p, peer
}

func TestAssociationLifecycle(t *testing.T) {
	a, b := transport.Pipe()
	events := common.NewEvents(nil)
	rec := newRecorder(events)

	scu := NewProvider(Config{Timeouts: testTimeouts(), Dialer: transport.PipeDialer{Local: a}, Events: events})
	scp := NewProvider(Config{Timeouts: testTimeouts()})
	defer scu.Stop()
	defer scp.Stop()

	require.NoError(t, scp.Accept(b))
	assert.Equal(t, Sta2, scp.State())

	require.NoError(t, scu.Associate(context.Background(), associateRQ(), "pipe"))

	rq := receive(t, scp)
	require.IsType(t, &pdu.AssociateRQ{}, rq)
	assert.Equal(t, "ECHOSCU", rq.(*pdu.AssociateRQ).CallingAETitle)
	eventually(t, scp, Sta3)

	require.NoError(t, scp.AcceptResponse(associateAC()))
	ac := receive(t, scu)
	require.IsType(t, &pdu.AssociateAC{}, ac)
	eventually(t, scu, Sta6)
	assert.Equal(t, Sta6, scp.State())

	pdata := &pdu.PDataTF{Items: []pdu.PDV{{ContextID: 1, Command: true, Last: true, Data: []byte{1, 2, 3, 4}}}}
	require.NoError(t, scu.SendPData(pdata))
	got := receive(t, scp)
	assert.Equal(t, pdata, got)

	require.NoError(t, scu.ReleaseRequest())
	assert.IsType(t, &pdu.ReleaseRQ{}, receive(t, scp))
	eventually(t, scp, Sta8)

	require.NoError(t, scp.ReleaseResponse())
	assert.IsType(t, &pdu.ReleaseRP{}, receive(t, scu))

	waitDone(t, scu)
	waitDone(t, scp)
	assert.Equal(t, Sta1, scu.State())
	assert.Equal(t, Sta1, scp.State())
	assert.NoError(t, scu.Cause())

	assert.NotEmpty(t, rec.get(common.EventFSMTransition))
	assert.NotEmpty(t, rec.get(common.EventPDUSent))
	assert.NotEmpty(t, rec.get(common.EventPDURecv))
	assert.Empty(t, rec.get(common.EventProtocolError))

	tr := rec.get(common.EventFSMTransition)[0]
	assert.Equal(t, Sta1, tr.Get("from"))
	assert.Equal(t, Sta4, tr.Get("to"))
	assert.Equal(t, AE1, tr.Get("action"))
	assert.Same(t, scu, tr.Source)

	assert.ErrorIs(t, scu.SendPData(pdata), ErrStopped)
}

func TestAssociationRejected(t *testing.T) {
	a, b := transport.Pipe()
	scu := NewProvider(Config{Timeouts: testTimeouts(), Dialer: transport.PipeDialer{Local: a}})
	scp := NewProvider(Config{Timeouts: testTimeouts()})
	defer scu.Stop()
	defer scp.Stop()

	require.NoError(t, scp.Accept(b))
	require.NoError(t, scu.Associate(context.Background(), associateRQ(), "pipe"))
	receive(t, scp)

	rj := &pdu.AssociateRJ{Result: 1, Source: 1, Reason: 7}
	require.NoError(t, scp.RejectResponse(rj))
	assert.Equal(t, rj, receive(t, scu))

	waitDone(t, scu)
	waitDone(t, scp)
}

func TestUserAbort(t *testing.T) {
	p, peer := establishedAcceptor(t, testTimeouts(), nil)

	go func() { p.Abort(pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified) }()
	ab := peer.expect(t, pdu.TypeAbort).(*pdu.Abort)
	assert.Equal(t, pdu.AbortSourceServiceUser, ab.Source)
	eventually(t, p, Sta13)

	peer.c.Close()
	waitDone(t, p)
}

func TestPeerAbort(t *testing.T) {
	p, peer := establishedAcceptor(t, testTimeouts(), nil)

	peer.send(t, &pdu.Abort{Source: pdu.AbortSourceServiceUser})
	assert.Equal(t, &pdu.Abort{Source: pdu.AbortSourceServiceUser}, receive(t, p))
	waitDone(t, p)

	t.Run("provider source", func(t *testing.T) {
		p, peer := establishedAcceptor(t, testTimeouts(), nil)
		peer.send(t, &pdu.Abort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU})
		prim := receive(t, p)
		require.IsType(t, &ProviderAbort{}, prim)
		assert.Equal(t, pdu.AbortReasonUnexpectedPDU, prim.(*ProviderAbort).Reason)
		waitDone(t, p)
		assert.Error(t, p.Cause())
	})
}

func TestUnexpectedPDUAborts(t *testing.T) {
	events := common.NewEvents(nil)
	rec := newRecorder(events)
	p, peer := establishedAcceptor(t, testTimeouts(), events)

	// a second A-ASSOCIATE-RQ is not valid once established
	peer.send(t, associateRQ())
	ab := peer.expect(t, pdu.TypeAbort).(*pdu.Abort)
	assert.Equal(t, pdu.AbortSourceServiceProvider, ab.Source)
	assert.Equal(t, pdu.AbortReasonUnexpectedPDU, ab.Reason)

	prim := receive(t, p)
	require.IsType(t, &ProviderAbort{}, prim)
	require.Eventually(t, func() bool { return len(rec.get(common.EventProtocolError)) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, Sta6, rec.get(common.EventProtocolError)[0].Get("state"))
	eventually(t, p, Sta13)

	peer.c.Close()
	waitDone(t, p)
	assert.Equal(t, Sta1, p.State())
}

func TestUnrecognizedPDUAborts(t *testing.T) {
	events := common.NewEvents(nil)
	rec := newRecorder(events)
	p, peer := establishedAcceptor(t, testTimeouts(), events)

	go peer.c.Transport().Send([]byte{0x0A, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00})
	ab := peer.expect(t, pdu.TypeAbort).(*pdu.Abort)
	assert.Equal(t, pdu.AbortReasonUnrecognizedPDU, ab.Reason)

	require.Eventually(t, func() bool { return len(rec.get(common.EventProtocolError)) == 1 }, waitFor, 5*time.Millisecond)
	err, _ := rec.get(common.EventProtocolError)[0].Get("error").(error)
	assert.ErrorIs(t, err, pdu.ErrUnknownPDUType)

	// ARTIM closes the connection when the peer does not
	waitDone(t, p)
}

func TestReportInvalid(t *testing.T) {
	p, peer := establishedAcceptor(t, testTimeouts(), nil)

	p.ReportInvalid(errors.New("data PDV without command"))
	ab := peer.expect(t, pdu.TypeAbort).(*pdu.Abort)
	assert.Equal(t, pdu.AbortReasonInvalidParameter, ab.Reason)
	assert.IsType(t, &ProviderAbort{}, receive(t, p))
}

func TestNetworkTimeout(t *testing.T) {
	timeouts := testTimeouts()
	timeouts.SetNetwork(100 * time.Millisecond)
	events := common.NewEvents(nil)
	rec := newRecorder(events)
	p, peer := establishedAcceptor(t, timeouts, events)

	ab := peer.expect(t, pdu.TypeAbort).(*pdu.Abort)
	assert.Equal(t, pdu.AbortSourceServiceProvider, ab.Source)

	prim := receive(t, p)
	require.IsType(t, &ProviderAbort{}, prim)
	assert.ErrorIs(t, prim.(*ProviderAbort), ErrNetworkTimeout)

	waitDone(t, p)
	assert.ErrorIs(t, p.Cause(), ErrNetworkTimeout)
	assert.NotEmpty(t, rec.get(common.EventProtocolError))
}

func TestARTIMExpiry(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	p := NewProvider(Config{Timeouts: testTimeouts()})
	defer p.Stop()

	require.NoError(t, p.Accept(b))
	waitDone(t, p)
	assert.False(t, b.IsAlive())
}

func TestProtocolVersionRejected(t *testing.T) {
	a, b := transport.Pipe()
	p := NewProvider(Config{Timeouts: testTimeouts()})
	peer := &rawPeer{c: codec.New(a, 0)}
	defer p.Stop()

	require.NoError(t, p.Accept(b))
	rq := associateRQ()
	rq.ProtocolVersion = 0x0002
	peer.send(t, rq)

	rj := peer.expect(t, pdu.TypeAssociateRJ).(*pdu.AssociateRJ)
	assert.Equal(t, &pdu.AssociateRJ{
		Result: pdu.RejectResultPermanent,
		Source: pdu.RejectSourceServiceProviderACSE,
		Reason: pdu.RejectReasonProtocolVersionNotSupported,
	}, rj)
	eventually(t, p, Sta13)

	peer.c.Close()
	waitDone(t, p)
}

func TestConnectFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	p := NewProvider(Config{Timeouts: testTimeouts(), Dialer: transport.PipeDialer{Err: dialErr}})
	defer p.Stop()

	require.NoError(t, p.Associate(context.Background(), associateRQ(), "pipe"))
	prim := receive(t, p)
	require.IsType(t, &ProviderAbort{}, prim)
	assert.ErrorIs(t, prim.(*ProviderAbort), dialErr)
	waitDone(t, p)
	assert.ErrorIs(t, p.Cause(), dialErr)
}

func TestIdleDropsInvalidRequests(t *testing.T) {
	p := NewProvider(Config{Timeouts: testTimeouts()})
	defer p.Stop()

	assert.ErrorIs(t, p.ReleaseRequest(), ErrInvalidRequest)
	assert.ErrorIs(t, p.SendPData(&pdu.PDataTF{}), ErrInvalidRequest)
	assert.Equal(t, Sta1, p.State())

	p.Stop()
	assert.ErrorIs(t, p.ReleaseRequest(), ErrStopped)
}

// Every (state, event) pair missing from the table takes the machine back
// to Sta1 through the abort path.
func TestStateMachineTotality(t *testing.T) {
	for _, state := range States {
		for _, evt := range Events {
			if _, ok := Lookup(state, evt); ok {
				continue
			}
			state, evt := state, evt
			t.Run(string(state)+"/"+string(evt), func(t *testing.T) {
				events := common.NewEvents(nil)
				rec := newRecorder(events)
				p, peer := detachedProvider(t, events)
				p.sm.fsm.SetState(string(state))
				p.active = true

				p.dispatch(&event{id: evt, gen: p.artimGen, pdu: &pdu.ReleaseRQ{}})

				assert.Equal(t, Sta1, p.sm.Current())
				if state == Sta1 {
					assert.Empty(t, rec.get(common.EventProtocolError))
					assert.Equal(t, 0, p.toUser.Len())
					return
				}
				assert.Len(t, rec.get(common.EventProtocolError), 1)
				prim, ok := p.toUser.TryGet()
				require.True(t, ok)
				assert.ErrorIs(t, prim.(*ProviderAbort), ErrProtocol)

				ab := <-peer
				assert.Equal(t, &pdu.Abort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU}, ab)
			})
		}
	}
}

// detachedProvider builds a provider without its worker goroutine so a
// test can call dispatch directly. PDUs it sends arrive on the channel.
func detachedProvider(t *testing.T, events *common.Events) (*Provider, <-chan pdu.PDU) {
	a, b := transport.Pipe()
	p := &Provider{
		timeouts: testTimeouts(),
		logger:   common.NopLogger(),
		events:   events,
		queue:    utils.NewQueue[*event](),
		toUser:   utils.NewQueue[Primitive](),
		done:     make(chan struct{}),
	}
	p.source = p
	p.sm = NewStateMachine(nil)
	p.codec = codec.New(a, 0)

	out := make(chan pdu.PDU, 4)
	peer := codec.New(b, 0)
	go func() {
		for {
			pd, _, err := peer.Receive()
			if err != nil {
				return
			}
			out <- pd
		}
	}()
	t.Cleanup(func() {
		p.stopARTIM()
		p.codec.Close()
		peer.Close()
	})
	return p, out
}
