package dul

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/younglifestyle/dicom4go/codec"
	"github.com/younglifestyle/dicom4go/common"
	"github.com/younglifestyle/dicom4go/pdu"
	"github.com/younglifestyle/dicom4go/transport"
	"github.com/younglifestyle/dicom4go/utils"
	"go.uber.org/atomic"
)

var (
	// ErrNetworkTimeout is the cause recorded when the connection was idle
	// longer than the network timeout.
	ErrNetworkTimeout = errors.New("dul: network timeout")
	// ErrStopped is returned by requests made after the provider finished.
	ErrStopped = errors.New("dul: provider stopped")
	// ErrInvalidRequest is returned for a local request the current state
	// does not accept.
	ErrInvalidRequest = errors.New("dul: request not valid in current state")
	// ErrProtocol is the cause recorded for a (state, event) pair missing
	// from the transition table.
	ErrProtocol = errors.New("dul: protocol error")
)

// Primitive is what the provider passes up to its user: one of
// *pdu.AssociateRQ, *pdu.AssociateAC, *pdu.AssociateRJ, *pdu.ReleaseRQ,
// *pdu.ReleaseRP, *pdu.Abort, *ProviderAbort, or *pdu.PDataTF when no
// PDataHandler is set.
type Primitive interface {
	String() string
}

// ProviderAbort is the A-P-ABORT indication.
type ProviderAbort struct {
	Source byte
	Reason byte
	Err    error
}

func (a *ProviderAbort) String() string {
	if a.Err != nil {
		return fmt.Sprintf("A-P-ABORT{source:%d reason:%d cause:%v}", a.Source, a.Reason, a.Err)
	}
	return fmt.Sprintf("A-P-ABORT{source:%d reason:%d}", a.Source, a.Reason)
}

func (a *ProviderAbort) Error() string { return a.String() }

func (a *ProviderAbort) Unwrap() error { return a.Err }

// PDataHandler receives P-DATA indications. It runs on the provider's
// worker goroutine and must not call blocking Provider methods.
type PDataHandler interface {
	HandlePData(p *pdu.PDataTF)
}

type eventKind int

const (
	kindEvent eventKind = iota
	kindNetworkTimeout
	kindStop
)

type event struct {
	kind eventKind
	id   Event

	pdu pdu.PDU
	err error

	// Evt1
	ctx  context.Context
	addr string
	// Evt2, Evt5
	t transport.Transport
	// Evt15
	source, reason byte
	// Evt18
	gen uint64

	done chan error
}

func (ev *event) reply(err error) {
	if ev.done != nil {
		ev.done <- err
		ev.done = nil
	}
}

// Config carries what a Provider needs besides its state.
type Config struct {
	Timeouts *common.Timeouts
	Logger   common.Logger
	// Events receives the observer events; nil disables them.
	Events *common.Events
	// Source is set as Event.Source, usually the owning association.
	Source interface{}
	// Dialer opens the connection for Associate; nil dials TCP.
	Dialer transport.Dialer
	// MaxReceive bounds received P-DATA-TF payloads; 0 selects
	// codec.DefaultMaxReceive.
	MaxReceive uint32
}

// Provider is the Upper Layer service provider of one association. All
// transitions run on one worker goroutine fed by a single event queue.
type Provider struct {
	sm         *StateMachine
	timeouts   *common.Timeouts
	logger     common.Logger
	events     *common.Events
	source     interface{}
	dialer     transport.Dialer
	maxReceive uint32

	queue  *utils.Queue[*event]
	toUser *utils.Queue[Primitive]

	handler atomic.Value

	// owned by the worker goroutine
	codec     *codec.Codec
	requestor bool
	active    bool
	pendingRQ *pdu.AssociateRQ
	artim     *time.Timer
	artimGen  uint64
	cause     error

	done chan struct{}
}

type handlerBox struct{ h PDataHandler }

func NewProvider(cfg Config) *Provider {
	if cfg.Timeouts == nil {
		cfg.Timeouts = common.NewTimeouts()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = transport.TCPDialer{Timeout: cfg.Timeouts.Connect()}
	}
	p := &Provider{
		timeouts:   cfg.Timeouts,
		logger:     common.OrNop(cfg.Logger),
		events:     cfg.Events,
		source:     cfg.Source,
		dialer:     cfg.Dialer,
		maxReceive: cfg.MaxReceive,
		queue:      utils.NewQueue[*event](),
		toUser:     utils.NewQueue[Primitive](),
		done:       make(chan struct{}),
	}
	if p.source == nil {
		p.source = p
	}
	p.sm = NewStateMachine(func(from, to State, evt string) {
		p.logger.Debug("dul state changed", "from", from, "to", to, "event", evt)
	})

	go p.run()
	return p
}

// SetPDataHandler routes P-DATA indications to h instead of the user queue.
func (p *Provider) SetPDataHandler(h PDataHandler) {
	p.handler.Store(handlerBox{h})
}

func (p *Provider) pdataHandler() PDataHandler {
	if box, ok := p.handler.Load().(handlerBox); ok {
		return box.h
	}
	return nil
}

func (p *Provider) State() State {
	return p.sm.Current()
}

// Done is closed once the provider is back in Sta1 after a connection, or
// was stopped.
func (p *Provider) Done() <-chan struct{} {
	return p.done
}

// Cause reports why the association ended abnormally, if it did. Valid
// after Done is closed.
func (p *Provider) Cause() error {
	select {
	case <-p.done:
		return p.cause
	default:
		return nil
	}
}

// Receive waits for the next primitive for the user. A timeout <= 0 waits
// until one arrives or the provider finishes; ok is false when none came.
func (p *Provider) Receive(timeout time.Duration) (Primitive, bool) {
	return p.toUser.Get(timeout)
}

// PeekPrimitive returns the next primitive for the user without removing it.
func (p *Provider) PeekPrimitive() (Primitive, bool) {
	return p.toUser.Peek()
}

// Associate issues the A-ASSOCIATE request (Evt1). It returns once the
// transport connect has been started; the outcome arrives via Receive.
func (p *Provider) Associate(ctx context.Context, rq *pdu.AssociateRQ, addr string) error {
	if rq == nil {
		return errors.New("dul: nil A-ASSOCIATE-RQ")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return p.request(&event{id: Evt1, pdu: rq, ctx: ctx, addr: addr})
}

// Accept hands the provider an incoming transport connection (Evt5).
func (p *Provider) Accept(t transport.Transport) error {
	return p.request(&event{id: Evt5, t: t})
}

// AcceptResponse sends the A-ASSOCIATE-AC (Evt7).
func (p *Provider) AcceptResponse(ac *pdu.AssociateAC) error {
	return p.request(&event{id: Evt7, pdu: ac})
}

// RejectResponse sends the A-ASSOCIATE-RJ (Evt8).
func (p *Provider) RejectResponse(rj *pdu.AssociateRJ) error {
	return p.request(&event{id: Evt8, pdu: rj})
}

// SendPData returns once pd has been written to the transport (Evt9).
func (p *Provider) SendPData(pd *pdu.PDataTF) error {
	return p.request(&event{id: Evt9, pdu: pd})
}

// ReleaseRequest sends the A-RELEASE-RQ (Evt11).
func (p *Provider) ReleaseRequest() error {
	return p.request(&event{id: Evt11, pdu: &pdu.ReleaseRQ{}})
}

// ReleaseResponse sends the A-RELEASE-RP (Evt14).
func (p *Provider) ReleaseResponse() error {
	return p.request(&event{id: Evt14, pdu: &pdu.ReleaseRP{}})
}

// Abort sends an A-ABORT with the given source and reason (Evt15).
func (p *Provider) Abort(source, reason byte) error {
	return p.request(&event{id: Evt15, source: source, reason: reason})
}

// ReportInvalid signals an invalid PDU found above the codec (Evt19). It
// does not wait and is safe to call from a PDataHandler.
func (p *Provider) ReportInvalid(err error) {
	p.post(&event{id: Evt19, err: err})
}

// Stop closes the transport and finishes the provider without any further
// PDU exchange. It waits for the worker to exit.
func (p *Provider) Stop() {
	p.queue.Put(&event{kind: kindStop})
	<-p.done
}

func (p *Provider) post(ev *event) bool {
	return p.queue.Put(ev)
}

func (p *Provider) request(ev *event) error {
	done := make(chan error, 1)
	ev.done = done
	if !p.post(ev) {
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-p.done:
		select {
		case err := <-done:
			return err
		default:
			return ErrStopped
		}
	}
}

func (p *Provider) run() {
	defer p.finish()
	for {
		ev, ok := p.queue.Get(0)
		if !ok {
			return
		}
		if ev.kind == kindStop {
			p.stopARTIM()
			p.closeTransport()
			p.sm.Reset()
			return
		}
		p.dispatch(ev)
		if p.active && p.sm.Current() == Sta1 {
			return
		}
	}
}

func (p *Provider) finish() {
	p.stopARTIM()
	p.closeTransport()
	p.queue.Close()
	for {
		ev, ok := p.queue.TryGet()
		if !ok {
			break
		}
		ev.reply(ErrStopped)
	}
	p.toUser.Close()
	close(p.done)
}

func (p *Provider) dispatch(ev *event) {
	state := p.sm.Current()

	switch ev.kind {
	case kindNetworkTimeout:
		switch state {
		case Sta1, Sta2, Sta4, Sta13:
			return
		}
		p.logger.Warn("network timeout", "state", state, "timeout", p.timeouts.Network())
		p.protocolError(state, ev, pdu.AbortReasonNotSpecified, ErrNetworkTimeout)
		return
	}

	if ev.id == Evt18 && ev.gen != p.artimGen {
		p.logger.Debug("stale ARTIM expiry dropped", "state", state)
		return
	}
	if ev.pdu != nil && isReceived(ev.id) {
		p.fire(common.EventPDURecv, map[string]interface{}{"pdu": ev.pdu})
	}

	t, ok := Lookup(state, ev.id)
	if !ok {
		if state == Sta1 {
			p.logger.Debug("event dropped in idle state", "event", ev.id)
			ev.reply(ErrInvalidRequest)
			return
		}
		err := fmt.Errorf("%w: %s (%s) in %s", ErrProtocol, ev.id, ev.id.Description(), state)
		p.protocolError(state, ev, pdu.AbortReasonUnexpectedPDU, err)
		ev.reply(ErrInvalidRequest)
		return
	}

	if ev.id == Evt19 {
		p.logger.Warn("invalid PDU received", "state", state, "error", ev.err)
		p.fire(common.EventProtocolError, map[string]interface{}{
			"state": state, "event": ev.id, "error": ev.err,
		})
	}

	alt, err := p.act(t.Action, state, ev)
	next, ferr := p.sm.Fire(ev.id, alt)
	if ferr != nil {
		// the table and the machine are built from the same data
		p.logger.Error("state machine rejected table transition", "error", ferr)
	}
	p.logger.Debug("dul transition", "from", state, "event", ev.id, "action", t.Action, "to", next)
	p.fire(common.EventFSMTransition, map[string]interface{}{
		"from": state, "to": next, "event": ev.id, "action": t.Action,
	})
	ev.reply(err)
}

// protocolError sends an A-ABORT if the transport is still writable, tears
// the connection down and forces Sta1.
func (p *Provider) protocolError(state State, ev *event, reason byte, cause error) {
	p.logger.Warn("protocol error, aborting association", "state", state, "event", ev.id, "error", cause)
	p.fire(common.EventProtocolError, map[string]interface{}{
		"state": state, "event": ev.id, "error": cause,
	})
	if p.codec != nil && p.codec.IsAlive() {
		p.send(&pdu.Abort{Source: pdu.AbortSourceServiceProvider, Reason: reason})
	}
	p.stopARTIM()
	p.closeTransport()
	p.cause = cause
	p.toUser.Put(&ProviderAbort{Source: pdu.AbortSourceServiceProvider, Reason: reason, Err: cause})
	p.sm.Reset()
	p.fire(common.EventFSMTransition, map[string]interface{}{
		"from": state, "to": Sta1, "event": ev.id, "action": Action(""),
	})
}

func (p *Provider) fire(name string, data map[string]interface{}) {
	if p.events == nil {
		return
	}
	p.events.Fire(common.Event{Name: name, Source: p.source, Data: data})
}

func (p *Provider) send(pd pdu.PDU) error {
	if p.codec == nil {
		return transport.ErrClosed
	}
	if _, err := p.codec.Send(pd); err != nil {
		p.logger.Warn("send PDU failed", "pdu", pd.Type(), "error", err)
		p.closeTransport()
		return err
	}
	p.logger.Debug("pdu sent", "pdu", pd)
	p.fire(common.EventPDUSent, map[string]interface{}{"pdu": pd})
	return nil
}

func (p *Provider) attach(t transport.Transport) {
	p.codec = codec.New(t, p.maxReceive)
	go p.read(p.codec)
}

func (p *Provider) closeTransport() {
	if p.codec != nil {
		if err := p.codec.Close(); err != nil {
			p.logger.Debug("transport close", "error", err)
		}
	}
}

func (p *Provider) startARTIM() {
	p.stopARTIM()
	gen := p.artimGen
	p.artim = time.AfterFunc(p.timeouts.ARTIM(), func() {
		p.post(&event{id: Evt18, gen: gen})
	})
}

func (p *Provider) stopARTIM() {
	if p.artim != nil {
		p.artim.Stop()
		p.artim = nil
	}
	p.artimGen++
}

// read turns received PDUs into events until the transport fails. Only the
// wait for the first byte of a PDU is bounded by the network timeout.
func (p *Provider) read(c *codec.Codec) {
	network := p.timeouts.Network()
	t := c.Transport()
	for {
		if network > 0 {
			c.SetReadDeadline(time.Now().Add(network))
		}
		if _, err := t.PeekNextPDUType(); err != nil {
			if transport.IsTimeout(err) && t.IsAlive() {
				if !p.post(&event{kind: kindNetworkTimeout}) {
					return
				}
				continue
			}
			p.post(&event{id: Evt17, err: err})
			return
		}
		if network > 0 {
			c.SetReadDeadline(time.Time{})
		}

		pd, raw, err := c.Receive()
		if err != nil {
			var de *pdu.DecodeError
			if errors.As(err, &de) {
				p.logger.Debug("pdu decode failed", "error", err, "len", len(raw))
				p.post(&event{id: Evt19, err: err})
				if errors.Is(err, codec.ErrPDUTooLarge) {
					return
				}
				continue
			}
			p.post(&event{id: Evt17, err: err})
			return
		}
		p.logger.Debug("pdu received", "pdu", pd)
		if !p.post(&event{id: receivedEvent(pd), pdu: pd}) {
			return
		}
	}
}

func receivedEvent(pd pdu.PDU) Event {
	switch pd.Type() {
	case pdu.TypeAssociateAC:
		return Evt3
	case pdu.TypeAssociateRJ:
		return Evt4
	case pdu.TypeAssociateRQ:
		return Evt6
	case pdu.TypePDataTF:
		return Evt10
	case pdu.TypeReleaseRQ:
		return Evt12
	case pdu.TypeReleaseRP:
		return Evt13
	case pdu.TypeAbort:
		return Evt16
	}
	return Evt19
}

func isReceived(e Event) bool {
	switch e {
	case Evt3, Evt4, Evt6, Evt10, Evt12, Evt13, Evt16:
		return true
	}
	return false
}
