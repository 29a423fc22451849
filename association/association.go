// Package association is the upper layer service user interface: it
// requests, accepts, releases and aborts associations and moves DIMSE
// messages over them.
package association

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/younglifestyle/dicom4go/acse"
	"github.com/younglifestyle/dicom4go/common"
	"github.com/younglifestyle/dicom4go/dimse"
	"github.com/younglifestyle/dicom4go/dul"
	"github.com/younglifestyle/dicom4go/pdu"
	"github.com/younglifestyle/dicom4go/transport"
	"go.uber.org/atomic"
)

// abortWait bounds how long Abort waits for the peer to close before the
// connection is dropped.
const abortWait = time.Second

// RequestParams describes the association a requestor proposes.
type RequestParams struct {
	CalledAETitle string
	Contexts      []acse.PresentationContext
}

// AcceptParams is what an acceptor negotiates against. Policy.AETitle
// defaults to the local AE title of the options.
type AcceptParams struct {
	Policy acse.Policy
}

// Association is one established (or being established) association.
// Observer handlers bound to it run on the upper layer worker and must not
// call SendMessage, Release or Abort.
type Association struct {
	opts      Options
	logger    common.Logger
	events    *common.Events
	dul       *dul.Provider
	dimse     *dimse.Provider
	requestor bool

	localAE  string
	peerAE   string
	contexts []acse.PresentationContext
	peerMax  uint32

	established *atomic.Bool
	releasing   *atomic.Bool
	released    *atomic.Bool
	aborted     *atomic.Bool
	rejected    *atomic.Bool
	messageID   *atomic.Uint32
	err         *atomic.Error

	done chan struct{}
}

func newAssociation(o Options, requestor bool) *Association {
	role := "acceptor"
	if requestor {
		role = "requestor"
	}
	logger := common.With(o.Logger, "role", role, "ae", o.AETitle)
	a := &Association{
		opts:        o,
		logger:      logger,
		requestor:   requestor,
		established: atomic.NewBool(false),
		releasing:   atomic.NewBool(false),
		released:    atomic.NewBool(false),
		aborted:     atomic.NewBool(false),
		rejected:    atomic.NewBool(false),
		messageID:   atomic.NewUint32(0),
		err:         atomic.NewError(nil),
		done:        make(chan struct{}),
	}
	a.events = common.NewEvents(logger)
	for name, fns := range o.Handlers {
		for _, fn := range fns {
			a.events.Bind(name, fn)
		}
	}
	a.dul = dul.NewProvider(dul.Config{
		Timeouts:   o.timeouts(),
		Logger:     logger,
		Events:     a.events,
		Source:     a,
		Dialer:     o.Dialer,
		MaxReceive: o.MaxPDULength,
	})
	a.dimse = dimse.NewProvider(dimse.Config{
		Link:      a.dul,
		MaxLength: o.MaxPDULength,
		Logger:    logger,
		Events:    a.events,
		Source:    a,
	})
	a.dul.SetPDataHandler(a.dimse)
	return a
}

// Request opens a transport to addr, proposes params and waits up to the
// ACSE timeout for the answer.
func Request(ctx context.Context, addr string, params RequestParams, opts ...Option) (*Association, error) {
	o := buildOptions(opts)
	if err := acse.ValidateContexts(params.Contexts); err != nil {
		return nil, err
	}

	a := newAssociation(o, true)
	a.localAE = o.AETitle
	a.peerAE = params.CalledAETitle
	a.logger = common.With(a.logger, "peer", a.peerAE)

	rq := &pdu.AssociateRQ{
		ProtocolVersion:      pdu.ProtocolVersion,
		CalledAETitle:        params.CalledAETitle,
		CallingAETitle:       o.AETitle,
		ApplicationContext:   pdu.ApplicationContextName,
		PresentationContexts: acse.ToRQItems(params.Contexts),
		UserInformation:      o.userInformation(),
	}
	a.fire(common.EventRequested, map[string]interface{}{"pdu": rq})
	if err := a.dul.Associate(ctx, rq, addr); err != nil {
		a.dul.Stop()
		return nil, err
	}

	prim, ok := a.dul.Receive(o.ACSETimeout)
	if !ok {
		select {
		case <-a.dul.Done():
			return nil, a.closedEarly()
		default:
		}
		a.logger.Warn("no A-ASSOCIATE response", "addr", addr, "timeout", o.ACSETimeout)
		a.abort(pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
		return nil, ErrACSETimeout
	}

	switch p := prim.(type) {
	case *pdu.AssociateAC:
		a.contexts = acse.NegotiateRequestor(params.Contexts, p.PresentationContexts)
		peerMax, _ := p.UserInformation.MaximumLength()
		a.establish(peerMax)
		if len(acse.Accepted(a.contexts)) == 0 {
			a.logger.Warn("no presentation context accepted", "addr", addr)
			a.Abort()
			return nil, ErrNoContext
		}
		return a, nil

	case *pdu.AssociateRJ:
		a.rejected.Store(true)
		a.logger.Info("association rejected", "addr", addr, "result", p.Result, "source", p.Source, "reason", p.Reason)
		a.fire(common.EventRejected, map[string]interface{}{"pdu": p})
		a.waitDUL(o.ARTIMTimeout)
		return nil, &RejectedError{Result: p.Result, Source: p.Source, Reason: p.Reason}

	case *pdu.Abort, *dul.ProviderAbort:
		err := abortError(prim)
		a.aborted.Store(true)
		a.err.Store(err)
		a.fire(common.EventAborted, map[string]interface{}{"error": err})
		a.waitDUL(abortWait)
		return nil, err
	}

	a.abort(pdu.AbortSourceServiceProvider, pdu.AbortReasonUnexpectedPDU)
	return nil, fmt.Errorf("%w: unexpected %s", ErrNotEstablished, prim)
}

// Accept runs the acceptor side on an incoming transport.
func Accept(t transport.Transport, params AcceptParams, opts ...Option) (*Association, error) {
	return accept(t, params.Policy, buildOptions(opts), nil)
}

// accept calls setup before the provider sees the transport, so handlers
// attached there observe every event.
func accept(t transport.Transport, policy acse.Policy, o Options, setup func(*Association)) (*Association, error) {
	if policy.AETitle == "" {
		policy.AETitle = o.AETitle
	}
	a := newAssociation(o, false)
	a.localAE = policy.AETitle
	if setup != nil {
		setup(a)
	}
	if err := a.dul.Accept(t); err != nil {
		a.dul.Stop()
		return nil, err
	}

	prim, ok := a.dul.Receive(0)
	if !ok {
		return nil, a.closedEarly()
	}
	rq, isRQ := prim.(*pdu.AssociateRQ)
	if !isRQ {
		a.waitDUL(abortWait)
		switch prim.(type) {
		case *pdu.Abort, *dul.ProviderAbort:
			return nil, abortError(prim)
		}
		return nil, fmt.Errorf("%w: unexpected %s", ErrNotEstablished, prim)
	}

	a.localAE = strings.TrimSpace(rq.CalledAETitle)
	a.peerAE = strings.TrimSpace(rq.CallingAETitle)
	a.logger = common.With(a.logger, "peer", a.peerAE)
	a.fire(common.EventRequested, map[string]interface{}{"pdu": rq})

	contexts, rej := policy.Evaluate(rq)
	if rej != nil {
		a.rejected.Store(true)
		a.logger.Info("rejecting association", "calling", a.peerAE, "rejection", rej)
		rj := rej.PDU()
		if err := a.dul.RejectResponse(rj); err != nil {
			a.dul.Stop()
			return nil, err
		}
		a.fire(common.EventRejected, map[string]interface{}{"pdu": rj})
		a.waitDUL(o.ARTIMTimeout)
		return nil, &RejectedError{Result: rj.Result, Source: rj.Source, Reason: rj.Reason}
	}

	ac := &pdu.AssociateAC{
		ProtocolVersion:      pdu.ProtocolVersion,
		CalledAETitle:        rq.CalledAETitle,
		CallingAETitle:       rq.CallingAETitle,
		ApplicationContext:   pdu.ApplicationContextName,
		PresentationContexts: acse.ToACItems(contexts),
		UserInformation:      o.userInformation(),
	}
	if err := a.dul.AcceptResponse(ac); err != nil {
		a.dul.Stop()
		return nil, err
	}
	a.contexts = contexts
	peerMax, _ := rq.UserInformation.MaximumLength()
	a.establish(peerMax)
	return a, nil
}

func (a *Association) establish(peerMax uint32) {
	a.peerMax = peerMax
	a.dimse.SetMaxLength(acse.EffectiveMaxLength(a.opts.MaxPDULength, peerMax))
	a.established.Store(true)
	a.logger.Info("association established",
		"local", a.localAE, "peer", a.peerAE, "requestor", a.requestor,
		"contexts", len(acse.Accepted(a.contexts)), "max_pdu", a.dimse.MaxLength())
	a.fire(common.EventAccepted, map[string]interface{}{"contexts": a.contexts})
	a.fire(common.EventEstablished, nil)
	go a.monitor()
}

// monitor handles the indications that arrive after establishment.
func (a *Association) monitor() {
	defer a.finish()
	collision := false
	for {
		prim, ok := a.dul.Receive(0)
		if !ok {
			return
		}
		switch p := prim.(type) {
		case *pdu.ReleaseRQ:
			if a.releasing.Swap(true) {
				a.logger.Info("release collision", "requestor", a.requestor)
				collision = true
				if a.requestor {
					a.releaseResponse()
				}
				continue
			}
			a.logger.Info("association release requested by peer", "peer", a.peerAE)
			a.dimse.Close()
			a.releaseResponse()
			a.released.Store(true)
			a.fire(common.EventReleased, map[string]interface{}{"pdu": p, "local": false})

		case *pdu.ReleaseRP:
			if collision && !a.requestor {
				a.releaseResponse()
			}
			a.released.Store(true)
			a.fire(common.EventReleased, map[string]interface{}{"pdu": p, "local": true})

		case *pdu.Abort, *dul.ProviderAbort:
			a.setAborted(abortError(prim))

		default:
			a.logger.Warn("unexpected primitive after establishment", "primitive", prim)
		}
	}
}

func (a *Association) releaseResponse() {
	if err := a.dul.ReleaseResponse(); err != nil {
		a.logger.Warn("A-RELEASE response failed", "error", err)
	}
}

func (a *Association) finish() {
	a.dimse.Close()
	a.logger.Debug("association finished", "peer", a.peerAE, "released", a.released.Load(), "aborted", a.aborted.Load())
	close(a.done)
}

func (a *Association) setAborted(err *AbortError) {
	if a.aborted.Swap(true) {
		return
	}
	a.err.Store(err)
	a.dimse.Close()
	a.logger.Warn("association aborted", "peer", a.peerAE, "error", err)
	a.fire(common.EventAborted, map[string]interface{}{"error": err, "local": false})
}

// closedEarly reports why the provider ended before establishment.
func (a *Association) closedEarly() error {
	if cause := a.dul.Cause(); cause != nil {
		var pa *dul.ProviderAbort
		if errors.As(cause, &pa) {
			return abortError(pa)
		}
		return &AbortError{Source: pdu.AbortSourceServiceProvider, Err: cause}
	}
	return fmt.Errorf("%w: connection closed", ErrNotEstablished)
}

// waitDUL gives the provider d to return to idle, then stops it.
func (a *Association) waitDUL(d time.Duration) {
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-a.dul.Done():
		case <-timer.C:
		}
	}
	a.dul.Stop()
}

func abortError(prim dul.Primitive) *AbortError {
	switch p := prim.(type) {
	case *pdu.Abort:
		return &AbortError{Source: p.Source, Reason: p.Reason}
	case *dul.ProviderAbort:
		return &AbortError{Source: p.Source, Reason: p.Reason, Err: p.Err}
	}
	return &AbortError{Source: pdu.AbortSourceServiceProvider}
}

// Release asks the peer to release the association and waits up to the
// ACSE timeout for it to complete. On timeout the association is aborted.
func (a *Association) Release() error {
	if !a.IsEstablished() {
		return ErrNotEstablished
	}
	if a.releasing.Swap(true) {
		return ErrNotEstablished
	}
	if err := a.dul.ReleaseRequest(); err != nil {
		return err
	}
	if !a.wait(a.opts.ACSETimeout) {
		a.logger.Warn("no A-RELEASE response", "peer", a.peerAE, "timeout", a.opts.ACSETimeout)
		a.abort(pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
		return ErrACSETimeout
	}
	if a.released.Load() {
		return nil
	}
	if err := a.Err(); err != nil {
		return err
	}
	return ErrNotEstablished
}

// Abort sends an A-ABORT and tears the connection down without waiting
// long for the peer. Pending GetMessage calls return empty.
func (a *Association) Abort() error {
	select {
	case <-a.done:
		return nil
	default:
	}
	return a.abort(pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified)
}

func (a *Association) abort(source, reason byte) error {
	a.dimse.Close()
	first := !a.aborted.Swap(true)
	err := a.dul.Abort(source, reason)
	if errors.Is(err, dul.ErrInvalidRequest) || errors.Is(err, dul.ErrStopped) {
		err = nil
	}
	a.waitDUL(abortWait)
	if first {
		ab := &AbortError{Source: source, Reason: reason}
		a.err.Store(ab)
		a.fire(common.EventAborted, map[string]interface{}{"error": ab, "local": true})
	}
	return err
}

func (a *Association) wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-a.done
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-a.done:
		return true
	case <-timer.C:
		return false
	}
}

// SendMessage sends msg on an accepted presentation context. It returns
// once every fragment was handed to the transport.
func (a *Association) SendMessage(msg *dimse.Message, contextID byte, priority uint16) error {
	if !a.IsEstablished() {
		if err := a.Err(); err != nil {
			return err
		}
		return ErrNotEstablished
	}
	if pc, ok := acse.Find(a.contexts, contextID); !ok || !pc.Accepted() {
		return fmt.Errorf("%w: context %d", ErrNoContext, contextID)
	}
	err := a.dimse.SendMessage(msg, contextID, priority)
	if err != nil && a.aborted.Load() {
		if cause := a.Err(); cause != nil {
			return cause
		}
	}
	return err
}

// PeekMessage returns the next received message without removing it, or
// (0, nil).
func (a *Association) PeekMessage() (byte, *dimse.Message) {
	return a.dimse.PeekMessage()
}

// GetMessage removes the next received message. 0 does not wait, a
// positive timeout waits that long. A negative timeout waits for the DIMSE
// timeout and aborts the association when it expires. (0, nil) means none
// came.
func (a *Association) GetMessage(timeout time.Duration) (byte, *dimse.Message) {
	id, msg, _ := a.Receive(timeout)
	return id, msg
}

// Receive is GetMessage with the reason for an empty result: the abort
// error, ErrNotEstablished after release, or ErrDIMSETimeout. When the
// DIMSE timeout expired the association has been aborted and the error
// also wraps the abort.
func (a *Association) Receive(timeout time.Duration) (byte, *dimse.Message, error) {
	dimseWait := false
	if timeout < 0 {
		timeout = a.opts.DIMSETimeout
		dimseWait = timeout > 0
		if timeout == 0 {
			timeout = -1
		}
	}
	id, msg := a.dimse.GetMessage(timeout)
	if msg != nil {
		return id, msg, nil
	}
	if a.dimse.Closed() {
		if err := a.Err(); err != nil {
			return 0, nil, err
		}
		return 0, nil, ErrNotEstablished
	}
	if !dimseWait {
		return 0, nil, ErrDIMSETimeout
	}

	a.logger.Warn("DIMSE timeout, aborting association", "timeout", a.opts.DIMSETimeout)
	if err := a.abort(pdu.AbortSourceServiceUser, pdu.AbortReasonNotSpecified); err != nil {
		a.logger.Warn("A-ABORT failed", "error", err)
	}
	return 0, nil, &timeoutError{cause: ErrDIMSETimeout, abort: a.Err()}
}

// Echo sends a C-ECHO-RQ and waits for its response status.
func (a *Association) Echo() (uint16, error) {
	ctxID, err := a.ContextFor(dimse.VerificationSOPClass)
	if err != nil {
		return 0, err
	}
	id := a.NextMessageID()
	if err := a.SendMessage(dimse.NewCEchoRQ(id), ctxID, dimse.PriorityMedium); err != nil {
		return 0, err
	}
	for {
		_, msg, err := a.Receive(-1)
		if err != nil {
			return 0, err
		}
		if rsp, ok := msg.RespondedTo(); ok && rsp == id && msg.CommandField() == dimse.CEchoRSP {
			status, _ := msg.Status()
			return status, nil
		}
		a.logger.Warn("unexpected message while waiting for C-ECHO-RSP", "message", msg)
	}
}

// NextMessageID returns a fresh non-zero message ID.
func (a *Association) NextMessageID() uint16 {
	for {
		if id := uint16(a.messageID.Inc()); id != 0 {
			return id
		}
	}
}

// ContextFor returns the lowest accepted context ID for an abstract syntax.
func (a *Association) ContextFor(abstractSyntax string) (byte, error) {
	accepted := acse.AcceptedFor(a.contexts, abstractSyntax)
	if len(accepted) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoContext, abstractSyntax)
	}
	return accepted[0].ID, nil
}

// Contexts returns every negotiated context with its result.
func (a *Association) Contexts() []acse.PresentationContext {
	return append([]acse.PresentationContext{}, a.contexts...)
}

func (a *Association) Bind(event string, fn common.Handler) common.Handle {
	return a.events.Bind(event, fn)
}

func (a *Association) Unbind(event string, h common.Handle) bool {
	return a.events.Unbind(event, h)
}

func (a *Association) Events() *common.Events { return a.events }

// Done is closed once an established association has ended.
func (a *Association) Done() <-chan struct{} { return a.done }

// Err is the abort that ended the association, if any.
func (a *Association) Err() error {
	if err := a.err.Load(); err != nil {
		return err
	}
	return nil
}

func (a *Association) IsEstablished() bool {
	if !a.established.Load() || a.released.Load() || a.aborted.Load() {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

func (a *Association) IsReleased() bool  { return a.released.Load() }
func (a *Association) IsAborted() bool   { return a.aborted.Load() }
func (a *Association) IsRejected() bool  { return a.rejected.Load() }
func (a *Association) IsRequestor() bool { return a.requestor }

func (a *Association) LocalAETitle() string { return a.localAE }
func (a *Association) PeerAETitle() string  { return a.peerAE }

// PeerMaxPDULength is the maximum length the peer declared, 0 = unlimited.
func (a *Association) PeerMaxPDULength() uint32 { return a.peerMax }

// MaxPDULength is the cap used to fragment outgoing messages.
func (a *Association) MaxPDULength() uint32 { return a.dimse.MaxLength() }

func (a *Association) State() dul.State { return a.dul.State() }

func (a *Association) String() string {
	return fmt.Sprintf("association{local:%s peer:%s requestor:%v state:%s}", a.localAE, a.peerAE, a.requestor, a.State())
}

func (a *Association) fire(name string, data map[string]interface{}) {
	a.events.Fire(common.Event{Name: name, Source: a, Data: data})
}
