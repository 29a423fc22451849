package dul

import (
	"context"
	"errors"

	"github.com/younglifestyle/dicom4go/common"
	"github.com/younglifestyle/dicom4go/pdu"
)

// act runs one table action on the worker goroutine. alt reports that the
// action took its alternative branch.
func (p *Provider) act(a Action, state State, ev *event) (alt bool, err error) {
	switch a {
	case AE1:
		p.active = true
		p.requestor = true
		p.pendingRQ, _ = ev.pdu.(*pdu.AssociateRQ)
		p.connect(ev.ctx, ev.addr)

	case AE2:
		p.attach(ev.t)
		err = p.send(p.pendingRQ)

	case AE3:
		p.toUser.Put(ev.pdu)

	case AE4:
		p.toUser.Put(ev.pdu)
		p.closeTransport()

	case AE5:
		p.active = true
		p.requestor = false
		p.attach(ev.t)
		p.startARTIM()

	case AE6:
		p.stopARTIM()
		rq, _ := ev.pdu.(*pdu.AssociateRQ)
		if rq == nil || rq.ProtocolVersion&pdu.ProtocolVersion == 0 {
			p.logger.Warn("A-ASSOCIATE-RQ not acceptable, protocol version not supported")
			p.send(&pdu.AssociateRJ{
				Result: pdu.RejectResultPermanent,
				Source: pdu.RejectSourceServiceProviderACSE,
				Reason: pdu.RejectReasonProtocolVersionNotSupported,
			})
			p.startARTIM()
			return true, nil
		}
		p.toUser.Put(rq)

	case AE7, AR9:
		err = p.send(ev.pdu)

	case AE8, AR4:
		err = p.send(ev.pdu)
		p.startARTIM()

	case DT1, AR7:
		err = p.send(ev.pdu)

	case DT2, AR6:
		pd, _ := ev.pdu.(*pdu.PDataTF)
		if h := p.pdataHandler(); h != nil {
			h.HandlePData(pd)
		} else {
			p.toUser.Put(pd)
		}

	case AR1:
		err = p.send(ev.pdu)

	case AR2:
		p.toUser.Put(ev.pdu)

	case AR3:
		p.toUser.Put(ev.pdu)
		p.closeTransport()

	case AR5, AA5:
		p.stopARTIM()

	case AR8:
		p.logger.Info("release collision", "requestor", p.requestor)
		p.toUser.Put(ev.pdu)
		return !p.requestor, nil

	case AR10:
		p.toUser.Put(ev.pdu)

	case AA1:
		source, reason := ev.source, ev.reason
		if ev.id != Evt15 {
			source, reason = pdu.AbortSourceServiceProvider, abortReason(ev)
			p.reportUnexpected(state, ev)
		}
		err = p.send(&pdu.Abort{Source: source, Reason: reason})
		p.startARTIM()

	case AA2:
		p.stopARTIM()
		p.closeTransport()
		if ev.id == Evt18 {
			p.logger.Debug("ARTIM expired", "state", state)
		}

	case AA3:
		ab, _ := ev.pdu.(*pdu.Abort)
		if ab != nil && ab.Source == pdu.AbortSourceServiceProvider {
			p.cause = &ProviderAbort{Source: ab.Source, Reason: ab.Reason}
			p.toUser.Put(&ProviderAbort{Source: ab.Source, Reason: ab.Reason})
		} else {
			p.toUser.Put(ev.pdu)
		}
		p.closeTransport()

	case AA4:
		p.logger.Info("transport connection closed", "state", state, "error", ev.err)
		p.cause = ev.err
		p.toUser.Put(&ProviderAbort{Source: pdu.AbortSourceServiceProvider, Err: ev.err})
		p.closeTransport()
		p.fire(common.EventConnClosed, map[string]interface{}{"state": state, "error": ev.err})

	case AA6:
		p.logger.Debug("PDU ignored", "state", state, "event", ev.id)

	case AA7:
		p.reportUnexpected(state, ev)
		err = p.send(&pdu.Abort{Source: pdu.AbortSourceServiceProvider, Reason: abortReason(ev)})

	case AA8:
		reason := abortReason(ev)
		p.reportUnexpected(state, ev)
		p.send(&pdu.Abort{Source: pdu.AbortSourceServiceProvider, Reason: reason})
		p.cause = &ProviderAbort{Source: pdu.AbortSourceServiceProvider, Reason: reason, Err: ev.err}
		p.toUser.Put(&ProviderAbort{Source: pdu.AbortSourceServiceProvider, Reason: reason, Err: ev.err})
		p.startARTIM()
	}
	return false, err
}

// connect dials without blocking the worker; the result comes back as Evt2
// or Evt17.
func (p *Provider) connect(ctx context.Context, addr string) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		ctx, cancel := context.WithTimeout(ctx, p.timeouts.Connect())
		defer cancel()

		t, err := p.dialer.Dial(ctx, addr)
		if err != nil {
			p.logger.Warn("transport connect failed", "addr", addr, "error", err)
			p.post(&event{id: Evt17, err: err})
			return
		}
		p.logger.Debug("transport connected", "addr", addr)
		if !p.post(&event{id: Evt2, t: t}) {
			t.Close()
		}
	}()
}

// reportUnexpected emits protocol-error for a PDU the state does not
// accept. Evt19 has already been reported by dispatch.
func (p *Provider) reportUnexpected(state State, ev *event) {
	if ev.id == Evt19 {
		return
	}
	p.logger.Warn("unexpected PDU", "state", state, "event", ev.id, "pdu", ev.pdu)
	p.fire(common.EventProtocolError, map[string]interface{}{
		"state": state, "event": ev.id, "pdu": ev.pdu,
	})
}

func abortReason(ev *event) byte {
	switch {
	case ev.id != Evt19:
		return pdu.AbortReasonUnexpectedPDU
	case errors.Is(ev.err, pdu.ErrUnknownPDUType):
		return pdu.AbortReasonUnrecognizedPDU
	default:
		return pdu.AbortReasonInvalidParameter
	}
}
