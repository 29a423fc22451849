package acse

import (
	"fmt"
	"strings"

	"github.com/ahmetb/go-linq/v3"
	"github.com/younglifestyle/dicom4go/pdu"
)

// NegotiateAcceptor answers each proposed context against the locally
// supported ones. For an accepted context the transfer syntax is the first
// proposed one the acceptor supports for that abstract syntax. The output
// follows the proposal order and depends only on its inputs.
func NegotiateAcceptor(proposed, supported []PresentationContext) []PresentationContext {
	out := make([]PresentationContext, 0, len(proposed))
	for _, pc := range proposed {
		result := pc
		result.TransferSyntaxes = append([]string{}, pc.TransferSyntaxes...)
		result.TransferSyntax = ""

		var supportedTS []string
		linq.From(supported).Where(func(s interface{}) bool {
			return s.(PresentationContext).AbstractSyntax == pc.AbstractSyntax
		}).SelectMany(func(s interface{}) linq.Query {
			return linq.From(s.(PresentationContext).TransferSyntaxes)
		}).Distinct().ToSlice(&supportedTS)

		if len(supportedTS) == 0 && !linq.From(supported).AnyWith(func(s interface{}) bool {
			return s.(PresentationContext).AbstractSyntax == pc.AbstractSyntax
		}) {
			result.Result = ResultAbstractSyntaxNotSupported
			out = append(out, result)
			continue
		}

		match := linq.From(pc.TransferSyntaxes).FirstWith(func(ts interface{}) bool {
			return linq.From(supportedTS).Contains(ts)
		})
		if match == nil {
			result.Result = ResultTransferSyntaxesNotSupported
		} else {
			result.Result = ResultAcceptance
			result.TransferSyntax = match.(string)
		}
		out = append(out, result)
	}
	return out
}

// NegotiateRequestor applies the A-ASSOCIATE-AC answers to the proposal.
// Contexts the acceptor did not answer, or answered with a transfer syntax
// that was never proposed, end up rejected.
func NegotiateRequestor(proposed []PresentationContext, answers []pdu.PresentationContextAC) []PresentationContext {
	out := make([]PresentationContext, 0, len(proposed))
	for _, pc := range proposed {
		result := pc
		result.TransferSyntaxes = append([]string{}, pc.TransferSyntaxes...)
		result.TransferSyntax = ""
		result.Result = ResultNoReason

		ans := linq.From(answers).FirstWith(func(a interface{}) bool {
			return a.(pdu.PresentationContextAC).ID == pc.ID
		})
		if ans != nil {
			ac := ans.(pdu.PresentationContextAC)
			result.Result = Result(ac.Result)
			if result.Accepted() {
				if linq.From(pc.TransferSyntaxes).Contains(ac.TransferSyntax) {
					result.TransferSyntax = ac.TransferSyntax
				} else {
					result.Result = ResultNoReason
				}
			}
		}
		out = append(out, result)
	}
	return out
}

// Accepted filters the accepted contexts.
func Accepted(contexts []PresentationContext) []PresentationContext {
	var out []PresentationContext
	linq.From(contexts).Where(func(c interface{}) bool {
		return c.(PresentationContext).Accepted()
	}).ToSlice(&out)
	return out
}

// EffectiveMaxLength combines the two declared maximum lengths. Zero means
// unlimited, so the other side's value wins; zero on both sides stays zero.
func EffectiveMaxLength(local, peer uint32) uint32 {
	switch {
	case local == 0:
		return peer
	case peer == 0:
		return local
	case local < peer:
		return local
	default:
		return peer
	}
}

// Rejection is an association level A-ASSOCIATE-RJ answer.
type Rejection struct {
	Result byte
	Source byte
	Reason byte
}

func (r *Rejection) PDU() *pdu.AssociateRJ {
	return &pdu.AssociateRJ{Result: r.Result, Source: r.Source, Reason: r.Reason}
}

func (r *Rejection) String() string {
	return fmt.Sprintf("result=%d source=%d reason=%d", r.Result, r.Source, r.Reason)
}

// Policy is what an acceptor checks an A-ASSOCIATE-RQ against.
type Policy struct {
	// AETitle is the local AE title.
	AETitle string
	// RequireCalledAETitle rejects requests addressed to another AE title.
	RequireCalledAETitle bool
	// CallingAETitles, when not empty, lists the peers allowed to associate.
	CallingAETitles []string
	Supported       []PresentationContext
}

// Evaluate negotiates rq. A nil Rejection means the association can be accepted
// with the returned contexts.
func (p *Policy) Evaluate(rq *pdu.AssociateRQ) ([]PresentationContext, *Rejection) {
	if rq.ProtocolVersion&pdu.ProtocolVersion == 0 {
		return nil, &Rejection{pdu.RejectResultPermanent, pdu.RejectSourceServiceProviderACSE, pdu.RejectReasonProtocolVersionNotSupported}
	}
	if rq.ApplicationContext != pdu.ApplicationContextName {
		return nil, &Rejection{pdu.RejectResultPermanent, pdu.RejectSourceServiceUser, pdu.RejectReasonApplicationContextNotSupported}
	}
	if p.RequireCalledAETitle && !strings.EqualFold(strings.TrimSpace(rq.CalledAETitle), strings.TrimSpace(p.AETitle)) {
		return nil, &Rejection{pdu.RejectResultPermanent, pdu.RejectSourceServiceUser, pdu.RejectReasonCalledAENotRecognized}
	}
	if len(p.CallingAETitles) > 0 && !linq.From(p.CallingAETitles).AnyWith(func(ae interface{}) bool {
		return strings.EqualFold(ae.(string), strings.TrimSpace(rq.CallingAETitle))
	}) {
		return nil, &Rejection{pdu.RejectResultPermanent, pdu.RejectSourceServiceUser, pdu.RejectReasonCallingAENotRecognized}
	}

	ids := make([]byte, len(rq.PresentationContexts))
	for i, item := range rq.PresentationContexts {
		ids[i] = item.ID
	}
	if err := validateIDs(ids); err != nil {
		return nil, &Rejection{pdu.RejectResultPermanent, pdu.RejectSourceServiceProviderACSE, pdu.RejectReasonNoReasonGiven}
	}

	contexts := NegotiateAcceptor(FromRQItems(rq.PresentationContexts), p.Supported)
	if len(Accepted(contexts)) == 0 {
		return contexts, &Rejection{pdu.RejectResultPermanent, pdu.RejectSourceServiceUser, pdu.RejectReasonNoReasonGiven}
	}
	return contexts, nil
}
