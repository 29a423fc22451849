// Package acse negotiates presentation contexts and PDU lengths for an
// association and checks A-ASSOCIATE requests against local policy.
package acse

import (
	"errors"
	"fmt"

	"github.com/ahmetb/go-linq/v3"
	"github.com/younglifestyle/dicom4go/pdu"
)

// Result is the presentation context result/reason (PS3.8 table 9-18).
type Result byte

const (
	ResultAcceptance                   Result = 0
	ResultUserRejection                Result = 1
	ResultNoReason                     Result = 2
	ResultAbstractSyntaxNotSupported   Result = 3
	ResultTransferSyntaxesNotSupported Result = 4
	// ResultPending marks a proposed context that has no answer yet.
	ResultPending Result = 0xFF
)

func (r Result) String() string {
	switch r {
	case ResultAcceptance:
		return "acceptance"
	case ResultUserRejection:
		return "user-rejection"
	case ResultNoReason:
		return "no-reason (provider rejection)"
	case ResultAbstractSyntaxNotSupported:
		return "abstract-syntax-not-supported"
	case ResultTransferSyntaxesNotSupported:
		return "transfer-syntaxes-not-supported"
	case ResultPending:
		return "pending"
	}
	return fmt.Sprintf("result(%d)", byte(r))
}

// Well known UIDs.
const (
	VerificationSOPClass = "1.2.840.10008.1.1"

	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"
)

// DefaultTransferSyntaxes is what BuildContexts proposes when given none.
var DefaultTransferSyntaxes = []string{ExplicitVRLittleEndian, ImplicitVRLittleEndian}

// MaxContexts is the number of odd IDs in 1..255.
const MaxContexts = 128

var (
	ErrTooManyContexts   = errors.New("acse: more than 128 presentation contexts")
	ErrInvalidContextID  = errors.New("acse: presentation context ID must be odd and in 1..255")
	ErrDuplicateContext  = errors.New("acse: duplicate presentation context ID")
	ErrEmptyContext      = errors.New("acse: presentation context without abstract or transfer syntax")
	ErrNoContextProposed = errors.New("acse: no presentation context proposed")
)

// PresentationContext is a proposed, supported or negotiated context.
type PresentationContext struct {
	ID             byte
	AbstractSyntax string
	// TransferSyntaxes are proposed (requestor) or supported (acceptor), in
	// order of preference.
	TransferSyntaxes []string
	Result           Result
	// TransferSyntax is the single accepted transfer syntax.
	TransferSyntax string
}

func (pc PresentationContext) Accepted() bool {
	return pc.Result == ResultAcceptance
}

func (pc PresentationContext) String() string {
	if pc.Result == ResultPending {
		return fmt.Sprintf("%d:%s %v", pc.ID, pc.AbstractSyntax, pc.TransferSyntaxes)
	}
	return fmt.Sprintf("%d:%s %s [%s]", pc.ID, pc.AbstractSyntax, pc.Result, pc.TransferSyntax)
}

// BuildContexts proposes one context per abstract syntax with IDs 1, 3, 5...
func BuildContexts(abstractSyntaxes []string, transferSyntaxes []string) ([]PresentationContext, error) {
	if len(abstractSyntaxes) == 0 {
		return nil, ErrNoContextProposed
	}
	if len(abstractSyntaxes) > MaxContexts {
		return nil, ErrTooManyContexts
	}
	if len(transferSyntaxes) == 0 {
		transferSyntaxes = DefaultTransferSyntaxes
	}
	out := make([]PresentationContext, 0, len(abstractSyntaxes))
	for i, as := range abstractSyntaxes {
		out = append(out, PresentationContext{
			ID:               byte(2*i + 1),
			AbstractSyntax:   as,
			TransferSyntaxes: append([]string{}, transferSyntaxes...),
			Result:           ResultPending,
		})
	}
	return out, nil
}

// ValidateContexts checks IDs and that every context names its syntaxes.
func ValidateContexts(contexts []PresentationContext) error {
	if len(contexts) == 0 {
		return ErrNoContextProposed
	}
	if len(contexts) > MaxContexts {
		return ErrTooManyContexts
	}
	ids := make([]byte, len(contexts))
	for i, pc := range contexts {
		ids[i] = pc.ID
	}
	if err := validateIDs(ids); err != nil {
		return err
	}
	for _, pc := range contexts {
		if pc.AbstractSyntax == "" || len(pc.TransferSyntaxes) == 0 {
			return fmt.Errorf("%w: %d", ErrEmptyContext, pc.ID)
		}
	}
	return nil
}

// validateIDs checks that every context ID is odd and used once.
func validateIDs(ids []byte) error {
	seen := make(map[byte]struct{}, len(ids))
	for _, id := range ids {
		if id%2 == 0 {
			return fmt.Errorf("%w: %d", ErrInvalidContextID, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateContext, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Find returns the context with the given ID.
func Find(contexts []PresentationContext, id byte) (PresentationContext, bool) {
	found := linq.From(contexts).FirstWith(func(c interface{}) bool {
		return c.(PresentationContext).ID == id
	})
	if found == nil {
		return PresentationContext{}, false
	}
	return found.(PresentationContext), true
}

// AcceptedFor returns the accepted contexts for an abstract syntax, lowest ID first.
func AcceptedFor(contexts []PresentationContext, abstractSyntax string) []PresentationContext {
	var out []PresentationContext
	linq.From(contexts).Where(func(c interface{}) bool {
		pc := c.(PresentationContext)
		return pc.Accepted() && pc.AbstractSyntax == abstractSyntax
	}).OrderBy(func(c interface{}) interface{} {
		return int(c.(PresentationContext).ID)
	}).ToSlice(&out)
	return out
}

// ToRQItems converts proposed contexts to A-ASSOCIATE-RQ items.
func ToRQItems(contexts []PresentationContext) []pdu.PresentationContextRQ {
	out := make([]pdu.PresentationContextRQ, 0, len(contexts))
	for _, pc := range contexts {
		out = append(out, pdu.PresentationContextRQ{
			ID:               pc.ID,
			AbstractSyntax:   pc.AbstractSyntax,
			TransferSyntaxes: append([]string{}, pc.TransferSyntaxes...),
		})
	}
	return out
}

// FromRQItems converts A-ASSOCIATE-RQ items to pending contexts.
func FromRQItems(items []pdu.PresentationContextRQ) []PresentationContext {
	out := make([]PresentationContext, 0, len(items))
	for _, it := range items {
		out = append(out, PresentationContext{
			ID:               it.ID,
			AbstractSyntax:   it.AbstractSyntax,
			TransferSyntaxes: append([]string{}, it.TransferSyntaxes...),
			Result:           ResultPending,
		})
	}
	return out
}

// ToACItems converts negotiated contexts to A-ASSOCIATE-AC items.
func ToACItems(contexts []PresentationContext) []pdu.PresentationContextAC {
	out := make([]pdu.PresentationContextAC, 0, len(contexts))
	for _, pc := range contexts {
		out = append(out, pdu.PresentationContextAC{
			ID:             pc.ID,
			Result:         byte(pc.Result),
			TransferSyntax: pc.TransferSyntax,
		})
	}
	return out
}
