package acse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/younglifestyle/dicom4go/pdu"
)

const ctImageStorage = "1.2.840.10008.5.1.4.1.1.2"
const mrImageStorage = "1.2.840.10008.5.1.4.1.1.4"

func supportedContexts() []PresentationContext {
	return []PresentationContext{
		{AbstractSyntax: VerificationSOPClass, TransferSyntaxes: []string{ImplicitVRLittleEndian}},
		{AbstractSyntax: ctImageStorage, TransferSyntaxes: []string{ImplicitVRLittleEndian, ExplicitVRLittleEndian}},
	}
}

func TestNegotiateAcceptor(t *testing.T) {
	proposed := []PresentationContext{
		{ID: 1, AbstractSyntax: VerificationSOPClass, TransferSyntaxes: []string{ExplicitVRLittleEndian, ImplicitVRLittleEndian}},
		{ID: 3, AbstractSyntax: ctImageStorage, TransferSyntaxes: []string{ExplicitVRBigEndian, ExplicitVRLittleEndian, ImplicitVRLittleEndian}},
		{ID: 5, AbstractSyntax: ctImageStorage, TransferSyntaxes: []string{DeflatedExplicitVRLittleEndian}},
		{ID: 7, AbstractSyntax: mrImageStorage, TransferSyntaxes: []string{ImplicitVRLittleEndian}},
	}

	got := NegotiateAcceptor(proposed, supportedContexts())
	require.Len(t, got, 4)

	assert.Equal(t, ResultAcceptance, got[0].Result)
	assert.Equal(t, ImplicitVRLittleEndian, got[0].TransferSyntax)

	// first proposed syntax the acceptor supports, not the acceptor's preference
	assert.Equal(t, ResultAcceptance, got[1].Result)
	assert.Equal(t, ExplicitVRLittleEndian, got[1].TransferSyntax)

	assert.Equal(t, ResultTransferSyntaxesNotSupported, got[2].Result)
	assert.Empty(t, got[2].TransferSyntax)

	assert.Equal(t, ResultAbstractSyntaxNotSupported, got[3].Result)
	assert.Empty(t, got[3].TransferSyntax)

	for i, pc := range got {
		assert.Equal(t, proposed[i].ID, pc.ID)
	}
}

func TestNegotiateAcceptorDeterministic(t *testing.T) {
	proposed, err := BuildContexts([]string{VerificationSOPClass, ctImageStorage, mrImageStorage}, nil)
	require.NoError(t, err)

	first := NegotiateAcceptor(proposed, supportedContexts())
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, NegotiateAcceptor(proposed, supportedContexts()))
	}
}

func TestNegotiateRequestor(t *testing.T) {
	proposed, err := BuildContexts([]string{VerificationSOPClass, ctImageStorage, mrImageStorage}, []string{ExplicitVRLittleEndian, ImplicitVRLittleEndian})
	require.NoError(t, err)

	answers := []pdu.PresentationContextAC{
		{ID: 1, Result: 0, TransferSyntax: ImplicitVRLittleEndian},
		{ID: 3, Result: 0, TransferSyntax: ExplicitVRBigEndian},
	}
	got := NegotiateRequestor(proposed, answers)
	require.Len(t, got, 3)

	assert.True(t, got[0].Accepted())
	assert.Equal(t, ImplicitVRLittleEndian, got[0].TransferSyntax)
	// accepted with a syntax that was never proposed
	assert.Equal(t, ResultNoReason, got[1].Result)
	// not answered
	assert.Equal(t, ResultNoReason, got[2].Result)

	assert.Len(t, Accepted(got), 1)
}

func TestEffectiveMaxLength(t *testing.T) {
	cases := []struct {
		local, peer, want uint32
	}{
		{16382, 32768, 16382},
		{65536, 16384, 16384},
		{0, 16384, 16384},
		{16384, 0, 16384},
		{0, 0, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, EffectiveMaxLength(c.local, c.peer), "local=%d peer=%d", c.local, c.peer)
	}
}

func TestBuildAndValidateContexts(t *testing.T) {
	contexts, err := BuildContexts([]string{VerificationSOPClass, ctImageStorage}, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(1), contexts[0].ID)
	assert.Equal(t, byte(3), contexts[1].ID)
	assert.Equal(t, DefaultTransferSyntaxes, contexts[0].TransferSyntaxes)
	assert.NoError(t, ValidateContexts(contexts))

	_, err = BuildContexts(nil, nil)
	assert.ErrorIs(t, err, ErrNoContextProposed)

	many := make([]string, MaxContexts+1)
	for i := range many {
		many[i] = VerificationSOPClass
	}
	_, err = BuildContexts(many, nil)
	assert.ErrorIs(t, err, ErrTooManyContexts)

	contexts[1].ID = 2
	assert.ErrorIs(t, ValidateContexts(contexts), ErrInvalidContextID)
	contexts[1].ID = 1
	assert.ErrorIs(t, ValidateContexts(contexts), ErrDuplicateContext)
	contexts[1].ID = 3
	contexts[1].TransferSyntaxes = nil
	assert.ErrorIs(t, ValidateContexts(contexts), ErrEmptyContext)
}

func TestFindAndAcceptedFor(t *testing.T) {
	contexts := []PresentationContext{
		{ID: 5, AbstractSyntax: ctImageStorage, Result: ResultAcceptance, TransferSyntax: ImplicitVRLittleEndian},
		{ID: 1, AbstractSyntax: VerificationSOPClass, Result: ResultAcceptance, TransferSyntax: ImplicitVRLittleEndian},
		{ID: 3, AbstractSyntax: ctImageStorage, Result: ResultAcceptance, TransferSyntax: ExplicitVRLittleEndian},
		{ID: 7, AbstractSyntax: ctImageStorage, Result: ResultTransferSyntaxesNotSupported},
	}

	pc, ok := Find(contexts, 3)
	assert.True(t, ok)
	assert.Equal(t, ExplicitVRLittleEndian, pc.TransferSyntax)
	_, ok = Find(contexts, 9)
	assert.False(t, ok)

	ct := AcceptedFor(contexts, ctImageStorage)
	require.Len(t, ct, 2)
	assert.Equal(t, byte(3), ct[0].ID)
	assert.Equal(t, byte(5), ct[1].ID)
}

func TestPolicyEvaluate(t *testing.T) {
	rq := func() *pdu.AssociateRQ {
		return &pdu.AssociateRQ{
			ProtocolVersion:    pdu.ProtocolVersion,
			CalledAETitle:      "STORESCP",
			CallingAETitle:     "MODALITY",
			ApplicationContext: pdu.ApplicationContextName,
			PresentationContexts: []pdu.PresentationContextRQ{
				{ID: 1, AbstractSyntax: VerificationSOPClass, TransferSyntaxes: []string{ImplicitVRLittleEndian}},
			},
		}
	}
	policy := &Policy{AETitle: "STORESCP", RequireCalledAETitle: true, Supported: supportedContexts()}

	contexts, rj := policy.Evaluate(rq())
	assert.Nil(t, rj)
	require.Len(t, contexts, 1)
	assert.True(t, contexts[0].Accepted())

	t.Run("protocol version", func(t *testing.T) {
		r := rq()
		r.ProtocolVersion = 2
		_, rj := policy.Evaluate(r)
		require.NotNil(t, rj)
		assert.Equal(t, pdu.RejectSourceServiceProviderACSE, rj.Source)
		assert.Equal(t, pdu.RejectReasonProtocolVersionNotSupported, rj.Reason)
	})

	t.Run("application context", func(t *testing.T) {
		r := rq()
		r.ApplicationContext = "1.2.3"
		_, rj := policy.Evaluate(r)
		require.NotNil(t, rj)
		assert.Equal(t, pdu.RejectReasonApplicationContextNotSupported, rj.Reason)
	})

	t.Run("called ae", func(t *testing.T) {
		r := rq()
		r.CalledAETitle = "OTHER"
		_, rj := policy.Evaluate(r)
		require.NotNil(t, rj)
		assert.Equal(t, pdu.RejectReasonCalledAENotRecognized, rj.Reason)
		assert.Equal(t, &pdu.AssociateRJ{Result: 1, Source: 1, Reason: 7}, rj.PDU())
	})

	t.Run("calling ae", func(t *testing.T) {
		p := *policy
		p.CallingAETitles = []string{"CT01"}
		_, rj := p.Evaluate(rq())
		require.NotNil(t, rj)
		assert.Equal(t, pdu.RejectReasonCallingAENotRecognized, rj.Reason)
	})

	t.Run("bad context ids", func(t *testing.T) {
		for name, ids := range map[string][]byte{
			"duplicate": {1, 3, 1},
			"even":      {1, 2},
		} {
			t.Run(name, func(t *testing.T) {
				r := rq()
				r.PresentationContexts = nil
				for _, id := range ids {
					r.PresentationContexts = append(r.PresentationContexts, pdu.PresentationContextRQ{
						ID: id, AbstractSyntax: VerificationSOPClass, TransferSyntaxes: []string{ImplicitVRLittleEndian},
					})
				}
				contexts, rj := policy.Evaluate(r)
				require.NotNil(t, rj)
				assert.Nil(t, contexts)
				assert.Equal(t, &pdu.AssociateRJ{Result: 1, Source: 2, Reason: 1}, rj.PDU())
			})
		}
	})

	t.Run("nothing accepted", func(t *testing.T) {
		r := rq()
		r.PresentationContexts[0].AbstractSyntax = mrImageStorage
		contexts, rj := policy.Evaluate(r)
		require.NotNil(t, rj)
		assert.Equal(t, pdu.RejectReasonNoReasonGiven, rj.Reason)
		assert.Equal(t, ResultAbstractSyntaxNotSupported, contexts[0].Result)
	})
}
