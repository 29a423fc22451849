package dimse

import (
	"errors"
	"sync"
	"time"

	"github.com/younglifestyle/dicom4go/common"
	"github.com/younglifestyle/dicom4go/pdu"
	"github.com/younglifestyle/dicom4go/utils"
	"go.uber.org/atomic"
)

var ErrClosed = errors.New("dimse: provider closed")

// Link is the Upper Layer below the provider.
type Link interface {
	// SendPData returns once the PDU was handed to the transport.
	SendPData(p *pdu.PDataTF) error
	// ReportInvalid turns a malformed message into an abort of the
	// association. It must not block.
	ReportInvalid(err error)
}

// Delivery is one reassembled message and the context it arrived on.
type Delivery struct {
	ContextID byte
	Message   *Message
}

type Config struct {
	Link Link
	// MaxLength is the peer's maximum PDU length, 0 = unlimited.
	MaxLength uint32
	Logger    common.Logger
	Events    *common.Events
	Source    interface{}
}

// Provider is the DIMSE service provider of one association. Reassembly
// runs on the caller of HandlePData (the DUL worker); completed messages
// wait in a queue read by PeekMessage and GetMessage.
type Provider struct {
	link      Link
	maxLength atomic.Uint32
	logger    common.Logger
	events    *common.Events
	source    interface{}

	// serializes the PDU sequences of concurrent senders
	sendMu sync.Mutex

	assembler *Assembler
	queue     *utils.Queue[Delivery]
	closed    atomic.Bool
}

func NewProvider(cfg Config) *Provider {
	p := &Provider{
		link:      cfg.Link,
		logger:    common.OrNop(cfg.Logger),
		events:    cfg.Events,
		source:    cfg.Source,
		assembler: NewAssembler(),
		queue:     utils.NewQueue[Delivery](),
	}
	p.maxLength.Store(cfg.MaxLength)
	if p.source == nil {
		p.source = p
	}
	return p
}

// SetMaxLength updates the peer's maximum PDU length once negotiated.
func (p *Provider) SetMaxLength(n uint32) {
	p.maxLength.Store(n)
}

func (p *Provider) MaxLength() uint32 {
	return p.maxLength.Load()
}

// SendMessage fragments msg on contextID and sends it. Priority is set on
// C-STORE, C-FIND, C-GET and C-MOVE requests. It returns once every
// fragment was handed to the transport; it does not wait for a response.
func (p *Provider) SendMessage(msg *Message, contextID byte, priority uint16) error {
	if p.closed.Load() {
		return ErrClosed
	}
	msg.SetPriority(priority)
	pdatas, err := Fragment(msg, contextID, p.maxLength.Load())
	if err != nil {
		return err
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	for _, pd := range pdatas {
		if err := p.link.SendPData(pd); err != nil {
			p.logger.Warn("send DIMSE message failed", "message", msg, "context", contextID, "error", err)
			return err
		}
	}
	p.logger.Debug("DIMSE message sent", "message", msg, "context", contextID, "pdus", len(pdatas))
	p.fire(common.EventDIMSESent, map[string]interface{}{"message": msg, "context_id": contextID})
	return nil
}

// PeekMessage returns the next message without removing it, or (0, nil)
// when none is waiting.
func (p *Provider) PeekMessage() (byte, *Message) {
	d, ok := p.queue.Peek()
	if !ok {
		return 0, nil
	}
	return d.ContextID, d.Message
}

// GetMessage removes the next message. A positive timeout waits up to that
// long, 0 does not wait and a negative timeout waits until a message
// arrives or the provider is closed. (0, nil) means none came.
func (p *Provider) GetMessage(timeout time.Duration) (byte, *Message) {
	var (
		d  Delivery
		ok bool
	)
	switch {
	case timeout == 0:
		d, ok = p.queue.TryGet()
	case timeout < 0:
		d, ok = p.queue.Get(0)
	default:
		d, ok = p.queue.Get(timeout)
	}
	if !ok {
		return 0, nil
	}
	return d.ContextID, d.Message
}

// Len is the number of messages waiting.
func (p *Provider) Len() int {
	return p.queue.Len()
}

// HandlePData reassembles the PDVs of one P-DATA-TF indication.
func (p *Provider) HandlePData(pd *pdu.PDataTF) {
	if p.closed.Load() {
		p.logger.Debug("P-DATA-TF after close dropped", "pdu", pd)
		return
	}
	for _, v := range pd.Items {
		msg, err := p.assembler.Add(v)
		if err != nil {
			p.invalid(v, err)
			return
		}
		if msg == nil {
			continue
		}
		p.logger.Debug("DIMSE message received", "message", msg, "context", v.ContextID)
		p.queue.Put(Delivery{ContextID: v.ContextID, Message: msg})
		p.fire(common.EventDIMSERecv, map[string]interface{}{"message": msg, "context_id": v.ContextID})
	}
}

func (p *Provider) invalid(v pdu.PDV, err error) {
	if errors.Is(err, ErrDecodeFailed) {
		p.logger.Error("DIMSE message decode failed", "context", v.ContextID, "error", err)
		p.fire(common.EventDecodeFailed, map[string]interface{}{"context_id": v.ContextID, "error": err})
	} else {
		p.logger.Warn("DIMSE protocol violation", "pdv", v, "error", err)
	}
	if p.link != nil {
		p.link.ReportInvalid(err)
	}
}

// Close wakes every GetMessage waiter. Messages already queued can still be
// read; P-DATA arriving later is dropped.
func (p *Provider) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.queue.Close()
}

func (p *Provider) Closed() bool {
	return p.closed.Load()
}

func (p *Provider) fire(name string, data map[string]interface{}) {
	if p.events == nil {
		return
	}
	p.events.Fire(common.Event{Name: name, Source: p.source, Data: data})
}
