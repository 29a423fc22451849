package dimse

import (
	"errors"
	"fmt"

	"github.com/younglifestyle/dicom4go/pdu"
)

var (
	// ErrDecodeFailed wraps a reassembled command set that would not decode.
	ErrDecodeFailed = errors.New("dimse: command set decode failed")
	// ErrUnexpectedData is a data PDV with no command waiting for it.
	ErrUnexpectedData = errors.New("dimse: data fragment without command")
	// ErrUnexpectedCommand is a command PDV while a data set is still due.
	ErrUnexpectedCommand = errors.New("dimse: command fragment while data set pending")
)

// streamKey indexes the reassembly arena: context ID and stream kind.
func streamKey(contextID byte, command bool) int {
	k := int(contextID) << 1
	if command {
		k |= 1
	}
	return k
}

// Assembler rebuilds DIMSE messages from PDVs. Each (context, command/data)
// stream has its own buffer; a message is complete once its command set is
// decoded and, when one is announced, its data set has arrived.
// It is not safe for concurrent use.
type Assembler struct {
	buffers [512][]byte
	// command decoded, data set still due
	pending [256]*Message
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Add appends one PDV. It returns the message it completed, if any. On
// error the partial message of that context is discarded.
func (a *Assembler) Add(v pdu.PDV) (*Message, error) {
	ctx := v.ContextID
	key := streamKey(ctx, v.Command)

	if v.Command {
		if a.pending[ctx] != nil {
			a.Reset(ctx)
			return nil, fmt.Errorf("%w: context %d", ErrUnexpectedCommand, ctx)
		}
		a.buffers[key] = append(a.buffers[key], v.Data...)
		if !v.Last {
			return nil, nil
		}
		raw := a.buffers[key]
		a.buffers[key] = nil
		cmd, err := DecodeCommandSet(raw)
		if err != nil {
			a.Reset(ctx)
			return nil, fmt.Errorf("%w: context %d: %w", ErrDecodeFailed, ctx, err)
		}
		msg := &Message{Command: cmd}
		if !msg.HasDataSet() {
			return msg, nil
		}
		a.pending[ctx] = msg
		return nil, nil
	}

	msg := a.pending[ctx]
	if msg == nil {
		a.Reset(ctx)
		return nil, fmt.Errorf("%w: context %d", ErrUnexpectedData, ctx)
	}
	a.buffers[key] = append(a.buffers[key], v.Data...)
	if !v.Last {
		return nil, nil
	}
	msg.DataSet = a.buffers[key]
	if msg.DataSet == nil {
		msg.DataSet = []byte{}
	}
	a.buffers[key] = nil
	a.pending[ctx] = nil
	return msg, nil
}

// Reset drops whatever was accumulated for contextID.
func (a *Assembler) Reset(contextID byte) {
	a.buffers[streamKey(contextID, true)] = nil
	a.buffers[streamKey(contextID, false)] = nil
	a.pending[contextID] = nil
}

// Pending reports whether any context holds a partial message.
func (a *Assembler) Pending() bool {
	for i := range a.buffers {
		if len(a.buffers[i]) > 0 {
			return true
		}
	}
	for _, m := range a.pending {
		if m != nil {
			return true
		}
	}
	return false
}
