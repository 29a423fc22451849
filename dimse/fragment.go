package dimse

import (
	"errors"
	"fmt"

	"github.com/younglifestyle/dicom4go/pdu"
)

// UnlimitedFragmentSize caps a fragment when the peer declared an unlimited
// maximum PDU length.
const UnlimitedFragmentSize = 16 << 20

// MinMaxLength is the smallest maximum PDU length that carries a byte of
// fragment after the PDV item header.
const MinMaxLength = pdu.PDVOverhead + 1

var ErrMaxLengthTooSmall = errors.New("dimse: maximum PDU length too small")

// FragmentSize is the largest fragment a PDV may carry under maxLength,
// 0 when maxLength leaves no room.
func FragmentSize(maxLength uint32) int {
	switch {
	case maxLength == 0, maxLength > UnlimitedFragmentSize+pdu.PDVOverhead:
		return UnlimitedFragmentSize
	case maxLength <= pdu.PDVOverhead:
		return 0
	}
	return int(maxLength) - pdu.PDVOverhead
}

// Split cuts one encoded stream into PDVs of at most size bytes. Only the
// final PDV is marked last; an empty stream still yields one PDV. A size
// <= 0 means UnlimitedFragmentSize.
func Split(data []byte, contextID byte, command bool, size int) []pdu.PDV {
	if size <= 0 {
		size = UnlimitedFragmentSize
	}
	pdvs := make([]pdu.PDV, 0, len(data)/size+1)
	for {
		n := len(data)
		if n > size {
			n = size
		}
		pdvs = append(pdvs, pdu.PDV{
			ContextID: contextID,
			Command:   command,
			Last:      n == len(data),
			Data:      data[:n:n],
		})
		data = data[n:]
		if len(data) == 0 {
			return pdvs
		}
	}
}

// Fragment encodes msg and cuts it into P-DATA-TF PDUs whose payload fits
// in maxLength (0 = unlimited). Command PDVs precede data PDVs, and PDVs are
// packed into one PDU while they fit.
func Fragment(msg *Message, contextID byte, maxLength uint32) ([]*pdu.PDataTF, error) {
	if maxLength != 0 && maxLength < MinMaxLength {
		return nil, fmt.Errorf("%w: %d", ErrMaxLengthTooSmall, maxLength)
	}
	cmd, err := msg.Command.Encode()
	if err != nil {
		return nil, err
	}

	size := FragmentSize(maxLength)
	pdvs := Split(cmd, contextID, true, size)
	if msg.HasDataSet() {
		pdvs = append(pdvs, Split(msg.DataSet, contextID, false, size)...)
	}

	limit := size + pdu.PDVOverhead
	var (
		out []*pdu.PDataTF
		cur *pdu.PDataTF
		n   int
	)
	for _, v := range pdvs {
		item := pdu.PDVOverhead + len(v.Data)
		if cur == nil || n+item > limit {
			cur = &pdu.PDataTF{}
			out = append(out, cur)
			n = 0
		}
		cur.Items = append(cur.Items, v)
		n += item
	}
	return out, nil
}
