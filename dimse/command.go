package dimse

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom/pkg/dicomio"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	ErrMalformedCommand = errors.New("dimse: malformed command set")
	ErrMissingElement   = errors.New("dimse: required command element missing")
	ErrUnknownCommand   = errors.New("dimse: unknown command field")
)

// byteWriter is the subset of dicomio.Writer the command encoder needs.
type byteWriter interface {
	WriteUInt16(v uint16) error
	WriteUInt32(v uint32) error
	WriteString(v string) error
	WriteBytes(v []byte) error
}

type element struct {
	vr VR
	// uint16, uint32, string, []tag.Tag or []byte depending on vr
	value interface{}
}

func (el element) length() int {
	switch v := el.value.(type) {
	case uint16:
		return 2
	case uint32:
		return 4
	case string:
		return len(v) + len(v)%2
	case []tag.Tag:
		return 4 * len(v)
	case []byte:
		return len(v)
	}
	return 0
}

func (el element) write(w byteWriter) error {
	switch v := el.value.(type) {
	case uint16:
		return w.WriteUInt16(v)
	case uint32:
		return w.WriteUInt32(v)
	case string:
		if len(v)%2 == 1 {
			if el.vr == VRUI {
				v += "\x00"
			} else {
				v += " "
			}
		}
		return w.WriteString(v)
	case []tag.Tag:
		for _, t := range v {
			if err := w.WriteUInt16(t.Group); err != nil {
				return err
			}
			if err := w.WriteUInt16(t.Element); err != nil {
				return err
			}
		}
		return nil
	case []byte:
		return w.WriteBytes(v)
	}
	return fmt.Errorf("%w: unsupported value %T", ErrMalformedCommand, el.value)
}

// CommandSet is the group 0000 part of a DIMSE message. It is always
// encoded Implicit VR Little Endian with CommandGroupLength first.
type CommandSet struct {
	elements map[tag.Tag]element
}

func NewCommandSet() *CommandSet {
	return &CommandSet{elements: make(map[tag.Tag]element)}
}

func (c *CommandSet) SetUS(t tag.Tag, v uint16) { c.elements[t] = element{VRUS, v} }
func (c *CommandSet) SetUL(t tag.Tag, v uint32) { c.elements[t] = element{VRUL, v} }
func (c *CommandSet) SetUI(t tag.Tag, v string) { c.elements[t] = element{VRUI, v} }
func (c *CommandSet) SetAE(t tag.Tag, v string) { c.elements[t] = element{VRAE, v} }
func (c *CommandSet) SetLO(t tag.Tag, v string) { c.elements[t] = element{VRLO, v} }

func (c *CommandSet) SetAT(t tag.Tag, v ...tag.Tag) {
	c.elements[t] = element{VRAT, append([]tag.Tag{}, v...)}
}

// SetRaw stores an element whose value is kept as encoded bytes.
func (c *CommandSet) SetRaw(t tag.Tag, v []byte) {
	c.elements[t] = element{VRUN, append([]byte{}, v...)}
}

func (c *CommandSet) Has(t tag.Tag) bool {
	_, ok := c.elements[t]
	return ok
}

func (c *CommandSet) Delete(t tag.Tag) {
	delete(c.elements, t)
}

func (c *CommandSet) Len() int {
	return len(c.elements)
}

func (c *CommandSet) US(t tag.Tag) (uint16, bool) {
	v, ok := c.elements[t].value.(uint16)
	return v, ok
}

func (c *CommandSet) UL(t tag.Tag) (uint32, bool) {
	v, ok := c.elements[t].value.(uint32)
	return v, ok
}

// Text returns a UI, AE or LO value without padding.
func (c *CommandSet) Text(t tag.Tag) (string, bool) {
	v, ok := c.elements[t].value.(string)
	return v, ok
}

func (c *CommandSet) AT(t tag.Tag) ([]tag.Tag, bool) {
	v, ok := c.elements[t].value.([]tag.Tag)
	return v, ok
}

func (c *CommandSet) Raw(t tag.Tag) ([]byte, bool) {
	v, ok := c.elements[t].value.([]byte)
	return v, ok
}

// Tags returns the element tags in ascending order.
func (c *CommandSet) Tags() []tag.Tag {
	tags := make([]tag.Tag, 0, len(c.elements))
	for t := range c.elements {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tagLess(tags[i], tags[j]) })
	return tags
}

// Clone returns a deep copy.
func (c *CommandSet) Clone() *CommandSet {
	out := NewCommandSet()
	for t, el := range c.elements {
		switch v := el.value.(type) {
		case []tag.Tag:
			el.value = append([]tag.Tag{}, v...)
		case []byte:
			el.value = append([]byte{}, v...)
		}
		out.elements[t] = el
	}
	return out
}

// Encode writes the command set. CommandGroupLength is always recomputed.
func (c *CommandSet) Encode() ([]byte, error) {
	var body bytes.Buffer
	w := dicomio.NewWriter(&body, binary.LittleEndian, true)
	for _, t := range c.Tags() {
		if t == CommandGroupLength {
			continue
		}
		if t.Group != 0x0000 {
			return nil, fmt.Errorf("%w: element %s outside group 0000", ErrMalformedCommand, formatTag(t))
		}
		if err := writeElement(w, t, c.elements[t]); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	w = dicomio.NewWriter(&out, binary.LittleEndian, true)
	if err := writeElement(w, CommandGroupLength, element{VRUL, uint32(body.Len())}); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(body.Bytes()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeElement(w byteWriter, t tag.Tag, el element) error {
	if err := w.WriteUInt16(t.Group); err != nil {
		return err
	}
	if err := w.WriteUInt16(t.Element); err != nil {
		return err
	}
	if err := w.WriteUInt32(uint32(el.length())); err != nil {
		return err
	}
	return el.write(w)
}

// DecodeCommandSet parses an Implicit VR Little Endian command set and
// checks the elements every message needs.
func DecodeCommandSet(b []byte) (*CommandSet, error) {
	le := binary.LittleEndian
	c := NewCommandSet()
	for off := 0; off < len(b); {
		if len(b)-off < 8 {
			return nil, fmt.Errorf("%w: element header at offset %d needs 8 bytes, have %d",
				ErrMalformedCommand, off, len(b)-off)
		}
		t := tag.Tag{Group: le.Uint16(b[off:]), Element: le.Uint16(b[off+2:])}
		n := le.Uint32(b[off+4:])
		off += 8
		if t.Group != 0x0000 {
			return nil, fmt.Errorf("%w: element %s outside group 0000", ErrMalformedCommand, formatTag(t))
		}
		if uint64(n) > uint64(len(b)-off) {
			return nil, fmt.Errorf("%w: element %s length %d exceeds remaining %d",
				ErrMalformedCommand, formatTag(t), n, len(b)-off)
		}
		if c.Has(t) {
			return nil, fmt.Errorf("%w: duplicate element %s", ErrMalformedCommand, formatTag(t))
		}
		el, err := decodeElement(t, b[off:off+int(n)])
		if err != nil {
			return nil, err
		}
		c.elements[t] = el
		off += int(n)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeElement(t tag.Tag, v []byte) (element, error) {
	le := binary.LittleEndian
	vr := LookupVR(t)
	switch vr {
	case VRUS:
		if len(v) != 2 {
			return element{}, fmt.Errorf("%w: %s is US with length %d", ErrMalformedCommand, TagName(t), len(v))
		}
		return element{vr, le.Uint16(v)}, nil
	case VRUL:
		if len(v) != 4 {
			return element{}, fmt.Errorf("%w: %s is UL with length %d", ErrMalformedCommand, TagName(t), len(v))
		}
		return element{vr, le.Uint32(v)}, nil
	case VRUI:
		return element{vr, strings.TrimRight(string(v), "\x00 ")}, nil
	case VRAE, VRLO:
		return element{vr, strings.TrimSpace(string(v))}, nil
	case VRAT:
		if len(v)%4 != 0 {
			return element{}, fmt.Errorf("%w: %s is AT with length %d", ErrMalformedCommand, TagName(t), len(v))
		}
		tags := make([]tag.Tag, 0, len(v)/4)
		for i := 0; i < len(v); i += 4 {
			tags = append(tags, tag.Tag{Group: le.Uint16(v[i:]), Element: le.Uint16(v[i+2:])})
		}
		return element{vr, tags}, nil
	}
	return element{VRUN, append([]byte{}, v...)}, nil
}

func (c *CommandSet) validate() error {
	field, ok := c.US(CommandField)
	if !ok {
		return fmt.Errorf("%w: CommandField", ErrMissingElement)
	}
	if _, known := commandNames[field]; !known {
		return fmt.Errorf("%w: 0x%04X", ErrUnknownCommand, field)
	}
	if _, ok := c.US(CommandDataSetType); !ok {
		return fmt.Errorf("%w: CommandDataSetType", ErrMissingElement)
	}
	if isResponse(field) || field == CCancelRQ {
		if _, ok := c.US(MessageIDBeingRespondedTo); !ok {
			return fmt.Errorf("%w: MessageIDBeingRespondedTo", ErrMissingElement)
		}
	} else if _, ok := c.US(MessageID); !ok {
		return fmt.Errorf("%w: MessageID", ErrMissingElement)
	}
	return nil
}

func (c *CommandSet) GoString() string {
	var sb strings.Builder
	for _, t := range c.Tags() {
		fmt.Fprintf(&sb, "%s %s %v\n", formatTag(t), TagName(t), c.elements[t].value)
	}
	return sb.String()
}

func tagLess(a, b tag.Tag) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Element < b.Element
}
