// Package wire implements the Stealthy on-the-wire framing: the fixed
// 10-byte outer frame carried inside every ICMP echo-request payload, and
// the small fragment header carried inside NewMessage/FileUpload bodies.
package wire

import (
	"encoding/binary"
	"fmt"
)

// FrameType is the outer frame's type byte.
type FrameType uint8

const (
	TypeNewMessage FrameType = 16
	TypeAck        FrameType = 17
	TypeFileUpload FrameType = 18
	TypeHello      FrameType = 19
)

const (
	version      = 1
	headerLength = 1 + 1 + 8 // version + type + id
)

func (t FrameType) valid() bool {
	switch t {
	case TypeNewMessage, TypeAck, TypeFileUpload, TypeHello:
		return true
	default:
		return false
	}
}

// Frame is the decoded form of the outer 10-byte-header wire frame.
type Frame struct {
	ID   uint64
	Type FrameType
	Body []byte
}

// Encode serializes the frame as version(1) | type(1) | id(8 LE) | body.
func (f *Frame) Encode() []byte {
	buf := make([]byte, headerLength+len(f.Body))
	buf[0] = version
	buf[1] = byte(f.Type)
	binary.LittleEndian.PutUint64(buf[2:10], f.ID)
	copy(buf[10:], f.Body)
	return buf
}

// DecodeFrame validates and parses a wire frame. It returns an error only
// to let callers log/test against it; inbound callers on the capture path
// must drop the packet silently rather than surface this upward.
func DecodeFrame(raw []byte) (*Frame, error) {
	if len(raw) < headerLength {
		return nil, fmt.Errorf("wire: frame too short: %d bytes", len(raw))
	}
	if raw[0] != version {
		return nil, fmt.Errorf("wire: unsupported version %d", raw[0])
	}
	typ := FrameType(raw[1])
	if !typ.valid() {
		return nil, fmt.Errorf("wire: unknown frame type %d", raw[1])
	}
	id := binary.LittleEndian.Uint64(raw[2:10])
	body := make([]byte, len(raw)-headerLength)
	copy(body, raw[headerLength:])
	return &Frame{ID: id, Type: typ, Body: body}, nil
}

// IsNewMessage, IsAck, IsFileUpload and IsHello mirror the type predicates
// of the original PacketCodec.
func (f *Frame) IsNewMessage() bool { return f.Type == TypeNewMessage }
func (f *Frame) IsAck() bool        { return f.Type == TypeAck }
func (f *Frame) IsFileUpload() bool { return f.Type == TypeFileUpload }
func (f *Frame) IsHello() bool      { return f.Type == TypeHello }

// NewAck builds the fire-and-forget ack frame for a received fragment id.
func NewAck(id uint64) *Frame {
	return &Frame{ID: id, Type: TypeAck, Body: nil}
}
