// Package message implements the fixed-header datagram codec: bit-exact
// encode/decode, CRC-16/CCITT-FALSE validation, and the Type/Subtype/
// FullType addressing scheme shared by every component above the wire.
package message

import (
	"encoding/binary"
	"fmt"

	"github.com/kulve/pleco-go/internal/errors"
)

// Type is the 8-bit datagram type. Values below HighPriorityLimit are
// high-priority (ACKed and resent); values at or above it are
// low-priority (fire-and-forget).
type Type uint8

const (
	TypeNone          Type = 0
	TypePing          Type = 1
	TypeValue         Type = 3
	TypeStats         Type = 65
	TypeVideo         Type = 66
	TypeAudio         Type = 67
	TypeDebug         Type = 68
	TypePeriodicValue Type = 69
	TypeAck           Type = 255
)

// HighPriorityLimit is the boundary between high- and low-priority types.
const HighPriorityLimit Type = 64

// DebugMaxLen is the maximum number of bytes carried in a Debug payload.
const DebugMaxLen = 256

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypePing:
		return "PING"
	case TypeValue:
		return "VALUE"
	case TypeStats:
		return "STATS"
	case TypeVideo:
		return "VIDEO"
	case TypeAudio:
		return "AUDIO"
	case TypeDebug:
		return "DEBUG"
	case TypePeriodicValue:
		return "PERIODIC_VALUE"
	case TypeAck:
		return "ACK"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// IsHighPriority reports whether t requires ACK-based reliable delivery.
func (t Type) IsHighPriority() bool { return t < HighPriorityLimit }

// Subtype is the 8-bit namespace tag for Value/PeriodicValue payloads and
// the stream index for Video. These names are recovered from the
// original implementation's MessageSubtype enumeration; the core treats
// them as opaque beyond pairing with Type to form a FullType.
type Subtype uint8

const (
	SubtypeNone           Subtype = 0
	SubtypeEnableLED      Subtype = 1
	SubtypeEnableVideo    Subtype = 2
	SubtypeEnableAudio    Subtype = 3
	SubtypeVideoSource    Subtype = 4
	SubtypeCameraXY       Subtype = 5
	SubtypeCameraZoom     Subtype = 6
	SubtypeCameraFocus    Subtype = 7
	SubtypeSpeedTurn      Subtype = 8
	SubtypeBatteryCurrent Subtype = 9
	SubtypeBatteryVoltage Subtype = 10
	SubtypeDistance       Subtype = 11
	SubtypeTemperature    Subtype = 12
	SubtypeSignalStrength Subtype = 13
	SubtypeCPUUsage       Subtype = 14
	SubtypeVideoQuality   Subtype = 15
	SubtypeUptime         Subtype = 16
)

func (s Subtype) String() string {
	switch s {
	case SubtypeNone:
		return "NONE"
	case SubtypeEnableLED:
		return "ENABLE_LED"
	case SubtypeEnableVideo:
		return "ENABLE_VIDEO"
	case SubtypeEnableAudio:
		return "ENABLE_AUDIO"
	case SubtypeVideoSource:
		return "VIDEO_SOURCE"
	case SubtypeCameraXY:
		return "CAMERA_XY"
	case SubtypeCameraZoom:
		return "CAMERA_ZOOM"
	case SubtypeCameraFocus:
		return "CAMERA_FOCUS"
	case SubtypeSpeedTurn:
		return "SPEED_TURN"
	case SubtypeBatteryCurrent:
		return "BATTERY_CURRENT"
	case SubtypeBatteryVoltage:
		return "BATTERY_VOLTAGE"
	case SubtypeDistance:
		return "DISTANCE"
	case SubtypeTemperature:
		return "TEMPERATURE"
	case SubtypeSignalStrength:
		return "SIGNAL_STRENGTH"
	case SubtypeCPUUsage:
		return "CPU_USAGE"
	case SubtypeVideoQuality:
		return "VIDEO_QUALITY"
	case SubtypeUptime:
		return "UPTIME"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// FullType is the (Type<<8)|Subtype key addressing sequence counters,
// resend slots, and RTT samples.
type FullType uint16

// MakeFullType combines a Type and Subtype into a FullType.
func MakeFullType(t Type, s Subtype) FullType {
	return FullType(uint16(t)<<8 | uint16(s))
}

// Type extracts the Type half of a FullType.
func (f FullType) Type() Type { return Type(f >> 8) }

// Subtype extracts the Subtype half of a FullType.
func (f FullType) Subtype() Subtype { return Subtype(f & 0xff) }

// Wire offsets, in bytes.
const (
	offsetCRC          = 0
	offsetSequence     = 2
	offsetType         = 4
	offsetSubtype      = 5
	offsetPayload      = 6
	offsetAckedType    = 6
	offsetAckedSubtype = 7
	offsetAckedCRC     = 8

	headerLen  = 6
	ackLen     = 10 // header + acked-type + acked-subtype + acked-crc(2)
	value16Len = 8  // header + 2-byte value
)

// minLength returns the minimum total datagram length for t, including
// the 6-byte header. Variable-length types (Video/Audio/Debug/Stats) have
// no payload minimum beyond the header itself.
func minLength(t Type) int {
	switch t {
	case TypePing:
		return headerLen
	case TypeValue, TypePeriodicValue:
		return value16Len
	case TypeAck:
		return ackLen
	case TypeVideo, TypeAudio, TypeDebug, TypeStats:
		return headerLen
	default:
		return headerLen
	}
}

// Message is a decoded or freshly-built datagram. The zero value is not
// useful; construct one via Decode or one of the New* constructors.
type Message struct {
	buf []byte
}

// Bytes returns the raw wire bytes. Callers must not retain a reference
// beyond the lifetime the owner intends (frames are moved, not shared).
func (m *Message) Bytes() []byte { return m.buf }

// Len returns the total datagram length.
func (m *Message) Len() int { return len(m.buf) }

// Type returns the datagram's Type.
func (m *Message) Type() Type { return Type(m.buf[offsetType]) }

// Subtype returns the datagram's Subtype.
func (m *Message) Subtype() Subtype { return Subtype(m.buf[offsetSubtype]) }

// FullType returns the (Type,Subtype) addressing key.
func (m *Message) FullType() FullType { return MakeFullType(m.Type(), m.Subtype()) }

// Sequence returns the embedded sequence number.
func (m *Message) Sequence() uint16 { return binary.BigEndian.Uint16(m.buf[offsetSequence:]) }

// CRC returns the embedded CRC.
func (m *Message) CRC() uint16 { return binary.BigEndian.Uint16(m.buf[offsetCRC:]) }

// IsHighPriority reports whether this datagram requires reliable delivery.
func (m *Message) IsHighPriority() bool { return m.Type().IsHighPriority() }

// MatchCRC reports whether the embedded CRC equals want.
func (m *Message) MatchCRC(want uint16) bool { return m.CRC() == want }

// Payload returns the bytes after the fixed 6-byte header.
func (m *Message) Payload() []byte { return m.buf[offsetPayload:] }

// Payload16 reads the 2-byte big-endian value payload (Value/PeriodicValue).
func (m *Message) Payload16() uint16 { return binary.BigEndian.Uint16(m.buf[offsetPayload:]) }

// AckedType returns the Type being acknowledged (only meaningful on an Ack).
func (m *Message) AckedType() Type {
	if m.Type() != TypeAck || len(m.buf) < ackLen {
		return TypeNone
	}
	return Type(m.buf[offsetAckedType])
}

// AckedSubtype returns the Subtype being acknowledged.
func (m *Message) AckedSubtype() Subtype {
	if m.Type() != TypeAck || len(m.buf) < ackLen {
		return SubtypeNone
	}
	return Subtype(m.buf[offsetAckedSubtype])
}

// AckedFullType combines AckedType/AckedSubtype.
func (m *Message) AckedFullType() FullType { return MakeFullType(m.AckedType(), m.AckedSubtype()) }

// AckedCRC returns the CRC of the frame being acknowledged.
func (m *Message) AckedCRC() uint16 { return binary.BigEndian.Uint16(m.buf[offsetAckedCRC:]) }

func setUint16(buf []byte, idx int, v uint16) { binary.BigEndian.PutUint16(buf[idx:], v) }

func (m *Message) setCRC() {
	setUint16(m.buf, offsetCRC, 0)
	setUint16(m.buf, offsetCRC, crc16(m.buf))
}

// newFrame allocates a zeroed buffer, stamps type/subtype/sequence, and
// returns it unsealed (caller still needs to write the payload and call
// setCRC, done inside each New* constructor below).
func newFrame(seqs *SequenceTable, t Type, s Subtype, totalLen int) *Message {
	buf := make([]byte, totalLen)
	buf[offsetType] = byte(t)
	buf[offsetSubtype] = byte(s)
	setUint16(buf, offsetSequence, seqs.next(MakeFullType(t, s)))
	return &Message{buf: buf}
}

// NewPing builds a Ping frame (header only).
func NewPing(seqs *SequenceTable) *Message {
	m := newFrame(seqs, TypePing, SubtypeNone, headerLen)
	m.setCRC()
	return m
}

// NewValue builds a Value frame carrying a 16-bit payload.
func NewValue(seqs *SequenceTable, subtype Subtype, value uint16) *Message {
	m := newFrame(seqs, TypeValue, subtype, value16Len)
	setUint16(m.buf, offsetPayload, value)
	m.setCRC()
	return m
}

// NewPeriodicValue builds a PeriodicValue frame carrying a 16-bit payload.
func NewPeriodicValue(seqs *SequenceTable, subtype Subtype, value uint16) *Message {
	m := newFrame(seqs, TypePeriodicValue, subtype, value16Len)
	setUint16(m.buf, offsetPayload, value)
	m.setCRC()
	return m
}

// NewVideo builds a Video frame; streamIndex is carried as the Subtype.
func NewVideo(seqs *SequenceTable, streamIndex uint8, payload []byte) *Message {
	m := newFrame(seqs, TypeVideo, Subtype(streamIndex), headerLen+len(payload))
	copy(m.buf[offsetPayload:], payload)
	m.setCRC()
	return m
}

// NewAudio builds an Audio frame.
func NewAudio(seqs *SequenceTable, payload []byte) *Message {
	m := newFrame(seqs, TypeAudio, SubtypeNone, headerLen+len(payload))
	copy(m.buf[offsetPayload:], payload)
	m.setCRC()
	return m
}

// NewDebug builds a Debug frame, truncating text to DebugMaxLen bytes.
func NewDebug(seqs *SequenceTable, text string) *Message {
	if len(text) > DebugMaxLen {
		text = text[:DebugMaxLen]
	}
	m := newFrame(seqs, TypeDebug, SubtypeNone, headerLen+len(text))
	copy(m.buf[offsetPayload:], text)
	m.setCRC()
	return m
}

// StatSample is one (subtype,value) pair carried in a Stats payload.
type StatSample struct {
	Subtype Subtype
	Value   uint16
}

// NewStats builds a Stats frame carrying a sequence of (subtype,value)
// pairs, each encoded the same big-endian way as a Value payload. This
// shape is a SPEC_FULL.md supplement: spec.md's Type enumeration lists
// Stats without specifying its payload.
func NewStats(seqs *SequenceTable, samples []StatSample) *Message {
	m := newFrame(seqs, TypeStats, SubtypeNone, headerLen+3*len(samples))
	off := offsetPayload
	for _, s := range samples {
		m.buf[off] = byte(s.Subtype)
		setUint16(m.buf, off+1, s.Value)
		off += 3
	}
	m.setCRC()
	return m
}

// DecodeStats parses a Stats payload back into samples. Used by tests and
// by any peer that wants to inspect a received Stats frame (the default
// Transport dispatch treats Stats as a low-priority, callback-less type
// unless the caller wires one up via peer.Callbacks).
func DecodeStats(payload []byte) []StatSample {
	n := len(payload) / 3
	samples := make([]StatSample, 0, n)
	for i := 0; i < n; i++ {
		off := i * 3
		samples = append(samples, StatSample{
			Subtype: Subtype(payload[off]),
			Value:   binary.BigEndian.Uint16(payload[off+1:]),
		})
	}
	return samples
}

// BuildAck constructs an Ack for incoming, copying its type+subtype+CRC
// into the ack payload as spec.md §4.1 requires.
func BuildAck(seqs *SequenceTable, incoming *Message) *Message {
	m := newFrame(seqs, TypeAck, SubtypeNone, ackLen)
	m.buf[offsetAckedType] = byte(incoming.Type())
	m.buf[offsetAckedSubtype] = byte(incoming.Subtype())
	setUint16(m.buf, offsetAckedCRC, incoming.CRC())
	m.setCRC()
	return m
}

// Decode validates and wraps a received buffer. It returns a CodecError
// (TooShort/CrcMismatch) when the buffer fails validation. Unlike the
// original C++ implementation, decode does not reject unknown types
// outright (forward compatibility with new low-priority types is
// harmless since the core only needs the header to route them); the
// UnknownType kind is retained in the errors taxonomy for callers that
// want to treat a recognized-type set strictly. The transport's dispatch
// step does not use it: it logs and drops a type it has no handler for.
func Decode(buf []byte) (*Message, error) {
	if len(buf) < headerLen {
		return nil, errors.NewCodecError(errors.CodecTooShort, "decode", fmt.Errorf("length %d < header %d", len(buf), headerLen))
	}
	t := Type(buf[offsetType])
	if len(buf) < minLength(t) {
		return nil, errors.NewCodecError(errors.CodecTooShort, "decode", fmt.Errorf("length %d < minimum %d for type %s", len(buf), minLength(t), t))
	}

	m := &Message{buf: append([]byte(nil), buf...)}
	embedded := m.CRC()
	setUint16(m.buf, offsetCRC, 0)
	calculated := crc16(m.buf)
	setUint16(m.buf, offsetCRC, embedded)

	if embedded != calculated {
		return nil, errors.NewCodecError(errors.CodecCrcMismatch, "decode",
			fmt.Errorf("embedded 0x%04x != calculated 0x%04x", embedded, calculated))
	}
	return m, nil
}

// crc16 computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) over data,
// which must have its CRC field zeroed by the caller.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
