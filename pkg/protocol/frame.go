package protocol

import (
	"encoding/binary"
	"errors"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 4

	// MaxPayloadSize is the maximum payload size (2^16 - 1 bytes).
	MaxPayloadSize = 65535
)

// FrameFlags are optional flags for frame processing.
type FrameFlags uint8

const (
	FlagCompressed FrameFlags = 0x01 // Payload is gzip compressed
	FlagSequenced  FrameFlags = 0x02 // Payload's message carries an explicit sequence number
)

func (ff FrameFlags) Has(flag FrameFlags) bool { return ff&flag != 0 }

var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrFrameTooShort    = errors.New("protocol: frame shorter than header")
	ErrTruncatedPayload = errors.New("protocol: payload shorter than declared length")
)

// Frame is a decoded wire frame: opcode + flags + msgpack-encoded payload.
//
// Wire format (4-byte header + variable payload):
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Opcode      │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//	│ Payload (variable length, msgpack-encoded message struct)   │
type Frame struct {
	Opcode  Opcode
	Flags   FrameFlags
	Payload []byte
}

// EncodeFrame serializes a frame to its wire representation.
func EncodeFrame(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, FrameHeaderSize+len(f.Payload))
	out[0] = byte(f.Opcode)
	out[1] = byte(f.Flags)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(f.Payload)))
	copy(out[4:], f.Payload)
	return out, nil
}

// DecodeFrame parses a wire frame from raw bytes received off the
// connection.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < FrameHeaderSize {
		return Frame{}, ErrFrameTooShort
	}
	opcode := Opcode(data[0])
	flags := FrameFlags(data[1])
	length := binary.BigEndian.Uint16(data[2:4])
	if len(data)-FrameHeaderSize < int(length) {
		return Frame{}, ErrTruncatedPayload
	}
	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:FrameHeaderSize+int(length)])
	return Frame{Opcode: opcode, Flags: flags, Payload: payload}, nil
}
