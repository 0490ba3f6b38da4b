package protocol

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Join is sent client->server naming the target Land.
type Join struct {
	RequestID  string         `msgpack:"requestID"`
	LandID     string         `msgpack:"landID"`
	PlayerID   string         `msgpack:"playerID,omitempty"`
	DeviceID   string         `msgpack:"deviceID,omitempty"`
	Metadata   map[string]any `msgpack:"metadata,omitempty"`
}

// JoinAck acknowledges a successful join with the first snapshot.
type JoinAck struct {
	RequestID       string `msgpack:"requestID"`
	OK              bool   `msgpack:"ok"`
	LandID          string `msgpack:"landID"`
	PlayerID        string `msgpack:"playerID"`
	InitialSnapshot []byte `msgpack:"initialSnapshot"`
}

// JoinError reports a join failure.
type JoinError struct {
	RequestID string         `msgpack:"requestID"`
	Code      string         `msgpack:"code"`
	Message   string         `msgpack:"message"`
	Details   map[string]any `msgpack:"details,omitempty"`
}

// Action is a client-initiated request that expects an ActionResponse.
type Action struct {
	RequestID string `msgpack:"requestID"`
	LandID    string `msgpack:"landID"`
	TypeID    string `msgpack:"typeID"`
	Payload   []byte `msgpack:"payload"`
}

// ActionResponse reports the outcome of an Action.
type ActionResponse struct {
	RequestID string `msgpack:"requestID"`
	OK        bool   `msgpack:"ok"`
	Payload   []byte `msgpack:"payload,omitempty"`
	Code      string `msgpack:"code,omitempty"`
	Message   string `msgpack:"message,omitempty"`
}

// ClientEvent is a fire-and-forget client-initiated message.
type ClientEvent struct {
	LandID  string `msgpack:"landID"`
	TypeID  string `msgpack:"typeID"`
	Payload []byte `msgpack:"payload"`
}

// ServerEvent is a server-initiated, targeted message.
type ServerEvent struct {
	TypeID  string `msgpack:"typeID"`
	Payload []byte `msgpack:"payload"`
}

// StateUpdateFirst carries a full projected snapshot.
type StateUpdateFirst struct {
	TickID   uint64 `msgpack:"tickId"`
	Snapshot []byte `msgpack:"snapshot"`
}

// StateUpdateDiff carries an encoded patch stream.
type StateUpdateDiff struct {
	TickID  uint64       `msgpack:"tickId"`
	Patches []PatchWire  `msgpack:"patches"`
}

// BroadcastUpdate carries a single encoding shared across every recipient
// whose visibility is the plain broadcast view, so the server encodes it
// once and replicates the same bytes to each such session (opcode 107).
type BroadcastUpdate struct {
	TickID        uint64 `msgpack:"tickId"`
	SharedPayload []byte `msgpack:"sharedPayload"`
}

// CloseError is sent immediately before the server closes a connection.
type CloseError struct {
	Code    string `msgpack:"code"`
	Message string `msgpack:"message"`
}

// Encode marshals any message payload to msgpack bytes. Map keys are
// sorted before encoding, so a payload containing a map (a patch value, a
// projected node) always produces the same byte sequence for the same
// logical content, regardless of Go's randomized map iteration order.
func Encode(msg any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode unmarshals msgpack bytes into the given message pointer.
func Decode(data []byte, out any) error {
	return msgpack.Unmarshal(data, out)
}

// EncodeMessageFrame is a convenience that marshals msg and wraps it in a
// Frame with the given opcode and flags.
func EncodeMessageFrame(op Opcode, flags FrameFlags, msg any) ([]byte, error) {
	payload, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(Frame{Opcode: op, Flags: flags, Payload: payload})
}
