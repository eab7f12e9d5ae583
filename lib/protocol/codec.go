package protocol

import (
	"encoding/json"

	"github.com/gravitational/trace"
)

// Binary payload fields (keys, signatures, file chunks) travel
// Base64-encoded inside the self-describing JSON payload. encoding/json
// already does this for []byte fields automatically.

// EncodePayload serializes the non-framing fields of msg to the JSON
// payload carried inside a wire.Record.
func EncodePayload(msg *Message) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, trace.BadParameter("unknown message type %d", msg.Type)
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return b, nil
}

// DecodePayload parses a JSON payload into a Message carrying the given
// type tag. Unknown JSON fields are ignored for forward compatibility, as
// encoding/json does by default. An unknown type tag fails hard.
func DecodePayload(t Type, payload []byte) (*Message, error) {
	if ReservedShellData(t) {
		return nil, trace.BadParameter("message type SHELL_DATA (8) is reserved and unused")
	}
	if !t.Valid() {
		return nil, trace.BadParameter("unknown message type tag %d", t)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, trace.BadParameter("malformed payload for %s: %v", t, err)
	}
	msg.Type = t
	return &msg, nil
}
