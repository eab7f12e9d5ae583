package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := &Message{
		Type:     ShellCommand,
		Command:  "ls -la",
		ExitCode: 0,
	}
	payload, err := EncodePayload(msg)
	require.NoError(t, err)

	decoded, err := DecodePayload(ShellCommand, payload)
	require.NoError(t, err)
	require.Equal(t, msg.Command, decoded.Command)
	require.Equal(t, ShellCommand, decoded.Type)
}

func TestEncodeRejectsInvalidType(t *testing.T) {
	_, err := EncodePayload(&Message{Type: Type(99)})
	require.Error(t, err)
}

func TestDecodeRejectsReservedType(t *testing.T) {
	_, err := DecodePayload(shellDataReserved, []byte(`{}`))
	require.Error(t, err)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := DecodePayload(Type(200), []byte(`{}`))
	require.Error(t, err)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := DecodePayload(ShellCommand, []byte(`not json`))
	require.Error(t, err)
}

func TestBinaryFieldsRoundTripAsBase64(t *testing.T) {
	msg := &Message{
		Type:        KeyExchangeInit,
		DHPublicKey: []byte{0x00, 0x01, 0xFF, 0xAB},
	}
	payload, err := EncodePayload(msg)
	require.NoError(t, err)

	decoded, err := DecodePayload(KeyExchangeInit, payload)
	require.NoError(t, err)
	require.Equal(t, msg.DHPublicKey, decoded.DHPublicKey)
}
