package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/protocol"
)

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := Record{Type: protocol.KeyExchangeInit, Seq: 0, Payload: []byte(`{"type":1}`)}
	require.NoError(t, WriteHandshake(&buf, rec))

	got, err := ReadHandshake(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, rec.Type, got.Type)
	require.Equal(t, rec.Seq, got.Seq)
	require.Equal(t, rec.Payload, got.Payload)
}

func TestSecureRoundTrip(t *testing.T) {
	aesKey := bytes.Repeat([]byte{0x42}, 32)
	hmacKey := bytes.Repeat([]byte{0x24}, 32)

	var buf bytes.Buffer
	rec := Record{Type: protocol.ShellCommand, Seq: 0, Payload: []byte(`{"type":9,"command":"ls"}`)}
	require.NoError(t, WriteSecure(&buf, aesKey, hmacKey, rec))

	got, err := ReadSecure(bufio.NewReader(&buf), aesKey, hmacKey, 0)
	require.NoError(t, err)
	require.Equal(t, rec.Type, got.Type)
	require.Equal(t, rec.Payload, got.Payload)
}

func TestSecureRejectsSequenceMismatch(t *testing.T) {
	aesKey := bytes.Repeat([]byte{0x11}, 32)
	hmacKey := bytes.Repeat([]byte{0x22}, 32)

	var buf bytes.Buffer
	rec := Record{Type: protocol.ShellCommand, Seq: 5, Payload: []byte(`{}`)}
	require.NoError(t, WriteSecure(&buf, aesKey, hmacKey, rec))

	_, err := ReadSecure(bufio.NewReader(&buf), aesKey, hmacKey, 0)
	require.Error(t, err)
}

func TestSecureRejectsTamperedCiphertext(t *testing.T) {
	aesKey := bytes.Repeat([]byte{0x33}, 32)
	hmacKey := bytes.Repeat([]byte{0x44}, 32)

	var buf bytes.Buffer
	rec := Record{Type: protocol.ShellCommand, Seq: 0, Payload: []byte(`{}`)}
	require.NoError(t, WriteSecure(&buf, aesKey, hmacKey, rec))

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF // flip a byte inside the GCM tag

	_, err := ReadSecure(bufio.NewReader(bytes.NewReader(raw)), aesKey, hmacKey, 0)
	require.Error(t, err)
}

func TestSecureRejectsOversizeFrame(t *testing.T) {
	aesKey := bytes.Repeat([]byte{0x55}, 32)
	hmacKey := bytes.Repeat([]byte{0x66}, 32)

	huge := make([]byte, 2<<20) // exceeds MaxRecordSize
	blob, err := cryptosuite.Seal(aesKey, huge)
	require.NoError(t, err)

	var buf bytes.Buffer
	var lenBuf [4]byte
	lenBuf[0] = byte(len(blob) >> 24)
	lenBuf[1] = byte(len(blob) >> 16)
	lenBuf[2] = byte(len(blob) >> 8)
	lenBuf[3] = byte(len(blob))
	buf.Write(lenBuf[:])
	buf.Write(blob)

	_, err = ReadSecure(bufio.NewReader(&buf), aesKey, hmacKey, 0)
	require.Error(t, err)
}
