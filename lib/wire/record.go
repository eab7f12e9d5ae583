// Package wire implements the length-prefixed record framing: a 4-byte
// big-endian length header, a 1-byte type tag, a 4-byte sequence number,
// a JSON payload, and a 32-byte HMAC trailer, optionally wrapped in
// AES-256/GCM once a session leaves the HANDSHAKE phase.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/defaults"
	"github.com/T1lman/ssh-sub001/lib/protocol"
	"github.com/T1lman/ssh-sub001/lib/protoerr"
)

// Record is one decoded protocol record: a type tag, a sequence number,
// and the raw JSON payload bytes (not yet unmarshaled into a
// protocol.Message).
type Record struct {
	Type    protocol.Type
	Seq     uint32
	Payload []byte
}

// headerLen is the size, in bytes, of the type+sequence fields that follow
// the length prefix inside a record.
const headerLen = 1 + 4

// restLength returns the total_rest_length field value for a record whose
// payload is payloadLen bytes.
func restLength(payloadLen int) uint32 {
	return uint32(headerLen + payloadLen + defaults.MACSize)
}

// buildInner serializes [len][type][seq][payload] — the record bytes that
// the HMAC trailer is computed over, and that are emitted verbatim with a
// zero trailer during HANDSHAKE.
func buildInner(t protocol.Type, seq uint32, payload []byte) []byte {
	rl := restLength(len(payload))
	buf := make([]byte, 4+headerLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], rl)
	buf[4] = byte(t)
	binary.BigEndian.PutUint32(buf[5:9], seq)
	copy(buf[9:], payload)
	return buf
}

// WriteHandshake emits rec verbatim with an all-zero MAC trailer:
// HANDSHAKE-phase records (KEY_EXCHANGE_*) are not encrypted or
// MAC-protected.
func WriteHandshake(w io.Writer, rec Record) error {
	inner := buildInner(rec.Type, rec.Seq, rec.Payload)
	zeroMAC := make([]byte, defaults.MACSize)
	if _, err := w.Write(append(inner, zeroMAC...)); err != nil {
		return protoerr.Transport(err)
	}
	return nil
}

// ReadHandshake reads one verbatim, unencrypted record and returns it
// without validating the (ignored) MAC trailer.
func ReadHandshake(r *bufio.Reader) (Record, error) {
	rl, err := readLength(r)
	if err != nil {
		return Record{}, err
	}
	body := make([]byte, rl)
	if _, err := io.ReadFull(r, body); err != nil {
		return Record{}, protoerr.Transport(err)
	}
	if len(body) < headerLen+defaults.MACSize {
		return Record{}, protoerr.Framing("record too short")
	}
	t := protocol.Type(body[0])
	seq := binary.BigEndian.Uint32(body[1:5])
	payload := body[5 : len(body)-defaults.MACSize]
	return Record{Type: t, Seq: seq, Payload: payload}, nil
}

// WriteSecure builds the inner record, computes and appends its HMAC
// trailer, AES-256/GCM-encrypts the whole thing under a fresh random IV,
// and writes the length-prefixed ciphertext.
func WriteSecure(w io.Writer, aesKey, hmacKey []byte, rec Record) error {
	inner := buildInner(rec.Type, rec.Seq, rec.Payload)
	mac := cryptosuite.HMACSum(hmacKey, inner)
	full := append(inner, mac...)

	blob, err := cryptosuite.Seal(aesKey, full)
	if err != nil {
		return protoerr.Crypto("encrypt record: %v", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(blob)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return protoerr.Transport(err)
	}
	if _, err := w.Write(blob); err != nil {
		return protoerr.Transport(err)
	}
	return nil
}

// ReadSecure reads one encrypted record, decrypts it, verifies its HMAC
// trailer and sequence number against expectedSeq, and returns the
// decoded Record.
func ReadSecure(r *bufio.Reader, aesKey, hmacKey []byte, expectedSeq uint32) (Record, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Record{}, protoerr.Transport(err)
	}
	blobLen := binary.BigEndian.Uint32(lenBuf[:])
	if blobLen == 0 || blobLen > defaults.MaxRecordSize+defaults.GCMNonceSize+16+4 {
		return Record{}, protoerr.ResourceExhausted("oversize encrypted record: %d bytes", blobLen)
	}
	blob := make([]byte, blobLen)
	if _, err := io.ReadFull(r, blob); err != nil {
		return Record{}, protoerr.Transport(err)
	}

	full, err := cryptosuite.Open(aesKey, blob)
	if err != nil {
		return Record{}, protoerr.Crypto("decrypt record: %v", err)
	}
	if len(full) < 4+headerLen+defaults.MACSize {
		return Record{}, protoerr.Framing("decrypted record too short")
	}

	rl := binary.BigEndian.Uint32(full[0:4])
	if int(rl) != len(full)-4 {
		return Record{}, protoerr.Framing("declared length %d does not match record size", rl)
	}
	if rl <= 0 || rl > defaults.MaxRecordSize {
		return Record{}, protoerr.ResourceExhausted("oversize frame: %d bytes", rl)
	}

	header := full[4 : len(full)-defaults.MACSize]
	trailer := full[len(full)-defaults.MACSize:]
	if !cryptosuite.HMACEqual(hmacKey, full[:len(full)-defaults.MACSize], trailer) {
		return Record{}, protoerr.Crypto("hmac mismatch")
	}

	t := protocol.Type(header[0])
	seq := binary.BigEndian.Uint32(header[1:5])
	payload := header[5:]

	if seq != expectedSeq {
		return Record{}, protoerr.Replay(expectedSeq, seq)
	}

	return Record{Type: t, Seq: seq, Payload: payload}, nil
}

// readLength reads and validates the 4-byte length prefix of a HANDSHAKE
// record against the 1 MiB maximum.
func readLength(r *bufio.Reader) (uint32, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, protoerr.Transport(err)
	}
	rl := binary.BigEndian.Uint32(lenBuf[:])
	if rl == 0 || rl > defaults.MaxRecordSize {
		return 0, protoerr.ResourceExhausted("oversize frame: %d bytes", rl)
	}
	return rl, nil
}
