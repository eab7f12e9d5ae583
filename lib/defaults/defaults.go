// Package defaults holds the constants that govern frame sizes, timeouts,
// and listener behavior across the relay core, consulted by every other
// package instead of each one hard-coding its own magic numbers.
package defaults

import "time"

const (
	// ServerPort is the TCP port the server listens on when --port is not
	// given.
	ServerPort = 2222

	// MaxRecordSize is the largest frame accepted on the wire, in bytes.
	MaxRecordSize = 1 << 20 // 1 MiB

	// FileChunkSize is the chunk size used when streaming FILE_DATA
	// messages for downloads and port-forward relays alike.
	FileChunkSize = 8 * 1024

	// HandshakeTimeout bounds the time a session may spend in the
	// HANDSHAKE phase before the connection is dropped.
	HandshakeTimeout = 30 * time.Second

	// AuthTimeout bounds the time a session may spend in the AUTH phase.
	AuthTimeout = 30 * time.Second

	// ReadPollInterval is a socket read-deadline polling interval. No
	// package reads it: the receive loop blocks on each read, and
	// Session.WithDeadline sets a deadline only when its context ends.
	ReadPollInterval = 100 * time.Millisecond

	// MaxConnections is the default size of the session supervisor's
	// worker pool when --max-connections is not given.
	MaxConnections = 256

	// OutgoingQueueSize bounds how many messages may be buffered on a
	// session's single-writer outgoing queue before producers block.
	OutgoingQueueSize = 256

	// ForwardQueueSize is a per-port-forward-channel backlog size. No
	// package reads it: lib/forward keeps no per-channel queue, and its
	// relays enqueue directly onto the session's outgoing queue.
	ForwardQueueSize = 64

	// KeyBits is the RSA modulus size used for server and client
	// long-term identity keys.
	KeyBits = 2048

	// AESKeySize and HMACKeySize are the sizes, in bytes, of the two keys
	// derived from the Diffie-Hellman shared secret.
	AESKeySize  = 32
	HMACKeySize = 32

	// MACSize is the size in bytes of the HMAC-SHA-256 trailer appended to
	// every past-handshake record.
	MACSize = 32

	// GCMNonceSize is the size in bytes of the random AES-GCM IV prefixed
	// to every encrypted record on the wire.
	GCMNonceSize = 12

	// FilesRootDir is the default root under which per-user upload and
	// download directories are created.
	FilesRootDir = "data/server/files"
)
