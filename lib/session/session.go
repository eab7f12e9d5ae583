// Package session implements the three-phase session state machine:
// HANDSHAKE, AUTH, SERVICE, CLOSED. A Session wraps one TCP connection
// and owns the sequence counters, derived keys, and single-writer
// outgoing queue the protocol requires. The phase-gated receive/send
// helpers here are deliberately small; the service dispatch table that
// rides on top of them lives in lib/service (server side) and lib/client
// (client side), keeping a session's bookkeeping separate from its
// command dispatch.
package session

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/T1lman/ssh-sub001/lib/defaults"
	"github.com/T1lman/ssh-sub001/lib/metrics"
	"github.com/T1lman/ssh-sub001/lib/protoerr"
	"github.com/T1lman/ssh-sub001/lib/protocol"
	"github.com/T1lman/ssh-sub001/lib/wire"
)

var errSessionClosed = errors.New("session closed")

// Phase is a session's position in the state-machine lifecycle.
type Phase int

const (
	Handshake Phase = iota
	Auth
	Service
	Closed
)

func (p Phase) String() string {
	switch p {
	case Handshake:
		return "HANDSHAKE"
	case Auth:
		return "AUTH"
	case Service:
		return "SERVICE"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Role distinguishes the two ends of a session; the state machine is
// symmetric in shape but the HANDSHAKE and AUTH transitions act
// differently on each side.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Session is one TCP connection running the protocol. Its exported fields
// are a session's externally visible attributes; its unexported fields
// are the concurrency plumbing.
type Session struct {
	ID   string
	Role Role

	conn   net.Conn
	reader *bufio.Reader
	log    *logrus.Entry
	clock  clockwork.Clock

	mu    sync.Mutex
	phase Phase

	Username string

	aesKey  []byte
	hmacKey []byte

	sendSeq uint32 // only touched by the single sender goroutine
	recvSeq uint32 // only touched by the single receive goroutine

	// Outgoing is the session-level queue every producer (receive-loop
	// replies, port-forward relays, the file-download streamer) enqueues
	// onto; a single sender goroutine drains it onto the wire so the
	// sequence counter and GCM IV stream stay single-writer.
	Outgoing chan *protocol.Message

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps conn in a Session in the HANDSHAKE phase.
func New(conn net.Conn, role Role, log *logrus.Entry, clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		ID:       uuid.NewString(),
		Role:     role,
		conn:     conn,
		reader:   bufio.NewReader(conn),
		log:      log,
		clock:    clock,
		phase:    Handshake,
		Outgoing: make(chan *protocol.Message, defaults.OutgoingQueueSize),
		closed:   make(chan struct{}),
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// EnableCrypto installs the derived AES/HMAC keys and resets both
// sequence counters to 0: the first encrypted record on each direction
// has sequence number 0.
func (s *Session) EnableCrypto(aesKey, hmacKey []byte) {
	s.mu.Lock()
	s.aesKey = aesKey
	s.hmacKey = hmacKey
	s.sendSeq = 0
	s.recvSeq = 0
	s.mu.Unlock()
}

// Conn exposes the underlying transport for deadline management.
func (s *Session) Conn() net.Conn { return s.conn }

// Log returns the session's scoped logger.
func (s *Session) Log() *logrus.Entry { return s.log }

// Clock returns the session's time source.
func (s *Session) Clock() clockwork.Clock { return s.clock }

// WriteHandshake sends msg verbatim with a zero MAC trailer. Only valid
// while Phase() == Handshake.
func (s *Session) WriteHandshake(msg *protocol.Message) error {
	payload, err := encodePayload(msg)
	if err != nil {
		return err
	}
	seq := s.nextSendSeq()
	return wire.WriteHandshake(s.conn, wire.Record{Type: msg.Type, Seq: seq, Payload: payload})
}

// ReadHandshake reads one verbatim record and decodes it. Only valid
// while Phase() == Handshake.
func (s *Session) ReadHandshake() (*protocol.Message, error) {
	rec, err := wire.ReadHandshake(s.reader)
	if err != nil {
		return nil, err
	}
	if err := s.checkRecvSeq(rec.Seq); err != nil {
		return nil, err
	}
	return protocol.DecodePayload(rec.Type, rec.Payload)
}

// WriteSecure encrypts and sends msg. Only valid once crypto has been
// enabled (AUTH phase onward).
func (s *Session) WriteSecure(msg *protocol.Message) error {
	payload, err := encodePayload(msg)
	if err != nil {
		return err
	}
	seq := s.nextSendSeq()
	s.mu.Lock()
	aesKey, hmacKey := s.aesKey, s.hmacKey
	s.mu.Unlock()
	if err := wire.WriteSecure(s.conn, aesKey, hmacKey, wire.Record{Type: msg.Type, Seq: seq, Payload: payload}); err != nil {
		return err
	}
	metrics.BytesSent.Add(float64(len(payload)))
	return nil
}

// ReadSecure reads, decrypts, and validates one record against the
// expected receive sequence number.
func (s *Session) ReadSecure() (*protocol.Message, error) {
	s.mu.Lock()
	aesKey, hmacKey, expected := s.aesKey, s.hmacKey, s.recvSeq
	s.mu.Unlock()

	rec, err := wire.ReadSecure(s.reader, aesKey, hmacKey, expected)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.recvSeq++
	s.mu.Unlock()
	metrics.BytesReceived.Add(float64(len(rec.Payload)))
	if protocol.ReservedShellData(rec.Type) {
		// Hand the reserved tag up undecoded so the caller can reject it.
		return &protocol.Message{Type: rec.Type, Seq: rec.Seq}, nil
	}
	return protocol.DecodePayload(rec.Type, rec.Payload)
}

func (s *Session) nextSendSeq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.sendSeq
	s.sendSeq++
	return seq
}

// checkRecvSeq validates and advances the receive counter for HANDSHAKE
// records, which still carry real sequence numbers even though their MAC
// is not checked.
func (s *Session) checkRecvSeq(got uint32) error {
	s.mu.Lock()
	expected := s.recvSeq
	if got != expected {
		s.mu.Unlock()
		return protoerr.Replay(expected, got)
	}
	s.recvSeq++
	s.mu.Unlock()
	return nil
}

func encodePayload(msg *protocol.Message) ([]byte, error) {
	return protocol.EncodePayload(msg)
}

// EnterAuth transitions HANDSHAKE -> AUTH.
func (s *Session) EnterAuth() { s.setPhase(Auth) }

// EnterService transitions AUTH -> SERVICE and records the authenticated
// username.
func (s *Session) EnterService(username string) {
	s.mu.Lock()
	s.Username = username
	s.phase = Service
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()
}

// Enqueue places msg on the single-writer outgoing queue. Every producer
// in the SERVICE phase other than the sender goroutine itself — the
// dispatch loop's replies, port-forward relays, the file-download
// streamer — must go through Enqueue instead of WriteSecure directly.
func (s *Session) Enqueue(msg *protocol.Message) error {
	select {
	case s.Outgoing <- msg:
		return nil
	case <-s.closed:
		return protoerr.Transport(errSessionClosed)
	}
}

// RunSender is the single dedicated goroutine that drains Outgoing and
// writes each message to the transport in arrival order, the only thing
// that is allowed to call WriteSecure once the session has left HANDSHAKE
// and AUTH. It returns when the session closes.
func (s *Session) RunSender() {
	for {
		select {
		case msg := <-s.Outgoing:
			if err := s.WriteSecure(msg); err != nil {
				s.log.WithError(err).Warn("sender: failed to write message, closing session")
				_ = s.Close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

// Done returns a channel closed when the session is closed, for
// goroutines that need to select on session lifetime.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Close closes the transport exactly once, releasing it for every
// concurrent reader/writer blocked on it.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		wasService := s.Phase() == Service
		s.setPhase(Closed)
		err = s.conn.Close()
		close(s.closed)
		if wasService {
			metrics.ActiveSessions.Dec()
		}
	})
	return err
}

// WithDeadline runs fn and, if ctx ends first, sets an immediate deadline
// on the transport so a read blocked inside fn returns, then waits for fn
// and returns ctx.Err(). The deadline is not refreshed periodically.
func (s *Session) WithDeadline(ctx context.Context, fn func() error) error {
	done := make(chan struct{})
	var fnErr error
	go func() {
		fnErr = fn()
		close(done)
	}()
	select {
	case <-done:
		return fnErr
	case <-ctx.Done():
		_ = s.conn.SetDeadline(s.clock.Now())
		<-done
		return ctx.Err()
	case <-s.closed:
		<-done
		return fnErr
	}
}
