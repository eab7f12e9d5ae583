// Package forward implements the port-forward multiplexer:
// per-connectionId virtual byte streams relayed over a single session,
// with every relay goroutine enqueuing onto the session's single-writer
// outgoing queue rather than writing to the transport directly. The
// enqueue-don't-write discipline keeps the sequence counter and
// per-record crypto IVs race-free under concurrent producers; the relay
// loop itself follows the common accept/copy/close pattern of TCP
// tunnel relays.
package forward

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/T1lman/ssh-sub001/lib/defaults"
	"github.com/T1lman/ssh-sub001/lib/metrics"
	"github.com/T1lman/ssh-sub001/lib/protocol"
)

// Channel is one virtual byte stream bridging a PORT_FORWARD_* connection
// id to a real TCP socket.
type Channel struct {
	ID        string
	Direction protocol.ForwardDirection
	conn      net.Conn
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *Channel) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

// Sender is the narrow interface Manager needs from a session: enqueue a
// message onto the single-writer outgoing queue. Both lib/session.Session
// and test doubles satisfy it.
type Sender interface {
	Enqueue(msg *protocol.Message) error
}

// Manager tracks every open port-forward channel and listener for one
// session. A session owns exactly one Manager.
type Manager struct {
	mu        sync.Mutex
	channels  map[string]*Channel
	listeners map[int]net.Listener

	sender Sender
	log    *logrus.Entry
}

// NewManager returns a Manager that enqueues outgoing traffic onto sender.
func NewManager(sender Sender, log *logrus.Entry) *Manager {
	return &Manager{
		channels:  make(map[string]*Channel),
		listeners: make(map[int]net.Listener),
		sender:    sender,
		log:       log,
	}
}

// HandleRequest processes a PORT_FORWARD_REQUEST.
func (m *Manager) HandleRequest(ctx context.Context, msg *protocol.Message) error {
	switch msg.ForwardType {
	case protocol.Local:
		return m.handleLocal(ctx, msg.ConnectionID, msg.DestHost, msg.DestPort)
	case protocol.Remote:
		return m.handleRemote(ctx, msg.SourcePort, msg.DestHost, msg.DestPort)
	default:
		return m.sender.Enqueue(&protocol.Message{
			Type:         protocol.PortForwardAccept,
			ConnectionID: msg.ConnectionID,
			Success:      false,
			ErrorMessage: fmt.Sprintf("unknown forward type %q", msg.ForwardType),
		})
	}
}

func (m *Manager) handleLocal(ctx context.Context, connID, destHost string, destPort int) error {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", destHost, destPort))
	if err != nil {
		return m.sender.Enqueue(&protocol.Message{
			Type:         protocol.PortForwardAccept,
			ConnectionID: connID,
			Success:      false,
			ErrorMessage: err.Error(),
		})
	}

	m.register(ctx, connID, protocol.Local, conn)
	if err := m.sender.Enqueue(&protocol.Message{
		Type:         protocol.PortForwardAccept,
		ConnectionID: connID,
		Success:      true,
	}); err != nil {
		return err
	}
	return nil
}

// handleRemote binds sourcePort (once per port) and relays every accepted
// inbound connection under a freshly generated connectionId, emitting one
// PORT_FORWARD_ACCEPT per accepted connection.
func (m *Manager) handleRemote(ctx context.Context, sourcePort int, destHost string, destPort int) error {
	m.mu.Lock()
	if _, exists := m.listeners[sourcePort]; exists {
		m.mu.Unlock()
		return nil
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", sourcePort))
	if err != nil {
		m.mu.Unlock()
		return m.sender.Enqueue(&protocol.Message{
			Type:         protocol.PortForwardAccept,
			ConnectionID: "",
			Success:      false,
			ErrorMessage: err.Error(),
		})
	}
	m.listeners[sourcePort] = ln
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			connID := uuid.NewString()
			m.register(ctx, connID, protocol.Remote, conn)
			_ = m.sender.Enqueue(&protocol.Message{
				Type:         protocol.PortForwardAccept,
				ConnectionID: connID,
				Success:      true,
			})
		}
	}()
	return nil
}

// register starts the relay goroutine that copies bytes from conn onto
// the outgoing queue as PORT_FORWARD_DATA messages, and tracks the
// channel so HandleData/HandleClose can find it.
func (m *Manager) register(parent context.Context, connID string, dir protocol.ForwardDirection, conn net.Conn) {
	ctx, cancel := context.WithCancel(parent)
	ch := &Channel{ID: connID, Direction: dir, conn: conn, cancel: cancel}

	m.mu.Lock()
	m.channels[connID] = ch
	m.mu.Unlock()
	metrics.ActiveForwards.Inc()

	go m.relay(ctx, ch)
}

func (m *Manager) relay(ctx context.Context, ch *Channel) {
	defer m.remove(ch.ID)
	defer ch.close()

	buf := make([]byte, defaults.FileChunkSize)
	for {
		n, err := ch.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if enqErr := m.sender.Enqueue(&protocol.Message{
				Type:         protocol.PortForwardData,
				ConnectionID: ch.ID,
				Data:         data,
			}); enqErr != nil {
				return
			}
		}
		if err != nil {
			_ = m.sender.Enqueue(&protocol.Message{
				Type:         protocol.PortForwardClose,
				ConnectionID: ch.ID,
			})
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// HandleData writes an inbound PORT_FORWARD_DATA message's payload to the
// matching channel's socket. Data for an unknown (already-closed)
// connectionId is ignored.
func (m *Manager) HandleData(msg *protocol.Message) {
	m.mu.Lock()
	ch, ok := m.channels[msg.ConnectionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if _, err := ch.conn.Write(msg.Data); err != nil {
		m.HandleClose(msg.ConnectionID)
	}
}

// HandleClose closes and forgets the channel for connectionId. Closing an
// already-closed or unknown id is a no-op.
func (m *Manager) HandleClose(connID string) {
	m.mu.Lock()
	ch, ok := m.channels[connID]
	delete(m.channels, connID)
	m.mu.Unlock()
	if ok {
		ch.close()
		metrics.ActiveForwards.Dec()
	}
}

func (m *Manager) remove(connID string) {
	m.mu.Lock()
	_, ok := m.channels[connID]
	delete(m.channels, connID)
	m.mu.Unlock()
	if ok {
		metrics.ActiveForwards.Dec()
	}
}

// Close tears down every open channel and listener, for use when the
// owning session closes.
func (m *Manager) Close() {
	m.mu.Lock()
	channels := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.channels = make(map[string]*Channel)
	listeners := make([]net.Listener, 0, len(m.listeners))
	for _, ln := range m.listeners {
		listeners = append(listeners, ln)
	}
	m.listeners = make(map[int]net.Listener)
	m.mu.Unlock()

	for _, ch := range channels {
		ch.close()
		metrics.ActiveForwards.Dec()
	}
	for _, ln := range listeners {
		_ = ln.Close()
	}
}
