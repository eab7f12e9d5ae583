package forward

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/T1lman/ssh-sub001/lib/protocol"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []*protocol.Message
}

func (f *fakeSender) Enqueue(msg *protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSender) waitForType(t *testing.T, typ protocol.Type, timeout time.Duration) *protocol.Message {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, m := range f.messages {
			if m.Type == typ {
				f.mu.Unlock()
				return m
			}
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for message type %v", typ)
	return nil
}

func TestLocalForwardDialsAndAccepts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		n, _ := conn.Read(buf)
		conn.Write(buf[:n])
	}()

	sender := &fakeSender{}
	mgr := NewManager(sender, logrus.NewEntry(logrus.New()))

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	ctx := context.Background()
	require.NoError(t, mgr.HandleRequest(ctx, &protocol.Message{
		Type:         protocol.PortForwardRequest,
		ForwardType:  protocol.Local,
		ConnectionID: "conn-1",
		DestHost:     host,
		DestPort:     port,
	}))

	accept := sender.waitForType(t, protocol.PortForwardAccept, time.Second)
	require.True(t, accept.Success)
	require.Equal(t, "conn-1", accept.ConnectionID)

	mgr.HandleData(&protocol.Message{ConnectionID: "conn-1", Data: []byte("hello")})
	reply := sender.waitForType(t, protocol.PortForwardData, time.Second)
	require.Equal(t, []byte("hello"), reply.Data)

	mgr.Close()
}

func TestLocalForwardDialFailureReportsUnsuccessfulAccept(t *testing.T) {
	sender := &fakeSender{}
	mgr := NewManager(sender, logrus.NewEntry(logrus.New()))

	require.NoError(t, mgr.HandleRequest(context.Background(), &protocol.Message{
		ForwardType:  protocol.Local,
		ConnectionID: "conn-2",
		DestHost:     "127.0.0.1",
		DestPort:     1, // nothing listens on port 1
	}))

	accept := sender.waitForType(t, protocol.PortForwardAccept, time.Second)
	require.False(t, accept.Success)
}

func TestHandleDataIgnoresUnknownConnection(t *testing.T) {
	sender := &fakeSender{}
	mgr := NewManager(sender, logrus.NewEntry(logrus.New()))

	// Should not panic.
	mgr.HandleData(&protocol.Message{ConnectionID: "does-not-exist", Data: []byte("x")})
}

func TestHandleCloseIsIdempotent(t *testing.T) {
	sender := &fakeSender{}
	mgr := NewManager(sender, logrus.NewEntry(logrus.New()))

	mgr.HandleClose("never-registered")
	mgr.HandleClose("never-registered")
}
