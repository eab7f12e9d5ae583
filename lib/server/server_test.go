package server

import (
	"context"
	"crypto/rsa"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

type memIdentity struct{ priv *rsa.PrivateKey }

func newMemIdentity(t *testing.T) *memIdentity {
	t.Helper()
	priv, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)
	return &memIdentity{priv: priv}
}

func (m *memIdentity) ServerKeyPair() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	return m.priv, &m.priv.PublicKey, nil
}

type emptyStore struct{}

func (emptyStore) Exists(string) bool                              { return false }
func (emptyStore) VerifyPassword(string, string) bool              { return false }
func (emptyStore) AuthorizedKeys(string) ([]*rsa.PublicKey, error) { return nil, nil }
func (emptyStore) AddUser(string, string) error                    { return nil }
func (emptyStore) RemoveUser(string) error                         { return nil }
func (emptyStore) Reload() error                                   { return nil }

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// TestServeDropsConnectionsAtMaxCapacity exercises the ResourceExhausted
// policy: once every worker-pool slot is in use, a new inbound connection
// is closed immediately, with no bytes written to it, rather than queued
// behind a free slot.
func TestServeDropsConnectionsAtMaxCapacity(t *testing.T) {
	addr := freeAddr(t)
	srv := New(Config{
		ListenAddr:     addr,
		Identity:       newMemIdentity(t),
		Store:          emptyStore{},
		FilesRoot:      t.TempDir(),
		MaxConnections: 1,
		Log:            testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	var conn1 net.Conn
	var err error
	require.Eventually(t, func() bool {
		conn1, err = net.Dial("tcp", addr)
		return err == nil
	}, time.Second, 10*time.Millisecond)
	defer conn1.Close()

	// conn1 is now mid-HANDSHAKE, blocked reading KEY_EXCHANGE_INIT, so
	// the session-supervisor's only slot stays held.
	time.Sleep(50 * time.Millisecond)

	conn2, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn2.Close()

	require.NoError(t, conn2.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 1)
	n, readErr := conn2.Read(buf)
	require.Equal(t, 0, n)
	require.Error(t, readErr)
}

// TestServeReturnsBindErrorOnListenFailure confirms a listen failure is
// reported as a *BindError so callers can distinguish it from every other
// Serve failure (e.g. to choose a distinct process exit code).
func TestServeReturnsBindErrorOnListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	addr := ln.Addr().String()

	srv := New(Config{
		ListenAddr: addr,
		Identity:   newMemIdentity(t),
		Store:      emptyStore{},
		FilesRoot:  t.TempDir(),
		Log:        testLogger(),
	})

	err = srv.Serve(context.Background())
	require.Error(t, err)
	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
}
