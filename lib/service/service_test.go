package service

import (
	"context"
	"crypto/rsa"
	"net"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/forward"
	"github.com/T1lman/ssh-sub001/lib/protocol"
	"github.com/T1lman/ssh-sub001/lib/session"
	"github.com/T1lman/ssh-sub001/lib/shell"
)

func newLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

// fixedIdentity implements auth.ServerIdentity/auth.ClientIdentity over a
// single in-memory RSA keypair.
type fixedIdentity struct {
	priv *rsa.PrivateKey
}

func newTestIdentity() (*fixedIdentity, error) {
	priv, err := cryptosuite.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &fixedIdentity{priv: priv}, nil
}

func (f *fixedIdentity) ServerKeyPair() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	return f.priv, &f.priv.PublicKey, nil
}

func (f *fixedIdentity) ClientKeyPair() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	return f.priv, &f.priv.PublicKey, nil
}

// testStore implements auth.UserStore with a single hard-coded user.
type testStore struct {
	username, password string
}

func (s *testStore) Exists(username string) bool { return username == s.username }
func (s *testStore) VerifyPassword(username, password string) bool {
	return username == s.username && password == s.password
}
func (s *testStore) AuthorizedKeys(username string) ([]*rsa.PublicKey, error) { return nil, nil }
func (s *testStore) AddUser(username, password string) error                  { return nil }
func (s *testStore) RemoveUser(username string) error                         { return nil }
func (s *testStore) Reload() error                                            { return nil }

// newAuthenticatedPair runs a real HANDSHAKE+AUTH exchange over a net.Pipe
// and returns both ends already in the SERVICE phase, with each side's
// sender goroutine running.
func newAuthenticatedPair(t *testing.T) (client, server *session.Session) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	clock := clockwork.NewRealClock()
	client = session.New(clientConn, session.RoleClient, newLogger(), clock)
	server = session.New(serverConn, session.RoleServer, newLogger(), clock)

	identity, err := newTestIdentity()
	require.NoError(t, err)
	store := &testStore{username: "alice", password: "hunter2"}

	var wg sync.WaitGroup
	wg.Add(2)
	var serverErr, clientErr error
	go func() {
		defer wg.Done()
		if err := server.ServerHandshake(identity); err != nil {
			serverErr = err
			return
		}
		serverErr = server.ServerAuthenticate(store)
	}()
	go func() {
		defer wg.Done()
		if err := client.ClientHandshake("test-client", nil); err != nil {
			clientErr = err
			return
		}
		clientErr = client.ClientAuthenticate(session.ClientCredentials{
			Username: "alice",
			AuthType: protocol.AuthPassword,
			Password: "hunter2",
		})
	}()
	wg.Wait()
	require.NoError(t, serverErr)
	require.NoError(t, clientErr)

	go client.RunSender()
	go server.RunSender()
	return client, server
}

func TestServiceRequestReceivesAccept(t *testing.T) {
	client, server := newAuthenticatedPair(t)
	defer client.Close()
	defer server.Close()

	executor, err := shell.NewOSExecutor(".")
	require.NoError(t, err)

	d := New(server, &testStore{username: "alice", password: "hunter2"}, executor, nil, forward.NewManager(server, newLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, client.Enqueue(&protocol.Message{
		Type:    protocol.ServiceRequest,
		Service: "shell",
	}))

	reply, err := client.ReadSecure()
	require.NoError(t, err)
	require.Equal(t, protocol.ServiceAccept, reply.Type)
	require.Equal(t, "shell", reply.Service)
	require.True(t, reply.Success)
}
