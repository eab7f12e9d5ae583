package session

import (
	"crypto/rsa"
	"net"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/protocol"
)

func newLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

func newTestSessionPair(t *testing.T) (*Session, *Session) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	clock := clockwork.NewRealClock()
	client := New(clientConn, RoleClient, newLogger(), clock)
	server := New(serverConn, RoleServer, newLogger(), clock)
	return client, server
}

// fixedIdentity implements auth.ServerIdentity/auth.ClientIdentity over a
// single in-memory RSA keypair, for tests that don't need on-disk
// persistence.
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

// testStore implements auth.UserStore with a single hard-coded user, for
// tests that only need password authentication.
type testStore struct {
	username, password string
}

func newTestStore(username, password string) *testStore {
	return &testStore{username: username, password: password}
}

func (s *testStore) Exists(username string) bool { return username == s.username }
func (s *testStore) VerifyPassword(username, password string) bool {
	return username == s.username && password == s.password
}
func (s *testStore) AuthorizedKeys(username string) ([]*rsa.PublicKey, error) { return nil, nil }
func (s *testStore) AddUser(username, password string) error                  { return nil }
func (s *testStore) RemoveUser(username string) error                         { return nil }
func (s *testStore) Reload() error                                            { return nil }

func TestHandshakeDerivesMatchingKeys(t *testing.T) {
	client, server := newTestSessionPair(t)

	identity, err := newTestIdentity()
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)

	var serverErr, clientErr error
	go func() {
		defer wg.Done()
		serverErr = server.ServerHandshake(identity)
	}()
	go func() {
		defer wg.Done()
		clientErr = client.ClientHandshake("test-client", nil)
	}()
	wg.Wait()

	require.NoError(t, serverErr)
	require.NoError(t, clientErr)
	require.Equal(t, server.aesKey, client.aesKey)
	require.Equal(t, server.hmacKey, client.hmacKey)
	require.Equal(t, Auth, server.Phase())
	require.Equal(t, Auth, client.Phase())
	require.Equal(t, server.ID, client.ID)
}

func TestFullHandshakeAndAuthFlow(t *testing.T) {
	client, server := newTestSessionPair(t)
	identity, err := newTestIdentity()
	require.NoError(t, err)
	store := newTestStore("alice", "hunter2")

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
		clientErr = client.ClientAuthenticate(ClientCredentials{
			Username: "alice",
			AuthType: protocol.AuthPassword,
			Password: "hunter2",
		})
	}()
	wg.Wait()

	require.NoError(t, serverErr)
	require.NoError(t, clientErr)
	require.Equal(t, Service, server.Phase())
	require.Equal(t, Service, client.Phase())
	require.Equal(t, "alice", server.Username)
}

func TestAuthFailureKeepsSessionOutOfService(t *testing.T) {
	client, server := newTestSessionPair(t)
	identity, err := newTestIdentity()
	require.NoError(t, err)
	store := newTestStore("alice", "hunter2")

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
		clientErr = client.ClientAuthenticate(ClientCredentials{
			Username: "alice",
			AuthType: protocol.AuthPassword,
			Password: "wrong-password",
		})
	}()
	wg.Wait()

	require.Error(t, serverErr)
	require.Error(t, clientErr)
	require.NotEqual(t, Service, server.Phase())
	require.NotEqual(t, Service, client.Phase())
}

func TestEnqueueAfterCloseReturnsError(t *testing.T) {
	client, _ := newTestSessionPair(t)
	require.NoError(t, client.Close())

	err := client.Enqueue(&protocol.Message{Type: protocol.Disconnect})
	require.Error(t, err)
}
