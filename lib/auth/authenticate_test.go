package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/protocol"
)

type fakeStore struct {
	users     map[string]string // username -> password
	keys      map[string][]*rsa.PublicKey
	reloadErr error
}

func (f *fakeStore) Exists(username string) bool {
	_, ok := f.users[username]
	return ok
}

func (f *fakeStore) VerifyPassword(username, password string) bool {
	want, ok := f.users[username]
	return ok && want == password
}

func (f *fakeStore) AuthorizedKeys(username string) ([]*rsa.PublicKey, error) {
	return f.keys[username], nil
}

func (f *fakeStore) AddUser(username, password string) error {
	f.users[username] = password
	return nil
}

func (f *fakeStore) RemoveUser(username string) error {
	delete(f.users, username)
	return nil
}

func (f *fakeStore) Reload() error { return f.reloadErr }

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]string{}, keys: map[string][]*rsa.PublicKey{}}
}

func TestAuthenticatePasswordSuccess(t *testing.T) {
	store := newFakeStore()
	store.users["alice"] = "hunter2"

	err := Authenticate(store, Request{Username: "alice", AuthType: protocol.AuthPassword, Password: "hunter2"})
	require.NoError(t, err)
}

func TestAuthenticatePasswordFailureIsGeneric(t *testing.T) {
	store := newFakeStore()
	store.users["alice"] = "hunter2"

	err := Authenticate(store, Request{Username: "alice", AuthType: protocol.AuthPassword, Password: "wrong"})
	require.Error(t, err)
	require.Equal(t, genericFailureMessage, err.Error())
}

func TestAuthenticateUnknownUserIsGeneric(t *testing.T) {
	store := newFakeStore()
	err := Authenticate(store, Request{Username: "nobody", AuthType: protocol.AuthPassword, Password: "x"})
	require.Error(t, err)
	require.Equal(t, genericFailureMessage, err.Error())
}

func TestAuthenticatePublicKeySuccess(t *testing.T) {
	store := newFakeStore()
	store.users["bob"] = "irrelevant"
	priv, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)
	store.keys["bob"] = []*rsa.PublicKey{&priv.PublicKey}

	sessionData := []byte("c2Vzc2lvbi1pZA==")
	sig, err := cryptosuite.Sign(priv, sessionData)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)

	err = Authenticate(store, Request{
		Username:    "bob",
		AuthType:    protocol.AuthPublicKey,
		PublicKey:   pubDER,
		Signature:   sig,
		SessionData: sessionData,
	})
	require.NoError(t, err)
}

func TestAuthenticatePublicKeyRejectsUnauthorizedKey(t *testing.T) {
	store := newFakeStore()
	store.users["bob"] = "irrelevant"
	authorized, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)
	store.keys["bob"] = []*rsa.PublicKey{&authorized.PublicKey}

	unauthorized, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)
	sessionData := []byte("c2Vzc2lvbi1pZA==")
	sig, err := cryptosuite.Sign(unauthorized, sessionData)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&unauthorized.PublicKey)
	require.NoError(t, err)

	err = Authenticate(store, Request{
		Username:    "bob",
		AuthType:    protocol.AuthPublicKey,
		PublicKey:   pubDER,
		Signature:   sig,
		SessionData: sessionData,
	})
	require.Error(t, err)
	require.Equal(t, genericFailureMessage, err.Error())
}

func TestAuthenticateDualRequiresBoth(t *testing.T) {
	store := newFakeStore()
	store.users["carol"] = "swordfish"
	priv, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)
	store.keys["carol"] = []*rsa.PublicKey{&priv.PublicKey}

	sessionData := []byte("c2Vzc2lvbi1pZA==")
	sig, err := cryptosuite.Sign(priv, sessionData)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)

	// Wrong password, correct key: dual must still fail.
	err = Authenticate(store, Request{
		Username:    "carol",
		AuthType:    protocol.AuthDual,
		Password:    "wrong",
		PublicKey:   pubDER,
		Signature:   sig,
		SessionData: sessionData,
	})
	require.Error(t, err)

	err = Authenticate(store, Request{
		Username:    "carol",
		AuthType:    protocol.AuthDual,
		Password:    "swordfish",
		PublicKey:   pubDER,
		Signature:   sig,
		SessionData: sessionData,
	})
	require.NoError(t, err)
}
