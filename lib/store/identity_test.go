package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileIdentityGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	id := NewFileIdentity(dir, "server_rsa_key")

	priv1, pub1, err := id.ServerKeyPair()
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "server_rsa_key"))
	require.FileExists(t, filepath.Join(dir, "server_rsa_key.pub"))

	// A second identity pointed at the same files loads the same keypair.
	id2 := NewFileIdentity(dir, "server_rsa_key")
	priv2, pub2, err := id2.ServerKeyPair()
	require.NoError(t, err)

	require.Equal(t, priv1.D, priv2.D)
	require.True(t, pub1.Equal(pub2))
}

func TestFileIdentitySatisfiesBothRoles(t *testing.T) {
	dir := t.TempDir()
	id := NewFileIdentity(dir, "client_rsa_key")

	_, serverPub, err := id.ServerKeyPair()
	require.NoError(t, err)
	_, clientPub, err := id.ClientKeyPair()
	require.NoError(t, err)
	require.True(t, serverPub.Equal(clientPub))
}
