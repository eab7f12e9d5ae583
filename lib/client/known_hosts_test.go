package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
)

func TestKnownHostsTrustsOnFirstUse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")

	kh, err := LoadKnownHosts(path)
	require.NoError(t, err)

	priv, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)

	require.NoError(t, kh.Verify("example.com:2222", &priv.PublicKey))
	require.FileExists(t, path)

	// Reloading from disk should remember the pinned key.
	kh2, err := LoadKnownHosts(path)
	require.NoError(t, err)
	require.NoError(t, kh2.Verify("example.com:2222", &priv.PublicKey))
}

func TestKnownHostsRejectsMismatchedKey(t *testing.T) {
	dir := t.TempDir()
	kh, err := LoadKnownHosts(filepath.Join(dir, "known_hosts"))
	require.NoError(t, err)

	priv1, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)
	priv2, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)

	require.NoError(t, kh.Verify("example.com:2222", &priv1.PublicKey))
	require.Error(t, kh.Verify("example.com:2222", &priv2.PublicKey))
}

func TestKnownHostsAllowKeyUpdateRePinsMismatchedKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	kh, err := LoadKnownHosts(path)
	require.NoError(t, err)

	priv1, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)
	priv2, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)

	require.NoError(t, kh.Verify("example.com:2222", &priv1.PublicKey))

	kh.AllowKeyUpdate()
	require.NoError(t, kh.Verify("example.com:2222", &priv2.PublicKey))

	// The updated pin persists and is what a freshly loaded file now has.
	kh2, err := LoadKnownHosts(path)
	require.NoError(t, err)
	require.NoError(t, kh2.Verify("example.com:2222", &priv2.PublicKey))
	require.Error(t, kh2.Verify("example.com:2222", &priv1.PublicKey))
}
