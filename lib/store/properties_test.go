package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
)

func TestPropertiesUserStoreAddVerifyReload(t *testing.T) {
	dir := t.TempDir()
	propsPath := filepath.Join(dir, "users.properties")
	keysDir := filepath.Join(dir, "authorized_keys")

	s, err := NewPropertiesUserStore(propsPath, keysDir)
	require.NoError(t, err)
	require.False(t, s.Exists("alice"))

	require.NoError(t, s.AddUser("alice", "hunter2"))
	require.True(t, s.Exists("alice"))
	require.True(t, s.VerifyPassword("alice", "hunter2"))
	require.False(t, s.VerifyPassword("alice", "wrong"))

	// A second store reading the same file sees the same user.
	s2, err := NewPropertiesUserStore(propsPath, keysDir)
	require.NoError(t, err)
	require.True(t, s2.VerifyPassword("alice", "hunter2"))
}

func TestPropertiesUserStoreReloadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	propsPath := filepath.Join(dir, "users.properties")
	keysDir := filepath.Join(dir, "authorized_keys")

	s, err := NewPropertiesUserStore(propsPath, keysDir)
	require.NoError(t, err)
	require.NoError(t, s.AddUser("bob", "swordfish"))

	require.NoError(t, s.Reload())
	require.NoError(t, s.Reload())
	require.True(t, s.VerifyPassword("bob", "swordfish"))
}

func TestPropertiesUserStoreRemoveUser(t *testing.T) {
	dir := t.TempDir()
	propsPath := filepath.Join(dir, "users.properties")
	keysDir := filepath.Join(dir, "authorized_keys")

	s, err := NewPropertiesUserStore(propsPath, keysDir)
	require.NoError(t, err)
	require.NoError(t, s.AddUser("carol", "x"))
	require.True(t, s.Exists("carol"))

	require.NoError(t, s.RemoveUser("carol"))
	require.False(t, s.Exists("carol"))
}

func TestAuthorizedKeysRoundTrip(t *testing.T) {
	dir := t.TempDir()
	propsPath := filepath.Join(dir, "users.properties")
	keysDir := filepath.Join(dir, "authorized_keys")

	s, err := NewPropertiesUserStore(propsPath, keysDir)
	require.NoError(t, err)

	priv, err := cryptosuite.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.AddAuthorizedKey("dave", "laptop", &priv.PublicKey))

	keys, err := s.AuthorizedKeys("dave")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.True(t, keys[0].Equal(&priv.PublicKey))
}

func TestAuthorizedKeysMissingUserIsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := NewPropertiesUserStore(filepath.Join(dir, "users.properties"), filepath.Join(dir, "authorized_keys"))
	require.NoError(t, err)

	keys, err := s.AuthorizedKeys("nobody")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestPropertiesFileIgnoresCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	propsPath := filepath.Join(dir, "users.properties")
	require.NoError(t, os.WriteFile(propsPath, []byte("# comment\n\nalice="+cryptosuite.PasswordHash("pw")+"\n"), 0600))

	s, err := NewPropertiesUserStore(propsPath, filepath.Join(dir, "authorized_keys"))
	require.NoError(t, err)
	require.True(t, s.VerifyPassword("alice", "pw"))
}
