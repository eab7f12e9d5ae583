package cryptosuite

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDHSharedSecretAgrees(t *testing.T) {
	aPriv, err := P2048.GeneratePrivate()
	require.NoError(t, err)
	bPriv, err := P2048.GeneratePrivate()
	require.NoError(t, err)

	aPub := P2048.PublicValue(aPriv)
	bPub := P2048.PublicValue(bPriv)

	aShared, err := P2048.SharedSecret(aPriv, bPub)
	require.NoError(t, err)
	bShared, err := P2048.SharedSecret(bPriv, aPub)
	require.NoError(t, err)

	require.Equal(t, aShared, bShared)
}

func TestDHPublicValueRoundTrip(t *testing.T) {
	priv, err := P2048.GeneratePrivate()
	require.NoError(t, err)
	pub := P2048.PublicValue(priv)

	der, err := P2048.EncodePublicValue(pub)
	require.NoError(t, err)

	decoded, err := P2048.DecodePublicValue(der)
	require.NoError(t, err)
	require.Equal(t, pub, decoded)
}

func TestDHRejectsOutOfRangePeerValue(t *testing.T) {
	priv, err := P2048.GeneratePrivate()
	require.NoError(t, err)

	_, err = P2048.SharedSecret(priv, P2048.P)
	require.Error(t, err)
}

func TestRSASignVerify(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	data := []byte("session-id-base64-text")
	sig, err := Sign(priv, data)
	require.NoError(t, err)
	require.NoError(t, Verify(&priv.PublicKey, data, sig))

	other, err := GenerateKeyPair()
	require.NoError(t, err)
	require.Error(t, Verify(&other.PublicKey, data, sig))
}

func TestPublicKeyTextRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	text, err := EncodePublicKeyText(&priv.PublicKey)
	require.NoError(t, err)

	decoded, err := DecodePublicKeyText(text)
	require.NoError(t, err)
	require.Equal(t, priv.PublicKey, *decoded)
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	plaintext := []byte("hello, encrypted record")
	blob, err := Seal(key, plaintext)
	require.NoError(t, err)

	got, err := Open(key, blob)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestSealProducesDistinctIVs(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		blob, err := Seal(key, []byte("same plaintext every time"))
		require.NoError(t, err)
		iv := string(blob[:12])
		require.False(t, seen[iv], "IV reused across Seal calls")
		seen[iv] = true
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	blob, err := Seal(key, []byte("authentic"))
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0x01

	_, err = Open(key, blob)
	require.Error(t, err)
}

func TestDeriveKeysDeterministicAndDistinct(t *testing.T) {
	secret := []byte("shared-secret-bytes")
	aesKey, hmacKey := DeriveKeys(secret)
	aesKey2, hmacKey2 := DeriveKeys(secret)

	require.Equal(t, aesKey, aesKey2)
	require.Equal(t, hmacKey, hmacKey2)
	require.NotEqual(t, aesKey, hmacKey)
}

func TestHMACEqualDetectsMismatch(t *testing.T) {
	key := []byte("hmac-key")
	data := []byte("protected data")
	mac := HMACSum(key, data)

	require.True(t, HMACEqual(key, data, mac))

	tampered := append([]byte(nil), mac...)
	tampered[0] ^= 0xFF
	require.False(t, HMACEqual(key, data, tampered))
}

func TestPasswordHashIsStableHex(t *testing.T) {
	h1 := PasswordHash("correct horse battery staple")
	h2 := PasswordHash("correct horse battery staple")
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
}
