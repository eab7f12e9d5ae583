package cryptosuite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/gravitational/trace"

	"github.com/T1lman/ssh-sub001/lib/defaults"
)

// hmacSeparator distinguishes the HMAC key derivation from the AES key
// derivation; both peers just need to agree on some distinct separator.
var hmacSeparator = []byte{0x01}

// DeriveKeys turns the raw Diffie-Hellman shared secret into the AES-256
// key and HMAC-SHA-256 key a session uses for the rest of its lifetime:
// aesKey = SHA-256(secret), hmacKey = SHA-256(secret || 0x01).
func DeriveKeys(secret []byte) (aesKey, hmacKey []byte) {
	a := sha256.Sum256(secret)
	h := sha256.Sum256(append(append([]byte{}, secret...), hmacSeparator...))
	return a[:], h[:]
}

// Seal AES-256/GCM-encrypts plaintext under key with a fresh random 96-bit
// IV and no associated data, returning iv||ciphertext||tag.
func Seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, defaults.GCMNonceSize)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	iv := make([]byte, defaults.GCMNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, trace.Wrap(err)
	}
	return gcm.Seal(iv, iv, plaintext, nil), nil
}

// Open is the inverse of Seal: it splits the IV off the front of blob and
// decrypts the remainder.
func Open(key, blob []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, defaults.GCMNonceSize)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if len(blob) < defaults.GCMNonceSize {
		return nil, trace.AccessDenied("ciphertext shorter than nonce")
	}
	iv, ct := blob[:defaults.GCMNonceSize], blob[defaults.GCMNonceSize:]
	pt, err := gcm.Open(nil, iv, ct, nil)
	if err != nil {
		return nil, trace.AccessDenied("gcm decryption failed: %v", err)
	}
	return pt, nil
}

// HMACSum computes HMAC-SHA-256(key, data).
func HMACSum(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// HMACEqual reports whether expected is the correct HMAC-SHA-256 trailer
// for data under key, using a constant-time comparison.
func HMACEqual(key, data, expected []byte) bool {
	got := HMACSum(key, data)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// PasswordHash returns the lowercase-hex SHA-256 digest of a raw UTF-8
// password, matching the users.properties on-disk format.
func PasswordHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
