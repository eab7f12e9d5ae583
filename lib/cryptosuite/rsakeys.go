package cryptosuite

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"

	"github.com/gravitational/trace"

	"github.com/T1lman/ssh-sub001/lib/defaults"
)

// GenerateKeyPair creates a fresh RSA-2048 long-term identity key.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, defaults.KeyBits)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return key, nil
}

// SavePrivateKey writes priv to path as PKCS#8 DER bytes, matching the
// server_keys/server_rsa_key on-disk format.
func SavePrivateKey(path string, priv *rsa.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := os.WriteFile(path, der, 0600); err != nil {
		return trace.ConvertSystemError(err)
	}
	return nil
}

// LoadPrivateKey reads a PKCS#8 DER-encoded RSA private key from path.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return ParsePrivateKey(der)
}

// ParsePrivateKey parses PKCS#8 DER bytes into an RSA private key.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, trace.BadParameter("invalid private key: %v", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, trace.BadParameter("private key is not RSA")
	}
	return rsaKey, nil
}

// SavePublicKey writes pub to path as Base64 X.509 SubjectPublicKeyInfo
// text, matching the server_keys/server_rsa_key.pub format.
func SavePublicKey(path string, pub *rsa.PublicKey) error {
	text, err := EncodePublicKeyText(pub)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return trace.ConvertSystemError(err)
	}
	return nil
}

// LoadPublicKey reads a Base64 X.509 SubjectPublicKeyInfo text file.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return DecodePublicKeyText(string(text))
}

// EncodePublicKeyText Base64-encodes the X.509 SubjectPublicKeyInfo DER
// form of pub, the wire/on-disk representation used throughout
// (serverPublicKey, publicKey, authorized_keys/<user>/<id>.pub).
func EncodePublicKeyText(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", trace.Wrap(err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// DecodePublicKeyText is the inverse of EncodePublicKeyText.
func DecodePublicKeyText(text string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(stripPEM(text))
	if err != nil {
		return nil, trace.BadParameter("invalid base64 public key: %v", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, trace.BadParameter("invalid public key: %v", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, trace.BadParameter("public key is not RSA")
	}
	return rsaKey, nil
}

func stripPEM(s string) string {
	if block, _ := pem.Decode([]byte(s)); block != nil {
		return base64.StdEncoding.EncodeToString(block.Bytes)
	}
	return s
}

// Sign produces an RSA-SHA256 PKCS#1 v1.5 signature over data.
func Sign(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return sig, nil
}

// Verify checks an RSA-SHA256 PKCS#1 v1.5 signature produced by Sign.
func Verify(pub *rsa.PublicKey, data, sig []byte) error {
	digest := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return trace.AccessDenied("signature verification failed")
	}
	return nil
}
