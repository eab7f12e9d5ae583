package store

import (
	"crypto/rsa"
	"os"
	"path/filepath"

	"github.com/gravitational/trace"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
)

// FileIdentity loads (and, if absent, generates and persists) an RSA
// keypair from <dir>/<name> (PKCS#8 DER private key) and <dir>/<name>.pub
// (Base64 X.509 public key text). It implements both auth.ServerIdentity
// and auth.ClientIdentity, matching the server_keys and client-side
// keypair formats, which share the same on-disk shape.
type FileIdentity struct {
	privPath string
	pubPath  string
}

// NewFileIdentity returns a FileIdentity rooted at dir/name.
func NewFileIdentity(dir, name string) *FileIdentity {
	return &FileIdentity{
		privPath: filepath.Join(dir, name),
		pubPath:  filepath.Join(dir, name+".pub"),
	}
}

// ServerKeyPair implements auth.ServerIdentity.
func (f *FileIdentity) ServerKeyPair() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	return f.loadOrGenerate()
}

// ClientKeyPair implements auth.ClientIdentity.
func (f *FileIdentity) ClientKeyPair() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	return f.loadOrGenerate()
}

func (f *FileIdentity) loadOrGenerate() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if _, err := os.Stat(f.privPath); err == nil {
		priv, err := cryptosuite.LoadPrivateKey(f.privPath)
		if err != nil {
			return nil, nil, trace.Wrap(err)
		}
		return priv, &priv.PublicKey, nil
	} else if !os.IsNotExist(err) {
		return nil, nil, trace.ConvertSystemError(err)
	}

	priv, err := cryptosuite.GenerateKeyPair()
	if err != nil {
		return nil, nil, trace.Wrap(err)
	}
	if err := os.MkdirAll(filepath.Dir(f.privPath), 0700); err != nil {
		return nil, nil, trace.ConvertSystemError(err)
	}
	if err := cryptosuite.SavePrivateKey(f.privPath, priv); err != nil {
		return nil, nil, trace.Wrap(err)
	}
	if err := cryptosuite.SavePublicKey(f.pubPath, &priv.PublicKey); err != nil {
		return nil, nil, trace.Wrap(err)
	}
	return priv, &priv.PublicKey, nil
}
