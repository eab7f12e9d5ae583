package auth

import (
	"crypto/rsa"
	"crypto/x509"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/protoerr"
	"github.com/T1lman/ssh-sub001/lib/protocol"
)

// genericFailureMessage is returned to the client on every AUTH_FAILURE so
// the server never discloses which factor (password vs. key) failed.
const genericFailureMessage = "authentication failed"

// Request bundles the fields an AUTH_REQUEST supplies.
type Request struct {
	Username    string
	AuthType    protocol.AuthType
	Password    string
	PublicKey   []byte // Base64-decoded X.509 SubjectPublicKeyInfo, already raw DER here
	Signature   []byte
	SessionData []byte // server-supplied: the Base64 text of the session ID, as bytes; the signature is checked over exactly these bytes
}

// Authenticate implements the password/public-key/dual decision table. It
// returns nil on success and a *protoerr.Error of KindAuth with the
// constant genericFailureMessage on any rejection, so callers can forward
// the message to the peer without leaking which check failed.
func Authenticate(store UserStore, req Request) error {
	if !store.Exists(req.Username) {
		return protoerr.Auth(genericFailureMessage)
	}

	switch req.AuthType {
	case protocol.AuthPassword:
		if err := checkPassword(store, req); err != nil {
			return err
		}
	case protocol.AuthPublicKey:
		if err := checkPublicKey(store, req); err != nil {
			return err
		}
	case protocol.AuthDual:
		if err := checkPassword(store, req); err != nil {
			return err
		}
		if err := checkPublicKey(store, req); err != nil {
			return err
		}
	default:
		return protoerr.Auth(genericFailureMessage)
	}
	return nil
}

func checkPassword(store UserStore, req Request) error {
	if req.Password == "" {
		return protoerr.Auth(genericFailureMessage)
	}
	if !store.VerifyPassword(req.Username, req.Password) {
		return protoerr.Auth(genericFailureMessage)
	}
	return nil
}

func checkPublicKey(store UserStore, req Request) error {
	if len(req.PublicKey) == 0 || len(req.Signature) == 0 {
		return protoerr.Auth(genericFailureMessage)
	}
	presented, err := x509.ParsePKIXPublicKey(req.PublicKey)
	if err != nil {
		return protoerr.Auth(genericFailureMessage)
	}
	presentedRSA, ok := presented.(*rsa.PublicKey)
	if !ok {
		return protoerr.Auth(genericFailureMessage)
	}

	authorized, err := store.AuthorizedKeys(req.Username)
	if err != nil {
		return protoerr.Auth(genericFailureMessage)
	}

	var matched *rsa.PublicKey
	for _, k := range authorized {
		if k.Equal(presentedRSA) {
			matched = k
			break
		}
	}
	if matched == nil {
		return protoerr.Auth(genericFailureMessage)
	}

	if err := cryptosuite.Verify(matched, req.SessionData, req.Signature); err != nil {
		return protoerr.Auth(genericFailureMessage)
	}
	return nil
}
