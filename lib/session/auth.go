package session

import (
	"crypto/rsa"
	"encoding/base64"

	"github.com/T1lman/ssh-sub001/lib/auth"
	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/metrics"
	"github.com/T1lman/ssh-sub001/lib/protoerr"
	"github.com/T1lman/ssh-sub001/lib/protocol"
)

// sessionSigningData is the exact byte string a client must RSA-sign to
// prove possession of a public-key credential: the Base64 text of the
// session ID's raw UTF-8 bytes.
func sessionSigningData(sessionID string) []byte {
	return []byte(base64.StdEncoding.EncodeToString([]byte(sessionID)))
}

// ServerAuthenticate runs the server side of the AUTH phase: read exactly
// one AUTH_REQUEST, check it against store, and reply
// with AUTH_SUCCESS or AUTH_FAILURE. On success it transitions to SERVICE;
// on failure the caller must close the session (AUTH_FAILURE is
// terminal).
func (s *Session) ServerAuthenticate(store auth.UserStore) error {
	msg, err := s.ReadSecure()
	if err != nil {
		return err
	}
	if msg.Type != protocol.AuthRequest {
		return protoerr.Protocol("expected AUTH_REQUEST, got %s", msg.Type)
	}

	req := auth.Request{
		Username:    msg.Username,
		AuthType:    msg.AuthType,
		Password:    msg.Password,
		PublicKey:   msg.PublicKey,
		Signature:   msg.Signature,
		SessionData: sessionSigningData(s.ID),
	}

	if authErr := auth.Authenticate(store, req); authErr != nil {
		metrics.FailedLogins.Inc()
		_ = s.WriteSecure(&protocol.Message{
			Type:    protocol.AuthFailure,
			Success: false,
			Message: authErr.Error(),
		})
		return authErr
	}

	if err := s.WriteSecure(&protocol.Message{
		Type:    protocol.AuthSuccess,
		Success: true,
		Message: "authenticated",
	}); err != nil {
		return err
	}
	s.EnterService(msg.Username)
	return nil
}

// ClientCredentials describes what a client presents in an AUTH_REQUEST.
type ClientCredentials struct {
	Username  string
	AuthType  protocol.AuthType
	Password  string
	SignKey   *rsa.PrivateKey // required for publickey/dual
	PublicKey *rsa.PublicKey  // required for publickey/dual
}

// ClientAuthenticate runs the client side of AUTH: build and send an
// AUTH_REQUEST from creds, signing the session data if a key is present,
// and wait for AUTH_SUCCESS/AUTH_FAILURE.
func (s *Session) ClientAuthenticate(creds ClientCredentials) error {
	req := &protocol.Message{
		Type:     protocol.AuthRequest,
		Username: creds.Username,
		AuthType: creds.AuthType,
		Password: creds.Password,
	}

	if creds.AuthType == protocol.AuthPublicKey || creds.AuthType == protocol.AuthDual {
		if creds.SignKey == nil || creds.PublicKey == nil {
			return protoerr.Auth("public-key credentials required for authType %s", creds.AuthType)
		}
		pubDER, err := rsaPublicKeyDER(creds.PublicKey)
		if err != nil {
			return err
		}
		sig, err := cryptosuite.Sign(creds.SignKey, sessionSigningData(s.ID))
		if err != nil {
			return protoerr.Crypto("sign session data: %v", err)
		}
		req.PublicKey = pubDER
		req.Signature = sig
	}

	if err := s.WriteSecure(req); err != nil {
		return err
	}

	reply, err := s.ReadSecure()
	if err != nil {
		return err
	}
	switch reply.Type {
	case protocol.AuthSuccess:
		s.EnterService(creds.Username)
		return nil
	case protocol.AuthFailure:
		return protoerr.Auth(reply.Message)
	default:
		return protoerr.Protocol("expected AUTH_SUCCESS/AUTH_FAILURE, got %s", reply.Type)
	}
}

func rsaPublicKeyDER(pub *rsa.PublicKey) ([]byte, error) {
	text, err := cryptosuite.EncodePublicKeyText(pub)
	if err != nil {
		return nil, protoerr.Crypto("%v", err)
	}
	return base64.StdEncoding.DecodeString(text)
}
