package session

import (
	"crypto/rsa"

	"github.com/T1lman/ssh-sub001/lib/auth"
	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/protoerr"
	"github.com/T1lman/ssh-sub001/lib/protocol"
)

// ServerHandshake runs the server side of the HANDSHAKE phase: read
// KEY_EXCHANGE_INIT, reply with a signed KEY_EXCHANGE_REPLY, derive and
// install the session keys, and transition to AUTH.
func (s *Session) ServerHandshake(identity auth.ServerIdentity) error {
	msg, err := s.ReadHandshake()
	if err != nil {
		return err
	}
	if msg.Type != protocol.KeyExchangeInit {
		return protoerr.Protocol("expected KEY_EXCHANGE_INIT, got %s", msg.Type)
	}

	clientPub, err := cryptosuite.P2048.DecodePublicValue(msg.DHPublicKey)
	if err != nil {
		return protoerr.Crypto("%v", err)
	}

	serverPriv, serverPub, err := identity.ServerKeyPair()
	if err != nil {
		return protoerr.Crypto("load server identity: %v", err)
	}

	dhPriv, err := cryptosuite.P2048.GeneratePrivate()
	if err != nil {
		return protoerr.Crypto("%v", err)
	}
	dhPub := cryptosuite.P2048.PublicValue(dhPriv)
	dhPubDER, err := cryptosuite.P2048.EncodePublicValue(dhPub)
	if err != nil {
		return protoerr.Crypto("%v", err)
	}

	sig, err := cryptosuite.Sign(serverPriv, dhPubDER)
	if err != nil {
		return protoerr.Crypto("sign dh public value: %v", err)
	}

	serverPubText, err := cryptosuite.EncodePublicKeyText(serverPub)
	if err != nil {
		return protoerr.Crypto("%v", err)
	}

	reply := &protocol.Message{
		Type:            protocol.KeyExchangeReply,
		DHPublicKey:     dhPubDER,
		ServerID:        s.ID,
		ServerPublicKey: []byte(serverPubText),
		Signature:       sig,
		SessionID:       s.ID,
	}
	if err := s.WriteHandshake(reply); err != nil {
		return err
	}

	shared, err := cryptosuite.P2048.SharedSecret(dhPriv, clientPub)
	if err != nil {
		return protoerr.Crypto("%v", err)
	}
	aesKey, hmacKey := cryptosuite.DeriveKeys(shared.Bytes())
	s.EnableCrypto(aesKey, hmacKey)
	s.EnterAuth()
	return nil
}

// ServerVerifier is supplied by a client to decide whether to trust the
// server's presented identity key for a given host (trust-on-first-use
// pinning; see DESIGN.md for the reasoning behind this policy).
type ServerVerifier func(serverID string, pub *rsa.PublicKey) error

// ClientHandshake runs the client side of HANDSHAKE: send
// KEY_EXCHANGE_INIT, verify the server's signature over its DH public
// value with the presented server key (subject to verify's pinning
// policy), derive and install session keys, and transition to AUTH.
//
// The client's own DH public value in KEY_EXCHANGE_INIT is not signed;
// client identity is proven later, during AUTH, via the signature over
// the session ID. An active attacker on the first flight can therefore
// tamper with KEY_EXCHANGE_INIT undetected at this layer.
func (s *Session) ClientHandshake(clientID string, verify ServerVerifier) error {
	dhPriv, err := cryptosuite.P2048.GeneratePrivate()
	if err != nil {
		return protoerr.Crypto("%v", err)
	}
	dhPub := cryptosuite.P2048.PublicValue(dhPriv)
	dhPubDER, err := cryptosuite.P2048.EncodePublicValue(dhPub)
	if err != nil {
		return protoerr.Crypto("%v", err)
	}

	init := &protocol.Message{
		Type:        protocol.KeyExchangeInit,
		DHPublicKey: dhPubDER,
		ClientID:    clientID,
	}
	if err := s.WriteHandshake(init); err != nil {
		return err
	}

	reply, err := s.ReadHandshake()
	if err != nil {
		return err
	}
	if reply.Type != protocol.KeyExchangeReply {
		return protoerr.Protocol("expected KEY_EXCHANGE_REPLY, got %s", reply.Type)
	}

	serverPub, err := cryptosuite.DecodePublicKeyText(string(reply.ServerPublicKey))
	if err != nil {
		return protoerr.Crypto("invalid server public key: %v", err)
	}
	if verify != nil {
		if err := verify(reply.ServerID, serverPub); err != nil {
			return protoerr.Crypto("server identity rejected: %v", err)
		}
	}
	if err := cryptosuite.Verify(serverPub, reply.DHPublicKey, reply.Signature); err != nil {
		return protoerr.Crypto("server signature invalid: %v", err)
	}

	serverDHPub, err := cryptosuite.P2048.DecodePublicValue(reply.DHPublicKey)
	if err != nil {
		return protoerr.Crypto("%v", err)
	}
	shared, err := cryptosuite.P2048.SharedSecret(dhPriv, serverDHPub)
	if err != nil {
		return protoerr.Crypto("%v", err)
	}
	aesKey, hmacKey := cryptosuite.DeriveKeys(shared.Bytes())

	s.ID = reply.SessionID
	s.EnableCrypto(aesKey, hmacKey)
	s.EnterAuth()
	return nil
}
