// Package auth implements the authentication subprotocol: password,
// public-key, and dual verification against a pluggable UserStore, plus
// the ServerIdentity/ClientIdentity contracts external credential
// providers must satisfy. The interface-first design keeps the core
// dependent only on narrow interfaces and never on a concrete storage
// format.
package auth

import (
	"crypto/rsa"
)

// UserStore is the narrow interface the core consumes to answer
// authentication questions. Concrete on-disk formats (lib/store in this
// module) live behind it.
type UserStore interface {
	// Exists reports whether username is a known user.
	Exists(username string) bool
	// VerifyPassword reports whether password matches the user's stored
	// hash.
	VerifyPassword(username, password string) bool
	// AuthorizedKeys returns the set of public keys authorized for
	// username to use for public-key authentication.
	AuthorizedKeys(username string) ([]*rsa.PublicKey, error)
	// AddUser creates or overwrites a user record.
	AddUser(username, password string) error
	// RemoveUser deletes a user record.
	RemoveUser(username string) error
	// Reload re-reads the on-disk source backing the store, triggered by
	// a RELOAD_USERS message.
	Reload() error
}

// ServerIdentity supplies a server's long-term RSA keypair, persistent
// across restarts.
type ServerIdentity interface {
	ServerKeyPair() (*rsa.PrivateKey, *rsa.PublicKey, error)
}

// ClientIdentity supplies a client's long-term RSA keypair for public-key
// authentication.
type ClientIdentity interface {
	ClientKeyPair() (*rsa.PrivateKey, *rsa.PublicKey, error)
}
