// Package client implements the client side of a session: dialing a
// server, running the HANDSHAKE/AUTH steps with trust-on-first-use server
// key pinning, and exposing shell and port-forward convenience methods
// over the resulting SERVICE-phase session; file transfer has no
// convenience method and goes through Session() directly. TOFU
// pinning decides whether a client should trust a server's identity key,
// a known_hosts-style approach used instead of a full PKI.
package client

import (
	"context"
	"crypto/rsa"
	"net"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/T1lman/ssh-sub001/lib/protocol"
	"github.com/T1lman/ssh-sub001/lib/session"
)

// Config holds what a Client needs to dial and authenticate against a
// server.
type Config struct {
	ClientID    string
	Credentials session.ClientCredentials
	KnownHosts  *KnownHosts
	Log         *logrus.Entry
	Clock       clockwork.Clock
}

// Client drives one session from the client's side of the wire.
type Client struct {
	cfg  Config
	sess *session.Session
}

// Dial connects to addr, runs the HANDSHAKE and AUTH phases, and returns a
// Client ready to issue SERVICE-phase requests.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	sess := session.New(conn, session.RoleClient, cfg.Log, cfg.Clock)

	verify := func(serverID string, pub *rsa.PublicKey) error {
		if cfg.KnownHosts == nil {
			return nil
		}
		return cfg.KnownHosts.Verify(addr, pub)
	}

	if err := sess.ClientHandshake(cfg.ClientID, verify); err != nil {
		_ = sess.Close()
		return nil, err
	}
	if err := sess.ClientAuthenticate(cfg.Credentials); err != nil {
		_ = sess.Close()
		return nil, err
	}

	go sess.RunSender()
	return &Client{cfg: cfg, sess: sess}, nil
}

// Close tears down the underlying session.
func (c *Client) Close() error { return c.sess.Close() }

// Session exposes the underlying session for lower-level access that the
// convenience methods do not cover.
func (c *Client) Session() *session.Session { return c.sess }

// RunCommand sends a SHELL_COMMAND and waits for the matching
// SHELL_RESULT.
func (c *Client) RunCommand(command, workingDirectory string) (*protocol.Message, error) {
	if err := c.sess.Enqueue(&protocol.Message{
		Type:             protocol.ShellCommand,
		Command:          command,
		WorkingDirectory: workingDirectory,
	}); err != nil {
		return nil, err
	}
	return c.sess.ReadSecure()
}

// RequestForward sends a PORT_FORWARD_REQUEST and waits for its
// PORT_FORWARD_ACCEPT.
func (c *Client) RequestForward(msg *protocol.Message) (*protocol.Message, error) {
	msg.Type = protocol.PortForwardRequest
	if err := c.sess.Enqueue(msg); err != nil {
		return nil, err
	}
	return c.sess.ReadSecure()
}

// Disconnect sends a DISCONNECT message before closing the session.
func (c *Client) Disconnect() error {
	_ = c.sess.Enqueue(&protocol.Message{Type: protocol.Disconnect})
	return c.sess.Close()
}
