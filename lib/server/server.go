// Package server implements the session supervisor: a TCP accept loop
// that hands each connection off to the HANDSHAKE/AUTH/SERVICE pipeline,
// bounded to a configurable maximum number of concurrent sessions. The
// accept loop gates work through a semaphore-backed errgroup rather than
// spawning an unbounded goroutine per connection.
package server

import (
	"context"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/T1lman/ssh-sub001/lib/auth"
	"github.com/T1lman/ssh-sub001/lib/defaults"
	"github.com/T1lman/ssh-sub001/lib/forward"
	"github.com/T1lman/ssh-sub001/lib/protoerr"
	"github.com/T1lman/ssh-sub001/lib/service"
	"github.com/T1lman/ssh-sub001/lib/session"
	"github.com/T1lman/ssh-sub001/lib/shell"
	"github.com/T1lman/ssh-sub001/lib/transfer"
)

// Config holds everything a Server needs to accept and service
// connections.
type Config struct {
	ListenAddr     string
	Identity       auth.ServerIdentity
	Store          auth.UserStore
	FilesRoot      string
	MaxConnections int
	Log            *logrus.Entry
	Clock          clockwork.Clock

	// Timeout bounds both the HANDSHAKE and AUTH phases. Zero means use
	// defaults.HandshakeTimeout/defaults.AuthTimeout.
	Timeout time.Duration
}

// BindError wraps the error returned when the listening socket itself
// could not be opened, so callers can distinguish "failed to bind" from
// every other Serve failure.
type BindError struct {
	Err error
}

func (e *BindError) Error() string { return e.Err.Error() }
func (e *BindError) Unwrap() error { return e.Err }

// Server accepts connections and runs each through the full session
// lifecycle, bounded by a worker-pool semaphore.
type Server struct {
	cfg Config
	sem chan struct{}
}

// New returns a Server ready to Serve, applying defaults for any zero
// Config fields that have one.
func New(cfg Config) *Server {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaults.MaxConnections
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Server{cfg: cfg, sem: make(chan struct{}, cfg.MaxConnections)}
}

// Serve listens on cfg.ListenAddr and services connections until ctx is
// canceled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return &BindError{Err: err}
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	group, ctx := errgroup.WithContext(ctx)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return group.Wait()
			default:
				s.cfg.Log.WithError(err).Warn("accept failed")
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
			group.Go(func() error {
				defer func() { <-s.sem }()
				s.handleConnection(ctx, conn)
				return nil
			})
		default:
			// At --max-connections capacity: drop the connection without
			// writing or reading a single byte rather than queuing it
			// behind a free slot.
			s.cfg.Log.WithError(protoerr.ResourceExhausted("max connections reached")).
				Warn("rejecting connection")
			_ = conn.Close()
		}

		select {
		case <-ctx.Done():
			return group.Wait()
		default:
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	log := s.cfg.Log.WithField("remote", conn.RemoteAddr().String())
	sess := session.New(conn, session.RoleServer, log, s.cfg.Clock)
	defer sess.Close()

	handshakeTimeout, authTimeout := defaults.HandshakeTimeout, defaults.AuthTimeout
	if s.cfg.Timeout > 0 {
		handshakeTimeout, authTimeout = s.cfg.Timeout, s.cfg.Timeout
	}

	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if err := sess.WithDeadline(hsCtx, func() error {
		return sess.ServerHandshake(s.cfg.Identity)
	}); err != nil {
		log.WithError(err).Warn("handshake failed")
		return
	}

	authCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	if err := sess.WithDeadline(authCtx, func() error {
		return sess.ServerAuthenticate(s.cfg.Store)
	}); err != nil {
		log.WithError(err).Warn("authentication failed")
		return
	}

	go sess.RunSender()

	executor, err := shell.NewOSExecutor("")
	if err != nil {
		log.WithError(err).Error("failed to start shell executor")
		return
	}
	xfer, err := transfer.NewManager(s.cfg.FilesRoot, sess.Username, sess, log)
	if err != nil {
		log.WithError(err).Error("failed to start transfer manager")
		return
	}
	fwd := forward.NewManager(sess, log)
	defer fwd.Close()

	dispatcher := service.New(sess, s.cfg.Store, executor, xfer, fwd)
	if err := dispatcher.Run(ctx); err != nil {
		log.WithError(err).Info("session ended")
	}
}
