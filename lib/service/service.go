// Package service implements the SERVICE-phase dispatch table: once a
// session has authenticated it accepts SHELL_COMMAND,
// FILE_UPLOAD_REQUEST/FILE_DOWNLOAD_REQUEST, PORT_FORWARD_*, RELOAD_USERS,
// and DISCONNECT, and routes each to the shell/transfer/forward
// collaborator that owns it, switching on a request's type and calling
// out to a narrow per-concern handler rather than inlining every behavior
// into the read loop itself.
package service

import (
	"context"

	"github.com/T1lman/ssh-sub001/lib/auth"
	"github.com/T1lman/ssh-sub001/lib/forward"
	"github.com/T1lman/ssh-sub001/lib/protoerr"
	"github.com/T1lman/ssh-sub001/lib/protocol"
	"github.com/T1lman/ssh-sub001/lib/session"
	"github.com/T1lman/ssh-sub001/lib/shell"
	"github.com/T1lman/ssh-sub001/lib/transfer"
)

// Dispatcher owns the collaborators a SERVICE-phase session needs and
// drives its receive loop until DISCONNECT or a fatal transport error.
type Dispatcher struct {
	sess     *session.Session
	store    auth.UserStore
	executor shell.Executor
	transfer *transfer.Manager
	forward  *forward.Manager

	pendingDownloadAck chan *protocol.Message
}

// New builds a Dispatcher for an authenticated session.
func New(sess *session.Session, store auth.UserStore, executor shell.Executor, xfer *transfer.Manager, fwd *forward.Manager) *Dispatcher {
	return &Dispatcher{
		sess:               sess,
		store:              store,
		executor:           executor,
		transfer:           xfer,
		forward:            fwd,
		pendingDownloadAck: make(chan *protocol.Message, 1),
	}
}

// Run reads and dispatches SERVICE-phase messages until the peer sends
// DISCONNECT, the session closes, or ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.sess.Done():
			return nil
		default:
		}

		var msg *protocol.Message
		err := d.sess.WithDeadline(ctx, func() error {
			var readErr error
			msg, readErr = d.sess.ReadSecure()
			return readErr
		})
		if err != nil {
			if pe, ok := protoerr.As(err); ok && !pe.Kind.Fatal() {
				d.sess.Log().WithError(err).Warn("service: recoverable read error, continuing")
				continue
			}
			return err
		}

		if protocol.ReservedShellData(msg.Type) {
			d.emitError("PROTOCOL_ERROR", "reserved message type received")
			continue
		}

		switch msg.Type {
		case protocol.ServiceRequest:
			d.handleServiceRequest(msg)
		case protocol.ShellCommand:
			d.handleShellCommand(ctx, msg)
		case protocol.FileUploadRequest:
			d.handleUploadRequest(msg)
		case protocol.FileData:
			d.handleFileData(msg)
		case protocol.FileDownloadReq:
			d.handleDownloadRequest(msg)
		case protocol.FileAck:
			d.handleFileAck(msg)
		case protocol.PortForwardRequest:
			d.handleForwardRequest(ctx, msg)
		case protocol.PortForwardData:
			d.forward.HandleData(msg)
		case protocol.PortForwardClose:
			d.forward.HandleClose(msg.ConnectionID)
		case protocol.ReloadUsers:
			d.handleReloadUsers()
		case protocol.ErrorMessage:
			d.sess.Log().WithField("errorCode", msg.ErrorCode).Warn("service: peer reported error")
		case protocol.Disconnect:
			return nil
		default:
			d.emitError("UNEXPECTED_MESSAGE", "unexpected message type "+msg.Type.String())
		}
	}
}

func (d *Dispatcher) emitError(code, message string) {
	_ = d.sess.Enqueue(&protocol.Message{
		Type:         protocol.ErrorMessage,
		ErrorCode:    code,
		ErrorMessage: message,
	})
}

// handleServiceRequest echoes a SERVICE_REQUEST back as SERVICE_ACCEPT for
// the same named service, acknowledging that the SERVICE phase is ready
// to dispatch that kind of work.
func (d *Dispatcher) handleServiceRequest(msg *protocol.Message) {
	_ = d.sess.Enqueue(&protocol.Message{
		Type:    protocol.ServiceAccept,
		Service: msg.Service,
		Success: true,
	})
}

func (d *Dispatcher) handleShellCommand(ctx context.Context, msg *protocol.Message) {
	result, err := d.executor.Execute(ctx, msg.Command, msg.WorkingDirectory)
	if err != nil {
		d.emitError("EXECUTOR_ERROR", err.Error())
		return
	}
	_ = d.sess.Enqueue(&protocol.Message{
		Type:             protocol.ShellResult,
		ExitCode:         result.ExitCode,
		Stdout:           result.Stdout,
		Stderr:           result.Stderr,
		WorkingDirectory: result.WorkingDirectory,
	})
}

func (d *Dispatcher) handleUploadRequest(msg *protocol.Message) {
	if err := d.transfer.HandleUploadRequest(msg); err != nil {
		d.sess.Log().WithError(err).Warn("upload request failed")
	}
}

func (d *Dispatcher) handleFileData(msg *protocol.Message) {
	if err := d.transfer.HandleUploadData(msg); err != nil {
		d.sess.Log().WithError(err).Warn("upload data failed")
	}
}

// handleDownloadRequest streams the file and then waits, off the receive
// goroutine that is about to keep reading, for the single FILE_ACK the
// peer sends once it has received every chunk. The
// wait happens in a separate goroutine so the main receive loop can keep
// servicing the session; handleFileAck feeds the ack back in through
// pendingDownloadAck.
func (d *Dispatcher) handleDownloadRequest(msg *protocol.Message) {
	go func() {
		if err := d.transfer.HandleDownloadRequest(msg); err != nil {
			d.sess.Log().WithError(err).Warn("download request failed")
			return
		}
		select {
		case ack := <-d.pendingDownloadAck:
			d.sess.Log().WithField("status", ack.Status).Debug("download acknowledged")
		case <-d.sess.Done():
		}
	}()
}

func (d *Dispatcher) handleFileAck(msg *protocol.Message) {
	select {
	case d.pendingDownloadAck <- msg:
	default:
	}
}

func (d *Dispatcher) handleForwardRequest(ctx context.Context, msg *protocol.Message) {
	if err := d.forward.HandleRequest(ctx, msg); err != nil {
		d.sess.Log().WithError(err).Warn("port-forward request failed")
	}
}

func (d *Dispatcher) handleReloadUsers() {
	if err := d.store.Reload(); err != nil {
		d.emitError("RELOAD_FAILED", err.Error())
		return
	}
	_ = d.sess.Enqueue(&protocol.Message{
		Type:    protocol.ServiceAccept,
		Service: "reload_users",
		Success: true,
	})
}
