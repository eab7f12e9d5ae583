// Package transfer implements the bidirectional file transfer handlers:
// uploads and downloads are chunked over FILE_DATA messages, confined to
// a per-user root directory, and acknowledged with FILE_ACK. Relative
// paths are resolved against a user's own subtree and any resolution
// that escapes it is rejected before a single byte is written or read.
package transfer

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/T1lman/ssh-sub001/lib/defaults"
	"github.com/T1lman/ssh-sub001/lib/protoerr"
	"github.com/T1lman/ssh-sub001/lib/protocol"
)

// Sender is the narrow interface Manager needs to emit messages through a
// session's single-writer outgoing queue.
type Sender interface {
	Enqueue(msg *protocol.Message) error
}

// Manager handles FILE_UPLOAD_REQUEST/FILE_DOWNLOAD_REQUEST/FILE_DATA for
// one session, rooted at <root>/<username>.
type Manager struct {
	root     string
	username string
	sender   Sender
	log      *logrus.Entry

	mu      sync.Mutex
	uploads map[string]*uploadState // targetPath -> in-progress upload
}

type uploadState struct {
	file *os.File
	next uint32
}

// NewManager returns a Manager confined to root/username, creating that
// directory if it does not already exist.
func NewManager(root, username string, sender Sender, log *logrus.Entry) (*Manager, error) {
	userRoot := filepath.Join(root, username)
	if err := os.MkdirAll(userRoot, 0o700); err != nil {
		return nil, protoerr.Executor(err)
	}
	return &Manager{
		root:     userRoot,
		username: username,
		sender:   sender,
		log:      log,
		uploads:  make(map[string]*uploadState),
	}, nil
}

// resolve joins target against the user's root and rejects any result
// that escapes it.
func (m *Manager) resolve(target string) (string, error) {
	full := filepath.Join(m.root, target)
	rel, err := filepath.Rel(m.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", protoerr.Permission("path %q escapes user root", target)
	}
	return full, nil
}

// HandleUploadRequest begins an upload: resolves and validates the target
// path, rejects a second concurrent upload to the same path, and replies
// with a "ready" FILE_ACK.
func (m *Manager) HandleUploadRequest(msg *protocol.Message) error {
	full, err := m.resolve(msg.TargetPath)
	if err != nil {
		return m.ackError(msg.TargetPath, err)
	}

	m.mu.Lock()
	if _, busy := m.uploads[full]; busy {
		m.mu.Unlock()
		return m.ackError(msg.TargetPath, protoerr.Permission("upload already in progress for %q", msg.TargetPath))
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		m.mu.Unlock()
		return m.ackError(msg.TargetPath, protoerr.Executor(err))
	}
	f, err := os.Create(full)
	if err != nil {
		m.mu.Unlock()
		return m.ackError(msg.TargetPath, protoerr.Executor(err))
	}
	m.uploads[full] = &uploadState{file: f}
	m.mu.Unlock()

	return m.sender.Enqueue(&protocol.Message{
		Type:       protocol.FileAck,
		TargetPath: msg.TargetPath,
		Status:     "ready",
	})
}

// HandleUploadData writes one FILE_DATA chunk belonging to an in-progress
// upload. On isLast it closes the file and sends the final FILE_ACK.
func (m *Manager) HandleUploadData(msg *protocol.Message) error {
	full, err := m.resolve(msg.TargetPath)
	if err != nil {
		return m.ackError(msg.TargetPath, err)
	}

	m.mu.Lock()
	st, ok := m.uploads[full]
	m.mu.Unlock()
	if !ok {
		return m.ackError(msg.TargetPath, protoerr.NotFound("no upload in progress for %q", msg.TargetPath))
	}

	if _, err := st.file.Write(msg.Data); err != nil {
		m.finishUpload(full, st)
		return m.ackError(msg.TargetPath, protoerr.Executor(err))
	}
	st.next++

	if !msg.IsLast {
		return nil
	}

	m.finishUpload(full, st)
	return m.sender.Enqueue(&protocol.Message{
		Type:       protocol.FileAck,
		TargetPath: msg.TargetPath,
		Status:     "completed",
	})
}

func (m *Manager) finishUpload(full string, st *uploadState) {
	_ = st.file.Close()
	m.mu.Lock()
	delete(m.uploads, full)
	m.mu.Unlock()
}

func (m *Manager) ackError(targetPath string, err error) error {
	m.log.WithError(err).Warn("file transfer error")
	return m.sender.Enqueue(&protocol.Message{
		Type:       protocol.FileAck,
		TargetPath: targetPath,
		Status:     "error",
		Message:    err.Error(),
	})
}

// HandleDownloadRequest streams the requested file as a sequence of
// FILE_DATA chunks: the first chunk carries filename and fileSize, the
// last carries isLast=true. It returns once every chunk has been enqueued;
// it does not wait for the peer's FILE_ACK, which the caller must collect
// from the session's receive loop.
func (m *Manager) HandleDownloadRequest(msg *protocol.Message) error {
	full, err := m.resolve(msg.TargetPath)
	if err != nil {
		return m.ackError(msg.TargetPath, err)
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return m.ackError(msg.TargetPath, protoerr.NotFound("%q not found", msg.TargetPath))
		}
		return m.ackError(msg.TargetPath, protoerr.Executor(err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return m.ackError(msg.TargetPath, protoerr.Executor(err))
	}

	buf := make([]byte, defaults.FileChunkSize)
	var seq uint32
	first := true
	for {
		n, readErr := f.Read(buf)
		isLast := readErr == io.EOF
		if n > 0 || isLast {
			chunk := &protocol.Message{
				Type:           protocol.FileData,
				TargetPath:     msg.TargetPath,
				SequenceNumber: seq,
				Data:           append([]byte(nil), buf[:n]...),
				IsLast:         isLast,
			}
			if first {
				chunk.Filename = filepath.Base(full)
				chunk.FileSize = info.Size()
				first = false
			}
			if err := m.sender.Enqueue(chunk); err != nil {
				return err
			}
			seq++
		}
		if readErr != nil {
			if readErr != io.EOF {
				return m.ackError(msg.TargetPath, protoerr.Executor(readErr))
			}
			break
		}
	}
	return nil
}
