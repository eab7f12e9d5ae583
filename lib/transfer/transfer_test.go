package transfer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/T1lman/ssh-sub001/lib/protocol"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []*protocol.Message
}

func (f *fakeSender) Enqueue(msg *protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSender) last() *protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}

func newTestManager(t *testing.T) (*Manager, *fakeSender) {
	t.Helper()
	root := t.TempDir()
	sender := &fakeSender{}
	mgr, err := NewManager(root, "alice", sender, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	return mgr, sender
}

func TestUploadLifecycle(t *testing.T) {
	mgr, sender := newTestManager(t)

	require.NoError(t, mgr.HandleUploadRequest(&protocol.Message{TargetPath: "notes.txt"}))
	require.Equal(t, "ready", sender.last().Status)

	require.NoError(t, mgr.HandleUploadData(&protocol.Message{TargetPath: "notes.txt", Data: []byte("hello ")}))
	require.NoError(t, mgr.HandleUploadData(&protocol.Message{TargetPath: "notes.txt", Data: []byte("world"), IsLast: true}))
	require.Equal(t, "completed", sender.last().Status)

	content, err := os.ReadFile(filepath.Join(mgr.root, "notes.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(content))
}

func TestUploadRejectsConcurrentSameTarget(t *testing.T) {
	mgr, sender := newTestManager(t)

	require.NoError(t, mgr.HandleUploadRequest(&protocol.Message{TargetPath: "dup.txt"}))
	require.Equal(t, "ready", sender.last().Status)

	require.NoError(t, mgr.HandleUploadRequest(&protocol.Message{TargetPath: "dup.txt"}))
	require.Equal(t, "error", sender.last().Status)
}

func TestUploadRejectsPathTraversal(t *testing.T) {
	mgr, sender := newTestManager(t)

	require.NoError(t, mgr.HandleUploadRequest(&protocol.Message{TargetPath: "../../etc/passwd"}))
	require.Equal(t, "error", sender.last().Status)
}

func TestDownloadStreamsChunksWithFirstAndLastMarkers(t *testing.T) {
	mgr, sender := newTestManager(t)

	data := []byte("file contents for download test")
	require.NoError(t, os.WriteFile(filepath.Join(mgr.root, "download.txt"), data, 0600))

	require.NoError(t, mgr.HandleDownloadRequest(&protocol.Message{TargetPath: "download.txt"}))

	require.NotEmpty(t, sender.messages)
	first := sender.messages[0]
	require.Equal(t, protocol.FileData, first.Type)
	require.Equal(t, "download.txt", first.Filename)
	require.Equal(t, int64(len(data)), first.FileSize)

	last := sender.messages[len(sender.messages)-1]
	require.True(t, last.IsLast)

	var reassembled []byte
	for _, msg := range sender.messages {
		reassembled = append(reassembled, msg.Data...)
	}
	require.Equal(t, data, reassembled)
}

func TestDownloadMissingFileSendsError(t *testing.T) {
	mgr, sender := newTestManager(t)

	require.NoError(t, mgr.HandleDownloadRequest(&protocol.Message{TargetPath: "missing.txt"}))
	require.Equal(t, "error", sender.last().Status)
}
