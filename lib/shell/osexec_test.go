package shell

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecuteCapturesOutputAndExitCode(t *testing.T) {
	ex, err := NewOSExecutor(t.TempDir())
	require.NoError(t, err)

	result, err := ex.Execute(context.Background(), "echo hello", "")
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, "hello\n", result.Stdout)
}

func TestExecuteReportsNonZeroExit(t *testing.T) {
	ex, err := NewOSExecutor(t.TempDir())
	require.NoError(t, err)

	result, err := ex.Execute(context.Background(), "exit 3", "")
	require.NoError(t, err)
	require.Equal(t, 3, result.ExitCode)
}

func TestCdPersistsAcrossCommands(t *testing.T) {
	root := t.TempDir()
	ex, err := NewOSExecutor(root)
	require.NoError(t, err)

	sub := root + "/subdir"
	require.NoError(t, os.MkdirAll(sub, 0o755))

	result, err := ex.Execute(context.Background(), "cd subdir", "")
	require.NoError(t, err)
	require.Equal(t, sub, result.WorkingDirectory)

	result, err = ex.Execute(context.Background(), "pwd", "")
	require.NoError(t, err)
	require.Contains(t, result.Stdout, "subdir")
}
