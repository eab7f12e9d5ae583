package shell

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// OSExecutor runs commands with os/exec, tracking a working directory that
// persists across calls the way an interactive shell's cwd would.
type OSExecutor struct {
	mu  sync.Mutex
	cwd string
}

// NewOSExecutor returns an Executor rooted at startDir, defaulting to the
// process's own working directory when startDir is empty.
func NewOSExecutor(startDir string) (*OSExecutor, error) {
	if startDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		startDir = wd
	}
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	return &OSExecutor{cwd: abs}, nil
}

// Execute runs command through "sh -c" in the executor's current working
// directory, applying a cd first if dir is non-empty. A bare "cd <path>"
// command updates the stored working directory instead of spawning a
// process, since cd has no effect on the parent process when run as a
// child.
func (e *OSExecutor) Execute(ctx context.Context, command, dir string) (Result, error) {
	e.mu.Lock()
	cwd := e.cwd
	e.mu.Unlock()

	if dir != "" {
		resolved, err := resolveDir(cwd, dir)
		if err != nil {
			return Result{WorkingDirectory: cwd, ExitCode: 1, Stderr: err.Error()}, nil
		}
		cwd = resolved
	}

	if target, ok := parseCD(command); ok {
		resolved, err := resolveDir(cwd, target)
		if err != nil {
			return Result{WorkingDirectory: cwd, ExitCode: 1, Stderr: err.Error()}, nil
		}
		e.mu.Lock()
		e.cwd = resolved
		e.mu.Unlock()
		return Result{WorkingDirectory: resolved, ExitCode: 0}, nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, err
		}
	}

	e.mu.Lock()
	e.cwd = cwd
	e.mu.Unlock()

	return Result{
		ExitCode:         exitCode,
		Stdout:           stdout.String(),
		Stderr:           stderr.String(),
		WorkingDirectory: cwd,
	}, nil
}

func parseCD(command string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) == 0 || fields[0] != "cd" {
		return "", false
	}
	if len(fields) == 1 {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		return home, true
	}
	return fields[1], true
}

func resolveDir(cwd, dir string) (string, error) {
	var target string
	if filepath.IsAbs(dir) {
		target = filepath.Clean(dir)
	} else {
		target = filepath.Clean(filepath.Join(cwd, dir))
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", os.ErrInvalid
	}
	return target, nil
}
