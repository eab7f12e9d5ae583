// Package shell defines the command-executor contract the core treats as
// an external collaborator: the core only ever calls Execute and never
// spawns processes itself. osexec.go supplies a default implementation
// backed by os/exec so the shipped server binary is runnable, but the
// service dispatch loop (lib/service) depends only on the Executor
// interface.
package shell

import "context"

// Result is what a SHELL_COMMAND dispatch turns into a SHELL_RESULT
// message: exit code, captured output, and the directory the command
// left the session in.
type Result struct {
	ExitCode         int
	Stdout           string
	Stderr           string
	WorkingDirectory string
}

// Executor runs one shell command and reports its result. Implementations
// are stateful: the WorkingDirectory of each Result reflects the effect of
// prior `cd`-style commands within the same session.
type Executor interface {
	// Execute runs command, first changing to dir if dir is non-empty,
	// and returns the result including the resulting working directory.
	Execute(ctx context.Context, command, dir string) (Result, error)
}
