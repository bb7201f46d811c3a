package dump

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Command is one external dump invocation
type Command struct {
	Name   string
	Args   []string
	Env    []string // appended to the process environment
	Stdout io.Writer
	Stderr io.Writer
}

// CommandRunner executes a Command to completion
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec. Cancelling ctx kills the process.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return cmd.Run()
}

// exitStatus is implemented by *exec.ExitError
type exitStatus interface {
	ExitCode() int
}

// didNotRun reports whether err means the process could not be started or
// its output could not be delivered. A non-zero exit status does not count.
func didNotRun(err error) bool {
	if err == nil {
		return false
	}
	var status exitStatus
	return !errors.As(err, &status)
}
