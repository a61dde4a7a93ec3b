package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultGracePeriod is how long a cancelled command gets between SIGINT and
// SIGKILL. Terraform releases its state lock on SIGINT.
const DefaultGracePeriod = 30 * time.Second

// Command describes one external process invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Env   []string // appended to the current environment
	Stdin io.Reader

	// Subsystem labels streamed output lines in the log. Empty disables
	// streaming.
	Subsystem string
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError is returned when a command exits non-zero or cannot start.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("'%s' failed", e.Command)
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s with exit code %d", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if tail := lastLines(e.Stderr, 5); tail != "" {
		msg = fmt.Sprintf("%s. Stderr: %s", msg, tail)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner runs external commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec. Cancelling ctx sends SIGINT and, if
// the process is still alive after GracePeriod, kills it.
type ExecRunner struct {
	GracePeriod time.Duration
}

// NewExecRunner returns an ExecRunner with the default grace period.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{GracePeriod: DefaultGracePeriod}
}

// Run executes cmd and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.GracePeriod

	var stdoutBuf, stderrBuf bytes.Buffer
	if c.Subsystem != "" {
		cmd.Stdout = io.MultiWriter(&stdoutBuf, NewLogWriter(c.Subsystem, false))
		cmd.Stderr = io.MultiWriter(&stderrBuf, NewLogWriter(c.Subsystem, true))
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	runErr := cmd.Run()
	res := Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	if runErr == nil {
		return res, nil
	}

	cerr := &CommandError{Command: c.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	if ctxErr := ctx.Err(); ctxErr != nil {
		cerr.Err = ctxErr
		return res, cerr
	}
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		cerr.Err = runErr
	}
	return res, cerr
}

// LookPath resolves a binary on PATH. Swappable for tests.
var LookPath = exec.LookPath

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
