// Package github drives the GitHub CLI (gh) to recreate an export on GitHub.
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs one gh invocation and returns its standard output.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// CommandError is a gh invocation that exited unsuccessfully.
type CommandError struct {
	Args   []string
	Code   int
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("Return Code: %d %s", e.Code, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

type CLI struct {
	binary string
}

func NewCLI(binary string) *CLI {
	if binary == "" {
		binary = "gh"
	}
	return &CLI{binary: binary}
}

func (c *CLI) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return stdout.String(), &CommandError{Args: args, Code: code, Stderr: msg, Err: err}
	}
	return stdout.String(), nil
}
