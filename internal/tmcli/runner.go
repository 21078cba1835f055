// Package tmcli runs the task-master command line tool.
package tmcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"
)

var (
	ErrNotInstalled = errors.New("task-master CLI not found")
	ErrTimeout      = errors.New("task-master CLI timed out")
)

// Result is the outcome of one CLI invocation. A non-zero exit is a Result
// with Success false, not an error.
type Result struct {
	Command    string `json:"command"`
	Dir        string `json:"dir,omitempty"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exitCode"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"durationMs"`
}

// Message returns the most useful single line of output for error reports.
func (r *Result) Message() string {
	for _, out := range []string{r.Stderr, r.Stdout} {
		lines := strings.Split(strings.TrimSpace(out), "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if l := strings.TrimSpace(lines[i]); l != "" {
				return l
			}
		}
	}
	return "exit code " + strconv.Itoa(r.ExitCode)
}

type Runner interface {
	Binary() string
	Run(ctx context.Context, dir string, args ...string) (*Result, error)
}

// ExecRunner runs the CLI as a subprocess with a per-call timeout.
type ExecRunner struct {
	binary  string
	timeout time.Duration
	env     []string
}

func NewExecRunner(binary string, timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		binary:  binary,
		timeout: timeout,
		env:     []string{"NO_COLOR=1", "FORCE_COLOR=0", "CI=true"},
	}
}

func (r *ExecRunner) Binary() string {
	return r.binary
}

func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) (*Result, error) {
	execCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, r.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := &Result{Command: CommandLine(r.binary, args...), Dir: dir}
	start := time.Now()
	err := cmd.Run()
	res.DurationMs = time.Since(start).Milliseconds()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Success = true
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.ExitCode = -1
		return res, fmt.Errorf("%w after %s: %s", ErrTimeout, r.timeout, res.Command)
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, ctx.Err()
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, r.binary)
	default:
		return nil, fmt.Errorf("failed to run %s: %w", res.Command, err)
	}

	slog.DebugContext(ctx, "task-master finished",
		"command", res.Command,
		"dir", dir,
		"exit_code", res.ExitCode,
		"duration_ms", res.DurationMs,
	)
	return res, nil
}

// CommandLine renders binary and args as a copy-pasteable shell command.
func CommandLine(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{binary}, args...) {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = strconv.Quote(a)
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}
