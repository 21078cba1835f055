package tmcli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kazz187/tmdash/pkg/cerr"
)

// Client exposes the task-master subcommands the dashboard drives.
type Client struct {
	runner   Runner
	lookPath func(string) (string, error)
}

func New(runner Runner) *Client {
	return &Client{runner: runner, lookPath: exec.LookPath}
}

type AddTaskOptions struct {
	Prompt       string   `json:"prompt"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Details      string   `json:"details"`
	Priority     string   `json:"priority"`
	Dependencies []string `json:"dependencies"`
	Research     bool     `json:"research"`
}

type ParsePRDOptions struct {
	File     string `json:"fileName"`
	NumTasks int    `json:"numTasks"`
	Append   bool   `json:"append"`
	Research bool   `json:"research"`
}

// InstallationStatus reports whether the CLI can be run on this host.
type InstallationStatus struct {
	Installed bool   `json:"isInstalled"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (c *Client) Init(ctx context.Context, dir string) (*Result, error) {
	return c.run(ctx, dir, "init", "--yes")
}

func (c *Client) AddTask(ctx context.Context, dir string, opts AddTaskOptions) (*Result, error) {
	args := []string{"add-task"}
	switch {
	case opts.Prompt != "":
		args = append(args, "--prompt="+opts.Prompt)
	case opts.Title != "" && opts.Description != "":
		args = append(args, "--title="+opts.Title, "--description="+opts.Description)
		if opts.Details != "" {
			args = append(args, "--details="+opts.Details)
		}
	default:
		return nil, cerr.NewError(cerr.InvalidArgument, "either prompt or title and description are required", nil)
	}
	if opts.Priority != "" {
		args = append(args, "--priority="+opts.Priority)
	}
	if len(opts.Dependencies) > 0 {
		args = append(args, "--dependencies="+strings.Join(opts.Dependencies, ","))
	}
	if opts.Research {
		args = append(args, "--research")
	}
	return c.run(ctx, dir, args...)
}

// ParsePRD generates tasks from a PRD file. File is relative to dir.
func (c *Client) ParsePRD(ctx context.Context, dir string, opts ParsePRDOptions) (*Result, error) {
	if opts.File == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "fileName is required", nil)
	}
	args := []string{"parse-prd", "--input=" + opts.File}
	if opts.NumTasks > 0 {
		args = append(args, "--num-tasks="+strconv.Itoa(opts.NumTasks))
	}
	if opts.Append {
		args = append(args, "--append")
	}
	if opts.Research {
		args = append(args, "--research")
	}
	return c.run(ctx, dir, args...)
}

func (c *Client) SetStatus(ctx context.Context, dir, id, status string) (*Result, error) {
	if id == "" || status == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "task id and status are required", nil)
	}
	return c.run(ctx, dir, "set-status", "--id="+id, "--status="+status)
}

// UpdateTask asks the CLI to rewrite a task from a free-form prompt.
// Dotted ids address subtasks.
func (c *Client) UpdateTask(ctx context.Context, dir, id, prompt string, research bool) (*Result, error) {
	if id == "" || prompt == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "task id and prompt are required", nil)
	}
	sub := "update-task"
	if strings.Contains(id, ".") {
		sub = "update-subtask"
	}
	args := []string{sub, "--id=" + id, "--prompt=" + prompt}
	if research {
		args = append(args, "--research")
	}
	return c.run(ctx, dir, args...)
}

func (c *Client) Next(ctx context.Context, dir string) (*Result, error) {
	return c.run(ctx, dir, "next")
}

// Installation probes the CLI. Failures are reported through Reason.
func (c *Client) Installation(ctx context.Context) *InstallationStatus {
	path, err := c.lookPath(c.runner.Binary())
	if err != nil {
		return &InstallationStatus{Reason: fmt.Sprintf("%s not found in PATH", c.runner.Binary())}
	}
	st := &InstallationStatus{Installed: true, Path: path}
	res, err := c.runner.Run(ctx, "", "--version")
	switch {
	case err != nil:
		st.Reason = err.Error()
	case !res.Success:
		st.Reason = res.Message()
	default:
		st.Version = strings.TrimSpace(res.Stdout)
	}
	return st
}

// run maps runner failures to coded errors. A non-zero exit is returned as
// an Aborted error together with its Result.
func (c *Client) run(ctx context.Context, dir string, args ...string) (*Result, error) {
	res, err := c.runner.Run(ctx, dir, args...)
	switch {
	case errors.Is(err, ErrNotInstalled):
		return nil, cerr.NewError(cerr.FailedPrecondition, "task-master CLI is not installed", err)
	case errors.Is(err, ErrTimeout):
		return res, cerr.NewError(cerr.DeadlineExceeded, "task-master CLI timed out", err)
	case err != nil:
		return res, cerr.NewError(cerr.Internal, "failed to run task-master CLI", err)
	case !res.Success:
		return res, cerr.NewError(cerr.Aborted, fmt.Sprintf("task-master %s failed: %s", args[0], res.Message()), nil)
	}
	return res, nil
}
