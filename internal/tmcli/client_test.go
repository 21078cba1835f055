package tmcli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tmdash/pkg/cerr"
)

type fakeRunner struct {
	calls  [][]string
	dirs   []string
	result *Result
	err    error
}

func (f *fakeRunner) Binary() string { return "task-master" }

func (f *fakeRunner) Run(_ context.Context, dir string, args ...string) (*Result, error) {
	f.calls = append(f.calls, args)
	f.dirs = append(f.dirs, dir)
	if f.err != nil {
		return f.result, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &Result{Command: CommandLine("task-master", args...), Success: true, Stdout: "ok"}, nil
}

func TestClient_Arguments(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(c *Client) (*Result, error)
		want []string
	}{
		{
			name: "init",
			call: func(c *Client) (*Result, error) { return c.Init(ctx, "/p") },
			want: []string{"init", "--yes"},
		},
		{
			name: "add-task from prompt",
			call: func(c *Client) (*Result, error) {
				return c.AddTask(ctx, "/p", AddTaskOptions{Prompt: "Add auth", Priority: "high", Dependencies: []string{"1", "2"}, Research: true})
			},
			want: []string{"add-task", "--prompt=Add auth", "--priority=high", "--dependencies=1,2", "--research"},
		},
		{
			name: "add-task manual",
			call: func(c *Client) (*Result, error) {
				return c.AddTask(ctx, "/p", AddTaskOptions{Title: "T", Description: "D", Details: "X"})
			},
			want: []string{"add-task", "--title=T", "--description=D", "--details=X"},
		},
		{
			name: "parse-prd",
			call: func(c *Client) (*Result, error) {
				return c.ParsePRD(ctx, "/p", ParsePRDOptions{File: ".taskmaster/docs/prd.txt", NumTasks: 10, Append: true})
			},
			want: []string{"parse-prd", "--input=.taskmaster/docs/prd.txt", "--num-tasks=10", "--append"},
		},
		{
			name: "set-status",
			call: func(c *Client) (*Result, error) { return c.SetStatus(ctx, "/p", "3", "done") },
			want: []string{"set-status", "--id=3", "--status=done"},
		},
		{
			name: "update-task",
			call: func(c *Client) (*Result, error) { return c.UpdateTask(ctx, "/p", "3", "Use OAuth", false) },
			want: []string{"update-task", "--id=3", "--prompt=Use OAuth"},
		},
		{
			name: "update-subtask",
			call: func(c *Client) (*Result, error) { return c.UpdateTask(ctx, "/p", "3.1", "Note", true) },
			want: []string{"update-subtask", "--id=3.1", "--prompt=Note", "--research"},
		},
		{
			name: "next",
			call: func(c *Client) (*Result, error) { return c.Next(ctx, "/p") },
			want: []string{"next"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{}
			res, err := tt.call(New(f))
			require.NoError(t, err)
			assert.True(t, res.Success)
			require.Len(t, f.calls, 1)
			assert.Equal(t, tt.want, f.calls[0])
			assert.Equal(t, "/p", f.dirs[0])
		})
	}
}

func TestClient_Validation(t *testing.T) {
	ctx := context.Background()
	c := New(&fakeRunner{})

	_, err := c.AddTask(ctx, "/p", AddTaskOptions{Title: "only title"})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	_, err = c.ParsePRD(ctx, "/p", ParsePRDOptions{})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	_, err = c.SetStatus(ctx, "/p", "", "done")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	_, err = c.UpdateTask(ctx, "/p", "1", "", false)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestClient_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		runner *fakeRunner
		want   cerr.Code
	}{
		{name: "not installed", runner: &fakeRunner{err: ErrNotInstalled}, want: cerr.FailedPrecondition},
		{name: "timeout", runner: &fakeRunner{err: ErrTimeout, result: &Result{ExitCode: -1}}, want: cerr.DeadlineExceeded},
		{name: "other", runner: &fakeRunner{err: errors.New("boom")}, want: cerr.Internal},
		{name: "non-zero exit", runner: &fakeRunner{result: &Result{ExitCode: 1, Stderr: "no tasks.json"}}, want: cerr.Aborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.runner).Next(ctx, "/p")
			assert.True(t, cerr.IsCode(err, tt.want), "%v", err)
		})
	}

	_, err := New(&fakeRunner{result: &Result{ExitCode: 1, Stderr: "no tasks.json"}}).Next(ctx, "/p")
	assert.Contains(t, err.Error(), "task-master next failed: no tasks.json")
}

func TestClient_Installation(t *testing.T) {
	ctx := context.Background()

	c := New(&fakeRunner{result: &Result{Success: true, Stdout: "0.20.0\n"}})
	c.lookPath = func(string) (string, error) { return "/usr/bin/task-master", nil }
	st := c.Installation(ctx)
	assert.True(t, st.Installed)
	assert.Equal(t, "0.20.0", st.Version)
	assert.Equal(t, "/usr/bin/task-master", st.Path)

	c = New(&fakeRunner{})
	c.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	st = c.Installation(ctx)
	assert.False(t, st.Installed)
	assert.Equal(t, "task-master not found in PATH", st.Reason)
}
