package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/kazz187/tmdash/internal/config"
	"github.com/kazz187/tmdash/internal/taskmaster"
)

var statusColors = map[taskmaster.Status]*color.Color{
	taskmaster.StatusFullyConfigured: color.New(color.FgGreen, color.Bold),
	taskmaster.StatusTaskmasterOnly:  color.New(color.FgYellow),
	taskmaster.StatusMCPOnly:         color.New(color.FgYellow),
	taskmaster.StatusNotConfigured:   color.New(color.FgRed),
}

var taskStatusColors = map[string]*color.Color{
	taskmaster.StatusDone:       color.New(color.FgGreen),
	taskmaster.StatusInProgress: color.New(color.FgCyan),
	taskmaster.StatusReview:     color.New(color.FgMagenta),
	taskmaster.StatusDeferred:   color.New(color.FgYellow),
	taskmaster.StatusCancelled:  color.New(color.FgRed),
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runStatus(path string) error {
	env, err := config.LoadTaskmasterEnv()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	inspector := taskmaster.NewInspector(taskmaster.NewMCPDetector(mcpConfigPaths(env)))
	st := inspector.Inspect(context.Background(), taskmaster.Target{Name: filepath.Base(abs), Path: abs})
	if *jsonOut {
		return printJSON(st)
	}

	c, ok := statusColors[st.Status]
	if !ok {
		c = color.New()
	}
	fmt.Printf("%s  %s\n", color.New(color.Bold).Sprint(st.ProjectName), c.Sprint(st.Status))
	fmt.Printf("  path:       %s\n", st.ProjectPath)
	if st.Taskmaster.HasTaskmaster {
		fmt.Printf("  taskmaster: %s\n", st.Taskmaster.Path)
		if m := st.Taskmaster.Metadata; m != nil {
			if m.Error != "" {
				fmt.Printf("  tasks:      %s\n", color.RedString(m.Error))
			} else {
				fmt.Printf("  tasks:      %d (%d subtasks), %d%% complete\n", m.TaskCount, m.SubtaskCount, m.CompletionPercentage)
			}
		}
	} else {
		fmt.Printf("  taskmaster: %s\n", color.RedString(st.Taskmaster.Reason))
	}
	if st.MCP.HasMCPServer {
		fmt.Printf("  mcp:        %s (%s scope, %s)\n", st.MCP.ServerName, st.MCP.Scope, st.MCP.ConfigPath)
	} else {
		fmt.Printf("  mcp:        %s\n", color.RedString(st.MCP.Reason))
	}
	return nil
}

func runTasks(path, tag string) error {
	doc, err := taskmaster.LoadDocument(path)
	if err != nil {
		return err
	}
	list := taskmaster.NormalizeTag(doc, tag)
	if *jsonOut {
		return printJSON(list)
	}

	fmt.Printf("tag %s, %d tasks", color.New(color.Bold).Sprint(list.CurrentTag), list.TotalTasks)
	if len(list.AvailableTags) > 1 {
		fmt.Printf(" (tags: %v)", list.AvailableTags)
	}
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tTITLE")
	for _, t := range list.Tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, paintTaskStatus(t.Status), t.Priority, t.Title)
		for _, s := range t.Subtasks {
			fmt.Fprintf(tw, "  %s.%s\t%s\t%s\t%s\n", t.ID, s.ID, paintTaskStatus(s.Status), s.Priority, s.Title)
		}
	}
	return tw.Flush()
}

func runNext(path, tag string) error {
	doc, err := taskmaster.LoadDocument(path)
	if err != nil {
		return err
	}
	next := taskmaster.FindNextTask(taskmaster.NormalizeTag(doc, tag).Tasks)
	if *jsonOut {
		return printJSON(next)
	}
	if next == nil {
		fmt.Println("No eligible task. Everything is done or blocked by dependencies.")
		return nil
	}
	fmt.Printf("%s %s  %s\n", color.New(color.Bold).Sprint(next.ID), next.Title, paintTaskStatus(next.Status))
	fmt.Printf("  priority: %s\n", next.Priority)
	if next.Description != "" {
		fmt.Printf("  %s\n", next.Description)
	}
	return nil
}

func runTemplates() error {
	lib, err := taskmaster.BuiltinTemplates()
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(lib.List())
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tNAME\tPLACEHOLDERS")
	for _, t := range lib.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.ID, t.Category, t.Name, len(t.Placeholders))
	}
	return tw.Flush()
}

func paintTaskStatus(status string) string {
	if c, ok := taskStatusColors[status]; ok {
		return c.Sprint(status)
	}
	return status
}
