package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

var (
	app     = kingpin.New("tmdash", "Dashboard backend for TaskMaster projects")
	jsonOut = app.Flag("json", "Print machine readable JSON").Bool()

	serveCmd = app.Command("serve", "Start the dashboard server").Default()

	statusCmd  = app.Command("status", "Show the TaskMaster configuration status of a project")
	statusPath = statusCmd.Arg("path", "Project directory").Default(".").ExistingDir()

	tasksCmd  = app.Command("tasks", "List the tasks of a project")
	tasksPath = tasksCmd.Arg("path", "Project directory").Default(".").ExistingDir()
	tasksTag  = tasksCmd.Flag("tag", "Tag to show instead of the active one").String()

	nextCmd  = app.Command("next", "Show the next task to work on")
	nextPath = nextCmd.Arg("path", "Project directory").Default(".").ExistingDir()
	nextTag  = nextCmd.Flag("tag", "Tag to pick from").String()

	templatesCmd = app.Command("templates", "List the built-in PRD templates")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var err error
	switch command {
	case serveCmd.FullCommand():
		err = runServe()
	case statusCmd.FullCommand():
		err = runStatus(*statusPath)
	case tasksCmd.FullCommand():
		err = runTasks(*tasksPath, *tasksTag)
	case nextCmd.FullCommand():
		err = runNext(*nextPath, *nextTag)
	case templatesCmd.FullCommand():
		err = runTemplates()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
