package taskmaster

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// FolderName is the directory the CLI creates at the project root.
	FolderName = ".taskmaster"

	TasksFile  = "tasks/tasks.json"
	ConfigFile = "config.json"
	DocsDir    = "docs"
)

var keyFiles = []string{TasksFile, ConfigFile}

// FolderDetection describes the .taskmaster folder of a project.
type FolderDetection struct {
	HasTaskmaster     bool            `json:"hasTaskmaster"`
	HasEssentialFiles bool            `json:"hasEssentialFiles"`
	Files             map[string]bool `json:"files,omitempty"`
	Metadata          *Metadata       `json:"metadata"`
	Path              string          `json:"path,omitempty"`
	Reason            string          `json:"reason,omitempty"`
}

// Present reports whether the folder counts as configured: it exists and
// its task file is readable.
func (d *FolderDetection) Present() bool {
	return d != nil && d.HasTaskmaster && d.HasEssentialFiles
}

// FolderPath returns the .taskmaster path of a project.
func FolderPath(projectPath string) string {
	return filepath.Join(projectPath, FolderName)
}

// TasksPath returns the tasks.json path of a project.
func TasksPath(projectPath string) string {
	return filepath.Join(projectPath, FolderName, filepath.FromSlash(TasksFile))
}

// DocsPath returns the PRD directory of a project.
func DocsPath(projectPath string) string {
	return filepath.Join(projectPath, FolderName, DocsDir)
}

// DetectFolder inspects the .taskmaster folder of projectPath. Failures are
// reported through Reason, never returned.
func DetectFolder(projectPath string) *FolderDetection {
	folder := FolderPath(projectPath)
	info, err := os.Stat(folder)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &FolderDetection{Reason: ".taskmaster directory not found"}
	case err != nil:
		return &FolderDetection{Reason: fmt.Sprintf("error checking directory: %v", err)}
	case !info.IsDir():
		return &FolderDetection{Reason: ".taskmaster exists but is not a directory"}
	}

	d := &FolderDetection{
		HasTaskmaster:     true,
		HasEssentialFiles: true,
		Files:             make(map[string]bool, len(keyFiles)),
		Path:              folder,
	}
	for _, name := range keyFiles {
		readable := isReadable(filepath.Join(folder, filepath.FromSlash(name)))
		d.Files[name] = readable
		if name == TasksFile && !readable {
			d.HasEssentialFiles = false
		}
	}
	if d.Files[TasksFile] {
		d.Metadata = readMetadata(TasksPath(projectPath))
	}
	return d
}

func isReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	return err == nil && !info.IsDir()
}

func readMetadata(path string) *Metadata {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Metadata{Error: "failed to read tasks.json"}
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return &Metadata{Error: "failed to parse tasks.json"}
	}
	m := SummarizeDocument(doc)
	if info, err := os.Stat(path); err == nil {
		mod := info.ModTime()
		m.LastModified = &mod
	}
	return m
}

// LoadDocument reads and parses the task file of a project. A missing file
// is an empty document.
func LoadDocument(projectPath string) (Document, error) {
	data, err := os.ReadFile(TasksPath(projectPath))
	if errors.Is(err, fs.ErrNotExist) {
		return TaggedMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks file: %w", err)
	}
	return ParseDocument(data)
}
