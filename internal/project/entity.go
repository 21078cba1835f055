package project

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Project is a directory on this machine that the dashboard tracks. Name is
// unique and is the key used in taskmaster routes.
type Project struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	DisplayName string    `yaml:"display_name" json:"displayName"`
	Path        string    `yaml:"path" json:"path"`
	CreatedAt   time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updatedAt"`
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Title is the name shown to users.
func (p *Project) Title() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// ValidateName checks that name can be used as a URL path segment.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name must match %s", namePattern)
	}
	return nil
}

// ValidatePath checks that path is an absolute path to an existing
// directory and returns it cleaned.
func ValidatePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be absolute")
	}
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("path is not accessible: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory")
	}
	return path, nil
}
