package taskmaster

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kazz187/tmdash/pkg/cerr"
	"github.com/kazz187/tmdash/pkg/storage"
)

var prdNamePattern = regexp.MustCompile(`^[\w\-. ]+\.(txt|md)$`)

// ValidPRDName reports whether name is an acceptable PRD file name.
func ValidPRDName(name string) bool {
	return prdNamePattern.MatchString(name) && name != "." && name != ".."
}

type PRDFile struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

type PRDDocument struct {
	PRDFile
	Content string `json:"content"`
}

// PRDWriteResult reports a saved PRD. Diff is a unified diff against the
// previous content and is empty for new or unchanged files.
type PRDWriteResult struct {
	PRDFile
	Created bool   `json:"created"`
	Diff    string `json:"diff,omitempty"`
}

// PRDStore keeps the product requirement documents of one project in
// .taskmaster/docs.
type PRDStore struct {
	storage storage.Storage
	dir     string
}

func NewPRDStore(projectPath string) (*PRDStore, error) {
	dir := DocsPath(projectPath)
	s, err := storage.NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	return &PRDStore{storage: s, dir: s.BasePath()}, nil
}

func (s *PRDStore) checkName(name string) error {
	if !ValidPRDName(name) {
		return cerr.NewError(cerr.InvalidArgument, "invalid PRD file name: use letters, digits, spaces, dots or dashes and a .txt or .md extension", nil)
	}
	return nil
}

func (s *PRDStore) fullPath(name string) string {
	return filepath.Join(s.dir, name)
}

// List returns the PRD files sorted by modification time, newest first.
// Files with other extensions are ignored.
func (s *PRDStore) List(ctx context.Context) ([]*PRDFile, error) {
	names, err := s.storage.List(ctx, "")
	if err != nil {
		return nil, cerr.WrapStorageReadError("PRD directory", err)
	}
	files := make([]*PRDFile, 0, len(names))
	for _, name := range names {
		if !ValidPRDName(name) {
			continue
		}
		info, err := s.storage.Stat(ctx, name)
		if err != nil {
			continue
		}
		files = append(files, &PRDFile{Name: name, Path: s.fullPath(name), Size: info.Size, Modified: info.Modified})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].Modified.Equal(files[j].Modified) {
			return files[i].Modified.After(files[j].Modified)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func (s *PRDStore) Read(ctx context.Context, name string) (*PRDDocument, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}
	data, err := s.storage.Read(ctx, name)
	if err != nil {
		return nil, cerr.WrapStorageReadError("PRD file "+name, err)
	}
	doc := &PRDDocument{PRDFile: PRDFile{Name: name, Path: s.fullPath(name), Size: int64(len(data))}, Content: string(data)}
	if info, err := s.storage.Stat(ctx, name); err == nil {
		doc.Modified = info.Modified
	}
	return doc, nil
}

// Write creates or replaces a PRD file.
func (s *PRDStore) Write(ctx context.Context, name, content string) (*PRDWriteResult, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}
	previous, err := s.storage.Read(ctx, name)
	created := errors.Is(err, storage.ErrNotFound)
	if err != nil && !created {
		return nil, cerr.WrapStorageReadError("PRD file "+name, err)
	}
	if err := s.storage.Write(ctx, name, []byte(content)); err != nil {
		return nil, cerr.WrapStorageWriteError("PRD file "+name, err)
	}
	res := &PRDWriteResult{
		PRDFile: PRDFile{Name: name, Path: s.fullPath(name), Size: int64(len(content))},
		Created: created,
	}
	if info, err := s.storage.Stat(ctx, name); err == nil {
		res.Modified = info.Modified
	}
	if !created {
		diff, err := UnifiedDiff(name, string(previous), content)
		if err != nil {
			return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to diff %s: %w", name, err))
		}
		res.Diff = diff
	}
	return res, nil
}

func (s *PRDStore) Delete(ctx context.Context, name string) error {
	if err := s.checkName(name); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, name); err != nil {
		return cerr.WrapStorageDeleteError("PRD file "+name, err)
	}
	return nil
}

// Exists reports whether a PRD file of that name is stored.
func (s *PRDStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := s.checkName(name); err != nil {
		return false, err
	}
	return s.storage.Exists(ctx, name)
}

// UnifiedDiff returns a three-line-context unified diff from before to
// after, or "" when they are equal.
func UnifiedDiff(name, before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
}
