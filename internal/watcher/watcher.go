// Package watcher publishes bus events when a registered project's task
// file or .taskmaster folder changes on disk.
package watcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kazz187/tmdash/internal/eventbus"
	"github.com/kazz187/tmdash/internal/project"
	"github.com/kazz187/tmdash/internal/taskmaster"
)

// DefaultDebounce is the delay after the last filesystem event of a
// project before its files are checked.
const DefaultDebounce = 300 * time.Millisecond

type state struct {
	project   *project.Project
	hasFolder bool
	hash      [sha256.Size]byte
	timer     *time.Timer
}

type Watcher struct {
	repo     project.Repository
	eventBus *eventbus.Bus
	debounce time.Duration

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	projects map[string]*state // keyed by project path
	watched  map[string]bool
}

func New(repo project.Repository, eventBus *eventbus.Bus, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		repo:     repo,
		eventBus: eventBus,
		debounce: debounce,
		projects: map[string]*state{},
		watched:  map[string]bool{},
	}
}

// Start opens the watcher and runs it until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.Open(ctx); err != nil {
		return err
	}
	return w.Run(ctx)
}

// Open creates the fsnotify watcher and registers every project.
func (w *Watcher) Open(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.fsw = fsw
	return w.Sync(ctx)
}

// Run consumes filesystem and bus events. It closes the fsnotify watcher
// on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()
	subID, busCh := w.eventBus.Subscribe(16)
	defer w.eventBus.Unsubscribe(subID)

	slog.InfoContext(ctx, "task file watcher started", "projects", w.count())
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "task file watcher stopped")
			return nil
		case ev, ok := <-busCh:
			if !ok {
				return nil
			}
			if ev.Type != eventbus.TypeProjectsUpdated {
				continue
			}
			if err := w.Sync(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to resync watched projects", "error", err)
			}
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "fsnotify error", "error", err)
		}
	}
}

// Sync aligns the watched set with the registered projects.
func (w *Watcher) Sync(ctx context.Context) error {
	projects, _, err := w.repo.List(ctx, 0, 0)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]bool, len(projects))
	for _, p := range projects {
		root := filepath.Clean(p.Path)
		current[root] = true
		if st, ok := w.projects[root]; ok {
			st.project = p
			w.addWatches(root)
			continue
		}
		hash, _ := HashFile(taskmaster.TasksPath(root))
		w.projects[root] = &state{project: p, hasFolder: folderExists(root), hash: hash}
		w.addWatches(root)
	}
	for root, st := range w.projects {
		if current[root] {
			continue
		}
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(w.projects, root)
		for dir := range w.watched {
			if dir == root || strings.HasPrefix(dir, root+string(filepath.Separator)) {
				_ = w.fsw.Remove(dir)
				delete(w.watched, dir)
			}
		}
	}
	return nil
}

// addWatches watches the project root, .taskmaster and .taskmaster/tasks.
// Directories that do not exist yet are picked up when they appear.
func (w *Watcher) addWatches(root string) {
	for _, dir := range []string{root, taskmaster.FolderPath(root), filepath.Dir(taskmaster.TasksPath(root))} {
		if w.watched[dir] {
			if _, err := os.Stat(dir); err == nil {
				continue
			}
			delete(w.watched, dir)
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			continue
		}
		w.watched[dir] = true
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	root := w.projectOf(ev.Name)
	if root == "" {
		return
	}
	if !relevant(root, ev.Name) {
		return
	}
	st := w.projects[root]
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(w.debounce, func() { w.check(ctx, root) })
}

// relevant reports whether name is the .taskmaster folder or lies under it.
func relevant(root, name string) bool {
	folder := taskmaster.FolderPath(root)
	return name == folder || strings.HasPrefix(name, folder+string(filepath.Separator))
}

// projectOf returns the root of the project containing name, preferring
// the longest match for nested projects.
func (w *Watcher) projectOf(name string) string {
	best := ""
	for root := range w.projects {
		if (name == root || strings.HasPrefix(name, root+string(filepath.Separator))) && len(root) > len(best) {
			best = root
		}
	}
	return best
}

// check compares the project's folder and task file with the last seen
// state and publishes the differences.
func (w *Watcher) check(ctx context.Context, root string) {
	w.mu.Lock()
	st, ok := w.projects[root]
	if !ok {
		w.mu.Unlock()
		return
	}
	st.timer = nil
	name := st.project.Name

	var publish []*eventbus.Event
	w.addWatches(root)
	hasFolder := folderExists(root)
	if hasFolder != st.hasFolder {
		st.hasFolder = hasFolder
		publish = append(publish, &eventbus.Event{
			Type:     eventbus.TypeProjectUpdated,
			Metadata: map[string]string{"has_taskmaster": strconv.FormatBool(hasFolder)},
		})
	}

	hash, err := HashFile(taskmaster.TasksPath(root))
	switch {
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		slog.WarnContext(ctx, "failed to hash tasks file", "project", name, "error", err)
	case hash != st.hash:
		st.hash = hash
		var data any
		if doc, err := taskmaster.LoadDocument(root); err == nil {
			data = taskmaster.Normalize(doc)
		}
		publish = append(publish, &eventbus.Event{
			Type:     eventbus.TypeTasksUpdated,
			Data:     data,
			Metadata: map[string]string{"checksum": fmt.Sprintf("%x", hash[:8])},
		})
	}
	w.mu.Unlock()

	for _, ev := range publish {
		slog.DebugContext(ctx, "project files changed", "project", name, "type", ev.Type)
		w.eventBus.PublishNew(ev.Type, name, ev.Data, ev.Metadata)
	}
}

func (w *Watcher) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.projects)
}

func (w *Watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, st := range w.projects {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	_ = w.fsw.Close()
}

func folderExists(root string) bool {
	info, err := os.Stat(taskmaster.FolderPath(root))
	return err == nil && info.IsDir()
}

// HashFile returns the SHA256 of the file at path. A missing file yields
// the zero hash together with an fs.ErrNotExist error.
func HashFile(path string) ([sha256.Size]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("hash %s: %w", path, err)
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
