// Package watch reacts to project files that change how ESLint behaves.
//
// ESLint instances cache whatever configuration they found when they were
// built, so edits to .eslintrc* or .eslintignore clear the worker's cache.
// Edits to the per-project overrides file re-read it. Both wake a sleeping
// linter. Anything under node_modules is ignored; an install would
// otherwise trigger a storm of cache clears.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/log"
	"github.com/mattjoyce/eslint-node/internal/worker"
)

// DefaultDebounce is how long the watcher waits for a burst of changes to
// settle before acting.
const DefaultDebounce = 100 * time.Millisecond

var skipDirs = map[string]bool{"node_modules": true, ".git": true}

// Handler is what the watcher drives; *linter.Service implements it.
type Handler interface {
	Wake() bool
	ClearCache(ctx context.Context) error
	RescanOverrides(ctx context.Context, projectPath string) error
}

// Effect is what a changed path calls for.
type Effect struct {
	ClearCache      bool
	RescanOverrides bool
}

// Classify decides what a change to path calls for.
func Classify(path string) Effect {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "node_modules" {
			return Effect{}
		}
	}
	base := filepath.Base(path)
	switch {
	case base == config.OverridesFile:
		return Effect{RescanOverrides: true}
	case base == worker.IgnoreMarker, strings.HasPrefix(base, ".eslintrc"):
		return Effect{ClearCache: true}
	}
	return Effect{}
}

// Watcher watches project directories recursively.
type Watcher struct {
	fsw      *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	projects []string
}

// New returns a watcher with nothing watched yet. A non-positive debounce
// uses DefaultDebounce.
func New(handler Handler, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fsw:      fsw,
		handler:  handler,
		debounce: debounce,
		logger:   log.WithComponent("watch"),
	}, nil
}

// AddProject watches projectPath and every directory below it except
// node_modules and .git.
func (w *Watcher) AddProject(projectPath string) error {
	root, err := filepath.Abs(projectPath)
	if err != nil {
		return err
	}
	if err := w.addRecursive(root); err != nil {
		return err
	}
	w.mu.Lock()
	w.projects = append(w.projects, root)
	w.mu.Unlock()
	w.logger.Info("watching project", "project", root)
	return nil
}

// Projects returns the watched project roots.
func (w *Watcher) Projects() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.projects...)
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// projectFor returns the watched project containing path.
func (w *Watcher) projectFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	best := ""
	for _, p := range w.projects {
		if (path == p || strings.HasPrefix(path, p+string(filepath.Separator))) && len(p) > len(best) {
			best = p
		}
	}
	return best
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var (
		clear  bool
		rescan = make(map[string]bool)
		timer  *time.Timer
		fire   <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !skipDirs[info.Name()] {
					if err := w.addRecursive(ev.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "dir", ev.Name, "error", err)
					}
				}
			}

			effect := Classify(ev.Name)
			if !effect.ClearCache && !effect.RescanOverrides {
				continue
			}
			w.logger.Debug("relevant change", "path", ev.Name, "op", ev.Op.String())
			clear = clear || effect.ClearCache
			if effect.RescanOverrides {
				rescan[w.projectFor(ev.Name)] = true
			}
			timer = w.arm(timer)
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// events were lost; assume the worst
				clear = true
				timer = w.arm(timer)
				fire = timer.C
			}
			w.logger.Warn("watch error", "error", err)

		case <-fire:
			fire = nil
			w.apply(ctx, clear, rescan)
			clear = false
			rescan = make(map[string]bool)
		}
	}
}

// arm starts or restarts the debounce timer.
func (w *Watcher) arm(timer *time.Timer) *time.Timer {
	if timer == nil {
		return time.NewTimer(w.debounce)
	}
	timer.Reset(w.debounce)
	return timer
}

func (w *Watcher) apply(ctx context.Context, clear bool, rescan map[string]bool) {
	w.handler.Wake()
	for project := range rescan {
		if project == "" {
			continue
		}
		if err := w.handler.RescanOverrides(ctx, project); err != nil {
			w.logger.Warn("overrides rescan failed", "project", project, "error", err)
		}
	}
	if clear {
		if err := w.handler.ClearCache(ctx); err != nil {
			w.logger.Warn("cache clear failed", "error", err)
		}
	}
}
