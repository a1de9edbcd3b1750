package registry

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Reload reports one seed pack re-applied (or rejected) by a Watcher.
type Reload struct {
	Path string
	Err  error
}

// Watcher re-applies seed packs when their files are created or written.
type Watcher struct {
	w        *fsnotify.Watcher
	reg      *Registry
	patterns []string
	// recursive holds the base directories of "**" patterns.
	recursive []string
	version   string
	logger    *slog.Logger
	evC       chan Reload
	done      chan struct{}
}

// Watch starts watching the directories that can contain files matching
// patterns. Matching packs are re-applied to r as they change.
func (r *Registry) Watch(patterns []string, version string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	rw := &Watcher{
		w:       w,
		reg:     r,
		version: version,
		logger:  logger,
		evC:     make(chan Reload, 128),
		done:    make(chan struct{}),
	}

	seen := map[string]bool{}
	for _, p := range patterns {
		p = filepath.Clean(p)
		rw.patterns = append(rw.patterns, p)

		base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
		dir := filepath.FromSlash(base)
		deep := strings.Contains(p, "**")
		if deep {
			rw.recursive = append(rw.recursive, dir)
		}
		if seen[dir] {
			continue
		}
		seen[dir] = true

		if deep {
			err = rw.addTree(dir)
		} else {
			err = w.Add(dir)
		}
		if err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	go rw.loop()
	return rw, nil
}

func (rw *Watcher) loop() {
	defer close(rw.done)
	for {
		select {
		case ev, ok := <-rw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 && rw.underRecursive(ev.Name) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					rw.enterDir(ev.Name)
					continue
				}
			}
			if rw.matches(ev.Name) {
				rw.reload(ev.Name)
			}
		case err, ok := <-rw.w.Errors:
			if !ok {
				return
			}
			rw.logger.Warn("Seed watcher error", slog.String("error", err.Error()))
		}
	}
}

func (rw *Watcher) reload(path string) {
	err := rw.reg.loadPack(path, rw.version)
	if err != nil {
		rw.logger.Warn("Seed pack reload failed", slog.String("path", path), slog.String("error", err.Error()))
	} else {
		rw.logger.Info("Seed pack reloaded", slog.String("path", path))
	}
	select {
	case rw.evC <- Reload{Path: path, Err: err}:
	default:
	}
}

// addTree watches root and every directory below it.
func (rw *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return rw.w.Add(path)
	})
}

// enterDir starts watching a directory created under a "**" pattern and
// loads the packs that landed in it before the watch was in place.
func (rw *Watcher) enterDir(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return rw.w.Add(path)
		}
		if rw.matches(path) {
			rw.reload(path)
		}
		return nil
	})
	if err != nil {
		rw.logger.Warn("Seed watcher could not follow directory", slog.String("path", dir), slog.String("error", err.Error()))
	}
}

func (rw *Watcher) underRecursive(name string) bool {
	name = filepath.Clean(name)
	for _, root := range rw.recursive {
		rel, err := filepath.Rel(root, name)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (rw *Watcher) matches(name string) bool {
	name = filepath.Clean(name)
	for _, p := range rw.patterns {
		if ok, _ := doublestar.PathMatch(p, name); ok {
			return true
		}
	}
	return false
}

// Reloads delivers one entry per processed pack change.
func (rw *Watcher) Reloads() <-chan Reload { return rw.evC }

// Close stops the watcher.
func (rw *Watcher) Close() error {
	err := rw.w.Close()
	<-rw.done
	return err
}
