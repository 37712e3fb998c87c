// Package fswait is an optional, additive wake-up source for the Cycle
// Driver. It never decides which tests to run; the mtime-based
// Snapshot/Differ in internal/watch remains the sole source of truth for
// that. It only shortens the latency between an edit and the next poll
// by waking the driver's timer select early, so events collapse to
// "something changed" and the snapshot diff does the rest.
package fswait

import (
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Waiter watches a directory tree recursively and signals Wake whenever
// any file beneath it changes. The directories are registered once, when
// New is called; directories created afterwards are not watched.
type Waiter struct {
	watcher *fsnotify.Watcher
	Wake    chan struct{}
	done    chan struct{}
}

// New starts watching root recursively. The caller must call Close when
// done to release the underlying OS resources.
func New(root string) (*Waiter, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(fw, root); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Waiter{watcher: fw, Wake: make(chan struct{}, 1), done: make(chan struct{})}
	go w.run()
	return w, nil
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

func (w *Waiter) run() {
	for {
		select {
		case _, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			select {
			case w.Wake <- struct{}{}:
			default:
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher and releases its resources.
func (w *Waiter) Close() {
	close(w.done)
	w.watcher.Close()
}
