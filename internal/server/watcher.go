package server

import (
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long the watcher waits for a burst of saves to
// settle. Editors commonly write a temp file and rename it over the
// document, which arrives as several events.
const watchDebounce = 100 * time.Millisecond

// Watcher reports host documents that changed on disk, batched per burst.
type Watcher struct {
	fs       *fsnotify.Watcher
	rootDir  string
	skip     func(relPath string) bool
	onChange func(relPaths []string) error
	debounce time.Duration
	debug    bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher watches every document directory under rootDir. skip, if
// set, filters out documents the server ignores.
func NewWatcher(rootDir string, skip func(string) bool, onChange func([]string) error, debug bool) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}
	w := &Watcher{
		fs:       fsw,
		rootDir:  rootDir,
		skip:     skip,
		onChange: onChange,
		debounce: watchDebounce,
		debug:    debug,
		done:     make(chan struct{}),
	}
	if err := w.watchTree(rootDir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// watchTree adds dir and its subdirectories, skipping hidden and
// underscore directories as Discover does. The dir store keeps its block
// files under .tinkersheet, so its writes never reach the watcher.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.rootDir && hiddenDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return err
		}
		if w.debug {
			log.Printf("[Watch] Watching %s", path)
		}
		return nil
	})
}

func hiddenDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// document returns the root-relative path of a host document event, or ""
// when the event is not about one.
func (w *Watcher) document(ev fsnotify.Event) string {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return ""
	}
	if filepath.Ext(ev.Name) != ".md" {
		return ""
	}
	rel, err := filepath.Rel(w.rootDir, ev.Name)
	if err != nil || w.skip(rel) {
		return ""
	}
	return rel
}

// Start runs the event loop until Stop.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		pending := make(map[string]bool)
		timer := time.NewTimer(w.debounce)
		timer.Stop()

		for {
			select {
			case ev, ok := <-w.fs.Events:
				if !ok {
					return
				}
				// New directories, e.g. a copied-in guide folder, are
				// watched as they appear.
				if ev.Op&fsnotify.Create != 0 && filepath.Ext(ev.Name) != ".md" {
					if name := filepath.Base(ev.Name); !hiddenDir(name) {
						if err := w.watchTree(ev.Name); err != nil && w.debug {
							log.Printf("[Watch] Cannot watch %s: %v", ev.Name, err)
						}
					}
				}
				if rel := w.document(ev); rel != "" {
					pending[rel] = true
					timer.Reset(w.debounce)
				}

			case <-timer.C:
				if len(pending) == 0 {
					continue
				}
				paths := make([]string, 0, len(pending))
				for p := range pending {
					paths = append(paths, p)
				}
				sort.Strings(paths)
				clear(pending)

				if w.debug {
					log.Printf("[Watch] Changed: %s", strings.Join(paths, ", "))
				}
				if err := w.onChange(paths); err != nil {
					log.Printf("[Watch] Reload failed after %s: %v", strings.Join(paths, ", "), err)
				}

			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				log.Printf("[Watch] Error: %v", err)

			case <-w.done:
				timer.Stop()
				return
			}
		}
	}()
}

// Stop ends the event loop and waits for it to exit.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}
