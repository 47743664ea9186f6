package attrs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/livetemplate/tinkersheet"
)

const blockExt = ".yaml"

// Dir keeps one YAML file per block under a directory. Files edited on disk
// by anything other than this store are picked up and announced as
// external changes.
type Dir struct {
	root     string
	debug    bool
	debounce time.Duration

	mu      sync.Mutex
	cache   map[string]tinkersheet.Attributes
	written map[string][]byte // last bytes this store wrote, per key
	timers  map[string]*time.Timer
	closed  bool

	hub     hub
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenDir opens a directory store rooted at root, creating it if needed,
// and starts watching it.
func OpenDir(root string, debug bool) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &StoreError{Driver: "dir", Operation: "open", Err: err}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &StoreError{Driver: "dir", Operation: "open", Err: err}
	}
	if err := fsWatcher.Add(root); err != nil {
		fsWatcher.Close()
		return nil, &StoreError{Driver: "dir", Operation: "open", Err: err}
	}

	d := &Dir{
		root:     root,
		debug:    debug,
		debounce: 100 * time.Millisecond,
		cache:    make(map[string]tinkersheet.Attributes),
		written:  make(map[string][]byte),
		timers:   make(map[string]*time.Timer),
		watcher:  fsWatcher,
		done:     make(chan struct{}),
	}
	go d.watch()
	return d, nil
}

func (d *Dir) path(key string) string {
	return filepath.Join(d.root, key+blockExt)
}

func (d *Dir) checkKey(op, key string) error {
	if !tinkersheet.ValidUID(key) {
		return &StoreError{Driver: "dir", Operation: op, Key: key, Err: errors.New("invalid block key")}
	}
	return nil
}

func (d *Dir) Read(_ context.Context, key string) (tinkersheet.Attributes, error) {
	if err := d.checkKey("read", key); err != nil {
		return tinkersheet.Attributes{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	a, err := d.load(key)
	if err != nil {
		return a, err
	}
	return a.Clone(), nil
}

// load returns the cached record, reading the file on a miss. Caller holds mu.
func (d *Dir) load(key string) (tinkersheet.Attributes, error) {
	if a, ok := d.cache[key]; ok {
		return a, nil
	}
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return tinkersheet.Attributes{}, notFound("dir", key)
	}
	if err != nil {
		return tinkersheet.Attributes{}, &StoreError{Driver: "dir", Operation: "read", Key: key, Err: err}
	}
	a, err := decodeBlock(data)
	if err != nil {
		return a, &StoreError{Driver: "dir", Operation: "read", Key: key, Err: err}
	}
	d.cache[key] = a
	return a, nil
}

func decodeBlock(data []byte) (tinkersheet.Attributes, error) {
	var a tinkersheet.Attributes
	if err := yaml.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("decode block file: %w", err)
	}
	if a.Options != nil {
		a.Options = a.Options.Normalize()
	}
	return a, nil
}

func (d *Dir) Write(ctx context.Context, key string, p tinkersheet.Patch) error {
	if err := d.checkKey("write", key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	prev, err := d.load(key)
	if err != nil && !IsNotFound(err) {
		d.mu.Unlock()
		return err
	}
	next := merge(prev, p)

	data, err := yaml.Marshal(next)
	if err == nil {
		err = writeFileAtomic(d.path(key), data)
	}
	if err != nil {
		d.mu.Unlock()
		return &StoreError{Driver: "dir", Operation: "write", Key: key, Err: err}
	}
	d.cache[key] = next
	d.written[key] = data
	d.mu.Unlock()

	if d.debug {
		log.Printf("[Store] dir %s: wrote %v", key, p.Keys())
	}
	d.hub.notify(Change{Key: key, Prev: prev, Next: next.Clone()})
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (d *Dir) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, &StoreError{Driver: "dir", Operation: "list", Err: err}
	}
	var keys []string
	for _, e := range entries {
		if key, ok := blockKey(e.Name()); ok && !e.IsDir() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// blockKey maps a file name to its block key, rejecting temp and foreign files.
func blockKey(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || filepath.Ext(name) != blockExt {
		return "", false
	}
	key := strings.TrimSuffix(name, blockExt)
	return key, tinkersheet.ValidUID(key)
}

func (d *Dir) Subscribe(key string, fn Listener) func() {
	return d.hub.subscribe(key, fn)
}

func (d *Dir) watch() {
	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			key, ok := blockKey(filepath.Base(event.Name))
			if !ok {
				continue
			}
			d.schedule(key)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Store] dir watch error: %v", err)

		case <-d.done:
			return
		}
	}
}

// schedule coalesces bursts of events for one file into a single reload.
func (d *Dir) schedule(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Reset(d.debounce)
		return
	}
	d.timers[key] = time.AfterFunc(d.debounce, func() { d.reload(key) })
}

func (d *Dir) reload(key string) {
	d.mu.Lock()
	delete(d.timers, key)
	data, err := os.ReadFile(d.path(key))
	if d.closed || err != nil || bytes.Equal(data, d.written[key]) {
		d.mu.Unlock()
		return
	}
	next, err := decodeBlock(data)
	if err != nil {
		d.mu.Unlock()
		log.Printf("[Store] dir %s: ignoring unreadable edit: %v", key, err)
		return
	}
	prev := d.cache[key]
	if next.FileVersion < prev.FileVersion {
		next.FileVersion = prev.FileVersion
	}
	d.cache[key] = next
	d.written[key] = data
	d.mu.Unlock()

	if d.debug {
		log.Printf("[Store] dir %s: changed on disk", key)
	}
	d.hub.notify(Change{Key: key, Prev: prev, Next: next.Clone(), External: true})
}

// Close stops watching. Pending reloads are dropped.
func (d *Dir) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.mu.Unlock()

	close(d.done)
	return d.watcher.Close()
}
