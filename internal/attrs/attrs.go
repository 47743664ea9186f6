// Package attrs persists block attributes. Every backend merges patches
// shallowly, keeps file-version monotonic, and notifies subscribers on
// every write.
package attrs

import (
	"context"
	"sync"

	"github.com/livetemplate/tinkersheet"
)

// Change describes one committed write.
type Change struct {
	Key  string
	Prev tinkersheet.Attributes
	Next tinkersheet.Attributes

	// External is set when the change did not come through Write on this
	// process, e.g. a block file edited on disk. External notifications
	// arrive on a store goroutine; all others arrive synchronously on the
	// writer's goroutine before Write returns.
	External bool
}

// Listener receives change notifications.
type Listener func(Change)

// Store holds the attributes of every block, keyed by block key.
type Store interface {
	// Read returns the attributes stored under key, or an error wrapping
	// ErrNotFound.
	Read(ctx context.Context, key string) (tinkersheet.Attributes, error)

	// Write merges p into the record under key, creating it if needed.
	Write(ctx context.Context, key string, p tinkersheet.Patch) error

	// List returns every stored key, sorted.
	List(ctx context.Context) ([]string, error)

	// Subscribe registers fn for changes to key.
	Subscribe(key string, fn Listener) (cancel func())

	Close() error
}

// merge applies p to prev and enforces the store invariants.
func merge(prev tinkersheet.Attributes, p tinkersheet.Patch) tinkersheet.Attributes {
	next := p.Apply(prev)
	if next.FileVersion < prev.FileVersion {
		next.FileVersion = prev.FileVersion
	}
	if next.Options != nil {
		next.Options = next.Options.Normalize()
	}
	return next
}

// hub fans change notifications out to listeners.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]Listener
}

func (h *hub) subscribe(key string, fn Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[string]map[int]Listener)
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]Listener)
	}
	h.next++
	id := h.next
	h.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
		})
	}
}

// notify calls listeners outside the lock, so they may write again.
func (h *hub) notify(ch Change) {
	h.mu.Lock()
	fns := make([]Listener, 0, len(h.subs[ch.Key]))
	for _, fn := range h.subs[ch.Key] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}

// Block is the attribute store of a single block. It satisfies the
// controller's writer interface.
type Block struct {
	store Store
	key   string
}

// Bind returns the view of s for one block key.
func Bind(s Store, key string) *Block {
	return &Block{store: s, key: key}
}

// Key returns the block key.
func (b *Block) Key() string { return b.key }

// Read returns the block's attributes.
func (b *Block) Read(ctx context.Context) (tinkersheet.Attributes, error) {
	return b.store.Read(ctx, b.key)
}

// Write merges p into the block's attributes.
func (b *Block) Write(ctx context.Context, p tinkersheet.Patch) error {
	return b.store.Write(ctx, b.key, p)
}

// Subscribe registers fn for changes to this block.
func (b *Block) Subscribe(fn Listener) func() {
	return b.store.Subscribe(b.key, fn)
}

// Ensure returns the stored attributes for key, first writing defaults if
// the block was never saved. Defaults with an empty UID get key as UID.
func Ensure(ctx context.Context, s Store, key string, defaults tinkersheet.Attributes) (tinkersheet.Attributes, error) {
	a, err := s.Read(ctx, key)
	if err == nil {
		return a, nil
	}
	if !IsNotFound(err) {
		return tinkersheet.Attributes{}, err
	}

	if defaults.UID == "" {
		defaults.UID = key
	}
	p := tinkersheet.Patch{
		UID:            &defaults.UID,
		JSON:           &defaults.JSON,
		Theme:          &defaults.Theme,
		Height:         &defaults.Height,
		Width:          &defaults.Width,
		ConstrainWidth: &defaults.ConstrainWidth,
		Options:        defaults.Options.Clone(),
		FileVersion:    &defaults.FileVersion,
		LibraryVersion: &defaults.LibraryVersion,
	}
	if err := s.Write(ctx, key, p); err != nil {
		return tinkersheet.Attributes{}, err
	}
	return s.Read(ctx, key)
}
