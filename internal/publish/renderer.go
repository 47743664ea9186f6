package publish

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/livetemplate/tinkersheet"
	"github.com/livetemplate/tinkersheet/internal/attrs"
	"github.com/livetemplate/tinkersheet/internal/cache"
)

// Renderer renders published blocks and pages from an attribute store,
// caching block markup by uid and file version.
type Renderer struct {
	store   attrs.Store
	version string
	ttl     time.Duration
	cache   *cache.MemoryCache[string]
	policy  *bluemonday.Policy
	debug   bool
}

// NewRenderer creates a renderer. version is the widget runtime version
// stamped on blocks that never recorded one.
func NewRenderer(store attrs.Store, version string, ttl time.Duration, debug bool) *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()

	return &Renderer{
		store:   store,
		version: version,
		ttl:     ttl,
		cache:   cache.NewMemoryCache[string](),
		policy:  policy,
		debug:   debug,
	}
}

// Close stops the cache sweeper.
func (r *Renderer) Close() {
	r.cache.Stop()
}

func cacheKey(a tinkersheet.Attributes) string {
	return LocalStorageKey(a)
}

// Block renders the stored block under key. Blocks never saved render
// from fallback, if given.
func (r *Renderer) Block(ctx context.Context, key string, fallback *tinkersheet.Attributes) (string, error) {
	a, err := r.store.Read(ctx, key)
	if attrs.IsNotFound(err) && fallback != nil {
		a, err = *fallback, nil
	}
	if err != nil {
		return "", err
	}
	return r.render(a)
}

func (r *Renderer) render(a tinkersheet.Attributes) (string, error) {
	// The file version moves on every document change, but theme, size
	// and options do not bump it, so they are part of the key too.
	key := cacheKey(a) + "|" + a.Theme + "|" + a.Options.Canonical() + "|" + style(a)
	if html, ok := r.cache.Get(key); ok {
		return html, nil
	}
	html, err := Render(a, r.version)
	if err != nil {
		return "", err
	}
	r.cache.Set(key, html, r.ttl)
	return html, nil
}

// Invalidate drops cached markup for a block.
func (r *Renderer) Invalidate(uid string) {
	r.cache.InvalidateFunc(func(key string) bool {
		return strings.HasPrefix(key, uid+":")
	})
}

// Page renders a host page: sanitized prose with each block's published
// markup in place of its placeholder.
func (r *Renderer) Page(ctx context.Context, page *tinkersheet.Page) (string, error) {
	body := r.policy.Sanitize(tokenize(page))

	for _, uid := range page.Order {
		block := page.Blocks[uid]
		defaults := block.Defaults()
		markup, err := r.Block(ctx, uid, &defaults)
		if err != nil {
			return "", err
		}
		token := blockToken(uid)
		if strings.Contains(body, "<p>"+token+"</p>") {
			body = strings.Replace(body, "<p>"+token+"</p>", markup, 1)
		} else {
			body = strings.Replace(body, token, markup, 1)
		}
	}
	if r.debug {
		log.Printf("[Publish] Rendered page %s with %d blocks", page.ID, len(page.Order))
	}
	return body, nil
}

// blockToken is plain text, so it survives sanitization where the
// comment placeholder would not.
func blockToken(uid string) string {
	return "@@tinkersheet:" + uid + "@@"
}

func tokenize(page *tinkersheet.Page) string {
	html := page.StaticHTML
	for _, uid := range page.Order {
		html = strings.Replace(html, page.Blocks[uid].Placeholder(), blockToken(uid), 1)
	}
	return html
}
