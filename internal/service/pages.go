package service

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// AppFunc is a user app entrypoint. It is re-executed from the top on every
// rerun; an error return renders as an exception element rather than
// aborting the session.
type AppFunc func(app *App) error

// PageScript is one registered page of an app.
type PageScript struct {
	Name string
	Hash string
	Fn   AppFunc
}

// PageRegistry maps page names and page hashes to app entrypoints. The first
// registered page is the default, served when a client connects without
// naming a page.
type PageRegistry struct {
	mu          sync.RWMutex
	byName      map[string]*PageScript
	byHash      map[string]*PageScript
	defaultPage *PageScript
}

// NewPageRegistry returns an empty registry.
func NewPageRegistry() *PageRegistry {
	return &PageRegistry{
		byName: make(map[string]*PageScript),
		byHash: make(map[string]*PageScript),
	}
}

// Register adds a page under name. Registering the same name twice replaces
// the previous entrypoint but keeps the hash, so in-flight clients referring
// to the old hash still resolve.
func (r *PageRegistry) Register(name string, fn AppFunc) *PageScript {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &PageScript{
		Name: name,
		Hash: fmt.Sprintf("%016x", xxhash.Sum64String(name)),
		Fn:   fn,
	}
	r.byName[name] = p
	r.byHash[p.Hash] = p
	if r.defaultPage == nil {
		r.defaultPage = p
	}
	return p
}

// Resolve finds the page for a rerun request. Hash takes precedence over
// name; both empty resolves to the default page. The ok result is false when
// the request names a page that does not exist, in which case the default
// page is still returned as the fallback to render behind the page-not-found
// notice.
func (r *PageRegistry) Resolve(pageScriptHash, pageName string) (*PageScript, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if pageScriptHash != "" {
		if p, ok := r.byHash[pageScriptHash]; ok {
			return p, true
		}
		return r.defaultPage, false
	}
	if pageName != "" {
		if p, ok := r.byName[pageName]; ok {
			return p, true
		}
		return r.defaultPage, false
	}
	return r.defaultPage, r.defaultPage != nil
}

// Default returns the default page, or nil when no page is registered.
func (r *PageRegistry) Default() *PageScript {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultPage
}

// Pages returns copies of all registered pages sorted by name.
func (r *PageRegistry) Pages() []PageScript {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pages := make([]PageScript, 0, len(r.byName))
	for _, p := range r.byName {
		pages = append(pages, *p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Name < pages[j].Name })
	return pages
}

// Names returns registered page names in sorted order.
func (r *PageRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
