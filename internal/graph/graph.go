// Package graph tracks which source files each page was built from and the
// reverse mapping from a source file to the pages that consume it.
package graph

import (
	"sort"
	"sync"
)

// Deps is a set of absolute source paths.
type Deps map[string]struct{}

// NewDeps builds a set from paths.
func NewDeps(paths ...string) Deps {
	d := make(Deps, len(paths))
	for _, p := range paths {
		d[p] = struct{}{}
	}
	return d
}

// Add inserts path into the set.
func (d Deps) Add(path string) {
	d[path] = struct{}{}
}

// Merge inserts every member of other.
func (d Deps) Merge(other Deps) {
	for p := range other {
		d[p] = struct{}{}
	}
}

// Has reports membership.
func (d Deps) Has(path string) bool {
	_, ok := d[path]
	return ok
}

// Sorted returns the members in lexical order.
func (d Deps) Sorted() []string {
	out := make([]string, 0, len(d))
	for p := range d {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// DependencyGraph holds the forward index (page -> deps) and the reverse
// index (dep -> pages). After every mutation, page P is in reverse[D] if and
// only if D is in forward[P].
type DependencyGraph struct {
	mutex   sync.RWMutex
	forward map[string]Deps
	reverse map[string]Deps
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		forward: make(map[string]Deps),
		reverse: make(map[string]Deps),
	}
}

// SetDependencies replaces the dependency set of page. The page itself is
// not required to be among deps.
func (g *DependencyGraph) SetDependencies(page string, deps Deps) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.unlinkPage(page)

	fwd := make(Deps, len(deps))
	for d := range deps {
		fwd[d] = struct{}{}
		rev, ok := g.reverse[d]
		if !ok {
			rev = make(Deps)
			g.reverse[d] = rev
		}
		rev[page] = struct{}{}
	}
	g.forward[page] = fwd
}

// DependentsOf returns the pages whose dependency set contains path, in
// lexical order. Unknown paths yield an empty slice.
func (g *DependencyGraph) DependentsOf(path string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.reverse[path].Sorted()
}

// DependenciesOf returns the dependency set of page in lexical order.
func (g *DependencyGraph) DependenciesOf(page string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.forward[page].Sorted()
}

// HasPage reports whether page has a forward entry.
func (g *DependencyGraph) HasPage(page string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	_, ok := g.forward[page]
	return ok
}

// Pages returns every tracked page in lexical order.
func (g *DependencyGraph) Pages() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	pages := make([]string, 0, len(g.forward))
	for p := range g.forward {
		pages = append(pages, p)
	}
	sort.Strings(pages)
	return pages
}

// Dependencies returns every path that at least one page depends on.
func (g *DependencyGraph) Dependencies() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	deps := make([]string, 0, len(g.reverse))
	for d := range g.reverse {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// RemovePage drops the forward entry of page and its membership in every
// reverse set.
func (g *DependencyGraph) RemovePage(page string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.unlinkPage(page)
	delete(g.forward, page)
}

// RemoveDependency drops path's reverse entry, removes path from every page
// that listed it, and returns those pages in lexical order.
func (g *DependencyGraph) RemoveDependency(path string) []string {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	pages := g.reverse[path].Sorted()
	for _, page := range pages {
		delete(g.forward[page], path)
	}
	delete(g.reverse, path)
	return pages
}

// Clear empties both indices.
func (g *DependencyGraph) Clear() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.forward = make(map[string]Deps)
	g.reverse = make(map[string]Deps)
}

// Snapshot returns a copy of the forward index with sorted dependency lists.
func (g *DependencyGraph) Snapshot() map[string][]string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make(map[string][]string, len(g.forward))
	for page, deps := range g.forward {
		out[page] = deps.Sorted()
	}
	return out
}

// Reverse returns a copy of the reverse index with sorted page lists.
func (g *DependencyGraph) Reverse() map[string][]string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make(map[string][]string, len(g.reverse))
	for dep, pages := range g.reverse {
		out[dep] = pages.Sorted()
	}
	return out
}

// unlinkPage removes page from the reverse sets of its current deps.
// Caller holds the write lock.
func (g *DependencyGraph) unlinkPage(page string) {
	for d := range g.forward[page] {
		rev := g.reverse[d]
		delete(rev, page)
		if len(rev) == 0 {
			delete(g.reverse, d)
		}
	}
}
