package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	indexPage = "/site/src/index.html"
	aboutPage = "/site/src/about.html"
	header    = "/site/src/partials/header.html"
	mainCSS   = "/site/src/assets/css/main.css"
	baseCSS   = "/site/src/assets/css/base.css"
	appJS     = "/site/src/assets/js/app.js"
)

func assertSymmetric(t *testing.T, g *DependencyGraph) {
	t.Helper()
	fwd := g.Snapshot()
	rev := g.Reverse()

	for page, deps := range fwd {
		for _, d := range deps {
			assert.Contains(t, rev[d], page, "reverse[%s] missing %s", d, page)
		}
	}
	for dep, pages := range rev {
		for _, p := range pages {
			assert.Contains(t, fwd[p], dep, "forward[%s] missing %s", p, dep)
		}
	}
}

func TestSetDependencies(t *testing.T) {
	g := NewDependencyGraph()
	g.SetDependencies(indexPage, NewDeps(indexPage, header, mainCSS))
	g.SetDependencies(aboutPage, NewDeps(aboutPage, header))

	assert.Equal(t, []string{aboutPage, indexPage}, g.DependentsOf(header))
	assert.Equal(t, []string{indexPage}, g.DependentsOf(mainCSS))
	assert.Equal(t, []string{indexPage}, g.DependentsOf(indexPage))
	assertSymmetric(t, g)
}

func TestSetDependenciesReplaces(t *testing.T) {
	g := NewDependencyGraph()
	g.SetDependencies(indexPage, NewDeps(indexPage, header, mainCSS))
	g.SetDependencies(indexPage, NewDeps(indexPage, appJS))

	assert.Empty(t, g.DependentsOf(header))
	assert.Empty(t, g.DependentsOf(mainCSS))
	assert.Equal(t, []string{indexPage}, g.DependentsOf(appJS))
	assert.NotContains(t, g.Dependencies(), header)
	assertSymmetric(t, g)
}

func TestSetDependenciesCopiesInput(t *testing.T) {
	g := NewDependencyGraph()
	deps := NewDeps(indexPage)
	g.SetDependencies(indexPage, deps)
	deps.Add(header)

	assert.Equal(t, []string{indexPage}, g.DependenciesOf(indexPage))
}

func TestDependentsOfUnknown(t *testing.T) {
	g := NewDependencyGraph()
	assert.Empty(t, g.DependentsOf("/nope"))
	assert.Empty(t, g.DependenciesOf("/nope"))
	assert.False(t, g.HasPage("/nope"))
}

func TestRemovePage(t *testing.T) {
	g := NewDependencyGraph()
	g.SetDependencies(indexPage, NewDeps(indexPage, header))
	g.SetDependencies(aboutPage, NewDeps(aboutPage, header))

	g.RemovePage(indexPage)

	assert.False(t, g.HasPage(indexPage))
	assert.Equal(t, []string{aboutPage}, g.DependentsOf(header))
	assert.Empty(t, g.DependentsOf(indexPage))
	assertSymmetric(t, g)
}

func TestRemoveDependency(t *testing.T) {
	g := NewDependencyGraph()
	g.SetDependencies(indexPage, NewDeps(indexPage, header, baseCSS))
	g.SetDependencies(aboutPage, NewDeps(aboutPage, header))

	removed := g.RemoveDependency(header)

	assert.Equal(t, []string{aboutPage, indexPage}, removed)
	assert.Empty(t, g.DependentsOf(header))
	assert.Equal(t, []string{baseCSS, indexPage}, g.DependenciesOf(indexPage))
	assert.Equal(t, []string{aboutPage}, g.DependenciesOf(aboutPage))
	assertSymmetric(t, g)
}

func TestRemoveDependencyUnknown(t *testing.T) {
	g := NewDependencyGraph()
	assert.Empty(t, g.RemoveDependency("/nope"))
}

func TestClear(t *testing.T) {
	g := NewDependencyGraph()
	g.SetDependencies(indexPage, NewDeps(indexPage, header))
	g.Clear()

	assert.Empty(t, g.Pages())
	assert.Empty(t, g.Dependencies())
}

func TestDeps(t *testing.T) {
	d := NewDeps("b", "a")
	d.Merge(NewDeps("c", "a"))

	require.True(t, d.Has("c"))
	assert.Equal(t, []string{"a", "b", "c"}, d.Sorted())
}

func TestConcurrentAccess(t *testing.T) {
	g := NewDependencyGraph()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.SetDependencies(indexPage, NewDeps(indexPage, header))
		}()
		go func() {
			defer wg.Done()
			_ = g.DependentsOf(header)
			_ = g.Snapshot()
		}()
	}
	wg.Wait()

	assertSymmetric(t, g)
}
