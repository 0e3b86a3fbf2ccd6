package hierarchy

import (
	"context"
	"fmt"
	"strings"
)

// Scope decides which classes are visible to a search.
type Scope interface {
	Contains(c *Class) bool
	String() string
}

type fileKey struct {
	root string
	path string
}

// LocalScope is a closed set of files and classes. It performs no
// canonicalization.
type LocalScope struct {
	files   map[fileKey]struct{}
	classes map[int64]struct{}
}

// NewLocalScope returns an empty local scope.
func NewLocalScope() *LocalScope {
	return &LocalScope{
		files:   make(map[fileKey]struct{}),
		classes: make(map[int64]struct{}),
	}
}

// WithFile adds every class declared in path under root.
func (s *LocalScope) WithFile(root, path string) *LocalScope {
	s.files[fileKey{root: root, path: path}] = struct{}{}
	return s
}

// WithClass adds one declaration.
func (s *LocalScope) WithClass(c *Class) *LocalScope {
	s.classes[c.ID] = struct{}{}
	return s
}

// Contains reports whether c is one of the scope's classes or declared in one
// of its files.
func (s *LocalScope) Contains(c *Class) bool {
	if c == nil {
		return false
	}
	if _, ok := s.classes[c.ID]; ok {
		return true
	}
	_, ok := s.files[fileKey{root: c.Root, path: c.FilePath}]
	return ok
}

func (s *LocalScope) String() string {
	return fmt.Sprintf("local(files=%d, classes=%d)", len(s.files), len(s.classes))
}

// GlobalScope covers a project and its dependencies, given as an ordered list
// of roots. An empty root list covers every root.
type GlobalScope struct {
	roots    []string
	order    map[string]int
	resolver CanonicalResolver
}

// NewGlobalScope returns a scope over roots, in priority order. resolver may
// be nil, in which case no canonicalization happens.
func NewGlobalScope(resolver CanonicalResolver, roots ...string) *GlobalScope {
	g := &GlobalScope{
		roots:    append([]string(nil), roots...),
		order:    make(map[string]int, len(roots)),
		resolver: resolver,
	}
	for i, r := range roots {
		if _, dup := g.order[r]; !dup {
			g.order[r] = i
		}
	}
	return g
}

// Roots returns the scope's roots in priority order.
func (g *GlobalScope) Roots() []string {
	return append([]string(nil), g.roots...)
}

// Priority returns the position of root in the scope, lower first.
func (g *GlobalScope) Priority(root string) (int, bool) {
	if len(g.roots) == 0 {
		return 0, true
	}
	p, ok := g.order[root]
	return p, ok
}

// Contains reports whether c is declared in one of the scope's roots.
func (g *GlobalScope) Contains(c *Class) bool {
	if c == nil {
		return false
	}
	_, ok := g.Priority(c.Root)
	return ok
}

func (g *GlobalScope) String() string {
	if len(g.roots) == 0 {
		return "global(*)"
	}
	return "global(" + strings.Join(g.roots, ",") + ")"
}

// InScope reports whether c is visible in scope.
func InScope(scope Scope, c *Class) bool {
	return scope.Contains(c)
}

// Canonicalize returns the declaration scope treats as the representative of
// c's qualified name. It returns nil for local scopes, for classes without a
// qualified name and when the resolver knows no representative.
func Canonicalize(ctx context.Context, scope Scope, c *Class) (*Class, error) {
	g, ok := scope.(*GlobalScope)
	if !ok || g.resolver == nil || c == nil || c.QualifiedName == "" {
		return nil, nil
	}
	return g.resolver.ResolveCanonical(ctx, c.QualifiedName, g)
}
