// Package classindex serves the hierarchy search from the SQLite symbol
// table: direct-inheritor lookups over INHERITS/IMPLEMENTS edges and
// canonical resolution of qualified names across projects.
package classindex

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/DeusData/codebase-inheritors/internal/fqn"
	"github.com/DeusData/codebase-inheritors/internal/hierarchy"
	"github.com/DeusData/codebase-inheritors/internal/query"
	"github.com/DeusData/codebase-inheritors/internal/store"
)

// Property keys on class nodes.
const (
	PropBaseClasses = "base_classes"
	PropFinal       = "is_final"
	PropAnonymous   = "is_anonymous"
	PropImports     = "imports"
)

// ErrUnknownProject is returned when a project is not loaded in the store.
var ErrUnknownProject = errors.New("unknown project")

// Index implements hierarchy.Index and hierarchy.CanonicalResolver over a
// store.
type Index struct {
	store *store.Store
}

// New returns an Index reading from s.
func New(s *store.Store) *Index {
	return &Index{store: s}
}

// DirectInheritors implements hierarchy.Index. The lookup runs when the
// returned query is consumed, once per consumption.
func (ix *Index) DirectInheritors(_ context.Context, c *hierarchy.Class) query.Query[*hierarchy.Class] {
	return query.New(func(ctx context.Context, p query.Processor[*hierarchy.Class]) (bool, error) {
		nodes, err := ix.store.FindDirectInheritors(ctx, c.ID)
		if err != nil {
			return false, err
		}
		for _, n := range nodes {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			cls := ToClass(n)
			if cls == nil {
				continue
			}
			if !p(cls) {
				return false, nil
			}
		}
		return true, nil
	})
}

// ResolveCanonical implements hierarchy.CanonicalResolver: among the
// declarations of qualifiedName inside scope, the one from the earliest root
// wins. A scope without roots prefers projects in name order.
func (ix *Index) ResolveCanonical(ctx context.Context, qualifiedName string, scope *hierarchy.GlobalScope) (*hierarchy.Class, error) {
	nodes, err := ix.store.FindNodesByQN(ctx, qualifiedName, scope.Roots())
	if err != nil {
		return nil, err
	}
	var (
		best     *store.Node
		bestPrio int
	)
	for _, n := range nodes {
		if ToClass(n) == nil {
			continue
		}
		prio, ok := scope.Priority(n.Project)
		if !ok {
			continue
		}
		if best == nil || prio < bestPrio {
			best, bestPrio = n, prio
		}
	}
	if best == nil {
		return nil, nil
	}
	return ToClass(best), nil
}

// Lookup returns the class declared as qualifiedName in project, or nil.
func (ix *Index) Lookup(_ context.Context, project, qualifiedName string) (*hierarchy.Class, error) {
	n, err := ix.store.FindNodeByQN(project, qualifiedName)
	if err != nil || n == nil {
		return nil, err
	}
	return ToClass(n), nil
}

// LookupAll returns every class declaration of qualifiedName in projects (all
// projects when none are given), ordered by project then ID.
func (ix *Index) LookupAll(ctx context.Context, qualifiedName string, projects ...string) ([]*hierarchy.Class, error) {
	nodes, err := ix.store.FindNodesByQN(ctx, qualifiedName, projects)
	if err != nil {
		return nil, err
	}
	var out []*hierarchy.Class
	for _, n := range nodes {
		if c := ToClass(n); c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// Roots returns project followed by its transitive dependencies,
// breadth-first in declaration order.
func (ix *Index) Roots(_ context.Context, project string) ([]string, error) {
	p, err := ix.store.GetProject(project)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, project)
	}
	roots := []string{project}
	queue := slices.Clone(p.Dependencies)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if slices.Contains(roots, name) {
			continue
		}
		roots = append(roots, name)
		deps, err := ix.store.ProjectDependencies(name)
		if err != nil {
			return nil, err
		}
		queue = append(queue, deps...)
	}
	return roots, nil
}

// GlobalScopeFor returns the global scope of project: the project itself and
// everything it depends on, with this Index as canonical resolver.
func (ix *Index) GlobalScopeFor(ctx context.Context, project string) (*hierarchy.GlobalScope, error) {
	roots, err := ix.Roots(ctx, project)
	if err != nil {
		return nil, err
	}
	return hierarchy.NewGlobalScope(ix, roots...), nil
}

// LocalScopeFor returns a local scope covering the given files of project.
func LocalScopeFor(project string, files ...string) *hierarchy.LocalScope {
	s := hierarchy.NewLocalScope()
	for _, f := range files {
		s = s.WithFile(project, f)
	}
	return s
}

// Declares reports whether project declares a class named qualifiedName.
// Lookup errors count as "not declared".
func (ix *Index) Declares(project, qualifiedName string) bool {
	n, err := ix.store.FindNodeByQN(project, qualifiedName)
	return err == nil && n != nil
}

// Verifier returns the declared-supertypes verifier with same-package
// shadowing resolved against this index.
func (ix *Index) Verifier() hierarchy.DeclaredSupertypes {
	return hierarchy.DeclaredSupertypes{Declares: ix.Declares}
}

// ToClass converts a store node to a class handle. Nodes that are not
// class-like yield nil.
func ToClass(n *store.Node) *hierarchy.Class {
	if n == nil || !slices.Contains(store.ClassLabels, n.Label) {
		return nil
	}
	return &hierarchy.Class{
		ID:            n.ID,
		Root:          n.Project,
		Name:          n.Name,
		QualifiedName: n.QualifiedName,
		FilePath:      n.FilePath,
		Kind:          n.Label,
		Anonymous:     boolProp(n.Properties, PropAnonymous),
		Final:         boolProp(n.Properties, PropFinal),
		Supertypes:    stringsProp(n.Properties, PropBaseClasses),
		Package:       fqn.Prefix(n.QualifiedName),
		Imports:       stringsProp(n.Properties, PropImports),
	}
}

func boolProp(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func stringsProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
