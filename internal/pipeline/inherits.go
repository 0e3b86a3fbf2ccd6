package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/DeusData/codebase-inheritors/internal/classindex"
	"github.com/DeusData/codebase-inheritors/internal/fqn"
	"github.com/DeusData/codebase-inheritors/internal/store"
)

// passInherits creates INHERITS/IMPLEMENTS edges from the classes of project
// to their direct supertypes. Reads the base_classes property and resolves
// each name in the project first, then in its dependencies. Unless stale
// edges are kept, the project's previous edges are dropped first.
func (p *Pipeline) passInherits(project string) (int, error) {
	slog.Info("pass.inherits", "project", project)

	if !p.KeepStaleEdges {
		for _, typ := range []string{store.EdgeInherits, store.EdgeImplements} {
			if err := p.Store.DeleteEdgesByType(project, typ); err != nil {
				return 0, fmt.Errorf("clear %s edges: %w", typ, err)
			}
		}
	}

	roots, err := classindex.New(p.Store).Roots(p.ctx, project)
	if err != nil {
		return 0, err
	}
	registry := NewClassRegistry()
	var own []*store.Node
	for _, root := range roots {
		for _, label := range store.ClassLabels {
			nodes, err := p.Store.FindNodesByLabel(root, label)
			if err != nil {
				return 0, fmt.Errorf("load %s classes: %w", root, err)
			}
			for _, n := range nodes {
				registry.Register(n)
			}
			if root == project {
				own = append(own, nodes...)
			}
		}
	}

	var edges []*store.Edge
	unresolved := 0
	for _, n := range own {
		bases := stringList(n.Properties[classindex.PropBaseClasses])
		imports := stringList(n.Properties[classindex.PropImports])
		pkg := fqn.Prefix(n.QualifiedName)
		for _, baseName := range bases {
			target, ok := registry.Resolve(baseName, pkg, imports, roots)
			if !ok || target.ID == n.ID {
				unresolved++
				continue
			}
			edges = append(edges, &store.Edge{
				Project:  project,
				SourceID: n.ID,
				TargetID: target.ID,
				Type:     edgeType(n.Label, target.Label),
			})
		}
	}
	if err := p.Store.InsertEdgeBatch(edges); err != nil {
		return 0, err
	}

	slog.Info("pass.inherits.done", "project", project, "edges", len(edges), "unresolved", unresolved)
	return len(edges), nil
}

// edgeType picks IMPLEMENTS for a non-interface naming an interface.
func edgeType(sourceLabel, targetLabel string) string {
	if targetLabel == "Interface" && sourceLabel != "Interface" {
		return store.EdgeImplements
	}
	return store.EdgeInherits
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
