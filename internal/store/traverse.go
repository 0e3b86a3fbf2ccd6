package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Traversal directions over INHERITS/IMPLEMENTS edges.
const (
	DirectionUp   = "up"   // toward supertypes
	DirectionDown = "down" // toward subtypes
)

// TraverseResult holds BFS traversal results.
type TraverseResult struct {
	Root    *Node
	Visited []*NodeHop
	Edges   []EdgeInfo
}

// NodeHop is a node with its BFS hop distance.
type NodeHop struct {
	Node *Node
	Hop  int
}

// EdgeInfo is a simplified edge for output. From is always the subtype.
type EdgeInfo struct {
	From string
	To   string
	Type string
}

type bfsQueue struct {
	node *Node
	hop  int
}

// HierarchyBFS walks the raw type-hierarchy edges breadth-first from start.
// It follows stored edges as-is: no scope filtering, verification or
// canonicalization is applied. maxDepth caps the depth, maxResults the
// number of visited nodes.
func (s *Store) HierarchyBFS(ctx context.Context, start *Node, direction string, maxDepth, maxResults int) (*TraverseResult, error) {
	if direction != DirectionUp && direction != DirectionDown {
		return nil, fmt.Errorf("invalid direction %q", direction)
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxResults <= 0 {
		maxResults = 200
	}

	result := &TraverseResult{Root: start}
	visited := map[int64]bool{start.ID: true}
	queue := []bfsQueue{{start, 0}}

	for len(queue) > 0 && len(result.Visited) < maxResults {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := queue[0]
		queue = queue[1:]

		if item.hop >= maxDepth {
			continue
		}

		steps, err := s.hierarchySteps(item.node.ID, direction)
		if err != nil {
			return nil, err
		}

		for _, st := range steps {
			n := st.node
			if direction == DirectionUp {
				result.Edges = append(result.Edges, EdgeInfo{From: item.node.QualifiedName, To: n.QualifiedName, Type: st.edgeType})
			} else {
				result.Edges = append(result.Edges, EdgeInfo{From: n.QualifiedName, To: item.node.QualifiedName, Type: st.edgeType})
			}
			if visited[n.ID] {
				continue
			}
			visited[n.ID] = true
			result.Visited = append(result.Visited, &NodeHop{Node: n, Hop: item.hop + 1})
			queue = append(queue, bfsQueue{n, item.hop + 1})
			if len(result.Visited) >= maxResults {
				break
			}
		}
	}

	return result, nil
}

type hierarchyStep struct {
	node     *Node
	edgeType string
}

// hierarchySteps returns the neighbours of nodeID one INHERITS or IMPLEMENTS
// edge away, in edge insertion order. A pair joined by both edge types
// appears once per edge.
func (s *Store) hierarchySteps(nodeID int64, direction string) ([]hierarchyStep, error) {
	var edges []*Edge
	for _, typ := range []string{EdgeInherits, EdgeImplements} {
		var batch []*Edge
		var err error
		if direction == DirectionUp {
			batch, err = s.FindEdgesBySourceAndType(nodeID, typ)
		} else {
			batch, err = s.FindEdgesByTargetAndType(nodeID, typ)
		}
		if err != nil {
			return nil, err
		}
		edges = append(edges, batch...)
	}
	slices.SortFunc(edges, func(a, b *Edge) int { return cmp.Compare(a.ID, b.ID) })

	steps := make([]hierarchyStep, 0, len(edges))
	for _, e := range edges {
		other := e.TargetID
		if direction == DirectionDown {
			other = e.SourceID
		}
		n, err := s.FindNodeByID(other)
		if err != nil {
			return nil, fmt.Errorf("edge %d endpoint: %w", e.ID, err)
		}
		if n == nil {
			continue
		}
		steps = append(steps, hierarchyStep{node: n, edgeType: e.Type})
	}
	return steps, nil
}
