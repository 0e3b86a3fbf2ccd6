package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codebase-inheritors/internal/classindex"
	"github.com/DeusData/codebase-inheritors/internal/hierarchy"
	"github.com/DeusData/codebase-inheritors/internal/progress"
	"github.com/DeusData/codebase-inheritors/internal/query"
	"github.com/DeusData/codebase-inheritors/internal/store"
)

// Search outcomes reported by find_inheritors.
const (
	statusCompleted = "completed"
	statusTruncated = "truncated"
	statusCancelled = "cancelled"
)

// inheritorsResult is the find_inheritors response.
type inheritorsResult struct {
	Status     string      `json:"status"`
	Scope      string      `json:"scope"`
	Bases      []classInfo `json:"bases"`
	Count      int         `json:"count"`
	Inheritors []classInfo `json:"inheritors"`
	// Searched lists the progress labels of the searches that ran.
	Searched []string `json:"searched"`
}

func (s *Server) handleFindInheritors(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project := getStringArg(args, "project")
	qn := getStringArg(args, "qualified_name")
	if project == "" || qn == "" {
		return errResult("project and qualified_name are required"), nil
	}
	st, err := s.resolveStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	ix := classindex.New(st)
	global, err := ix.GlobalScopeFor(ctx, project)
	if err != nil {
		return errResult(err.Error()), nil
	}
	var scope hierarchy.Scope = global
	switch getStringArg(args, "scope") {
	case "", "global":
	case "local":
		files := getStringSliceArg(args, "files")
		if len(files) == 0 {
			return errResult("scope 'local' requires files"), nil
		}
		scope = classindex.LocalScopeFor(project, files...)
	default:
		return errResult("scope must be 'global' or 'local'"), nil
	}

	bases, err := ix.LookupAll(ctx, qn, global.Roots()...)
	if err != nil {
		return errResult(fmt.Sprintf("lookup: %v", err)), nil
	}
	if len(bases) == 0 {
		return errResult(fmt.Sprintf("class not found: %s (project %s)", qn, project)), nil
	}

	deep := getBoolArg(args, "deep", s.cfg.EffectiveCheckDeep())
	verify := getBoolArg(args, "check_inheritance", s.cfg.EffectiveCheckInheritance())
	limit := getIntArg(args, "limit", s.cfg.EffectiveLimit())
	if ms := getIntArg(args, "timeout_ms", 0); ms > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	params := make([]hierarchy.Parameters, len(bases))
	for i, b := range bases {
		params[i] = hierarchy.NewParameters(b, scope, deep, verify)
	}
	engine := hierarchy.NewEngine(ix, hierarchy.WithVerifier(ix.Verifier()), hierarchy.WithLogger(s.logger))
	rec := progress.NewRecorderFor(progress.FromContext(ctx))
	ctx = progress.WithIndicator(ctx, rec)

	out := &inheritorsResult{Scope: scope.String(), Status: statusCompleted}
	for _, b := range bases {
		out.Bases = append(out.Bases, toClassInfo(b))
	}

	var found []*hierarchy.Class
	if limit <= 0 {
		found, err = searchAll(ctx, engine, params)
	} else {
		var truncated bool
		found, truncated, err = searchLimited(ctx, engine, params, limit)
		if truncated {
			out.Status = statusTruncated
		}
	}
	switch {
	case errors.Is(err, progress.ErrCancelled):
		s.logger.Info("find_inheritors.cancelled", "base", qn, "project", project, "partial", len(found))
		out.Status = statusCancelled
	case err != nil:
		return errResult(fmt.Sprintf("search: %v", err)), nil
	}

	out.Inheritors = make([]classInfo, 0, len(found))
	for _, c := range found {
		out.Inheritors = append(out.Inheritors, toClassInfo(c))
	}
	out.Count = len(out.Inheritors)
	out.Searched = rec.History()
	return jsonResult(out), nil
}

// searchLimited consumes the searches in order and stops once limit distinct
// inheritors were produced. Partial results are returned with a cancellation.
func searchLimited(ctx context.Context, e *hierarchy.Engine, params []hierarchy.Parameters, limit int) ([]*hierarchy.Class, bool, error) {
	qs := make([]query.Query[*hierarchy.Class], len(params))
	for i, p := range params {
		qs[i] = e.Inheritors(p)
	}
	seen := make(map[int64]bool)
	q := query.Filter(query.Concat(qs...), func(c *hierarchy.Class) bool {
		if seen[c.ID] {
			return false
		}
		seen[c.ID] = true
		return true
	})

	var (
		out       []*hierarchy.Class
		truncated bool
	)
	_, err := q.ForEach(ctx, func(c *hierarchy.Class) bool {
		if len(out) >= limit {
			truncated = true
			return false
		}
		out = append(out, c)
		return true
	})
	return out, truncated, err
}

// searchAll runs every search concurrently and merges the results,
// dropping declarations reached from more than one base. On error the
// classes found so far are returned with it.
func searchAll(ctx context.Context, e *hierarchy.Engine, params []hierarchy.Parameters) ([]*hierarchy.Class, error) {
	groups, err := e.SearchAll(ctx, params)
	seen := make(map[int64]bool)
	var out []*hierarchy.Class
	for _, g := range groups {
		for _, c := range g {
			if !seen[c.ID] {
				seen[c.ID] = true
				out = append(out, c)
			}
		}
	}
	return out, err
}

// hierarchyNode is one visited class of get_type_hierarchy.
type hierarchyNode struct {
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Project       string `json:"project"`
	Label         string `json:"label"`
	FilePath      string `json:"file_path,omitempty"`
	Hop           int    `json:"hop"`
}

type hierarchyEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

func (s *Server) handleGetTypeHierarchy(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project := getStringArg(args, "project")
	qn := getStringArg(args, "qualified_name")
	if project == "" || qn == "" {
		return errResult("project and qualified_name are required"), nil
	}
	direction := getStringArg(args, "direction")
	if direction == "" {
		direction = store.DirectionUp
	}
	depth := max(1, min(getIntArg(args, "depth", 3), 10))

	st, err := s.resolveStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	start, err := st.FindNodeByQN(project, qn)
	if err != nil {
		return errResult(fmt.Sprintf("lookup: %v", err)), nil
	}
	if start == nil {
		return errResult(fmt.Sprintf("class not found: %s (project %s)", qn, project)), nil
	}

	res, err := st.HierarchyBFS(ctx, start, direction, depth, 200)
	if err != nil {
		return errResult(err.Error()), nil
	}
	nodes := make([]hierarchyNode, 0, len(res.Visited))
	for _, h := range res.Visited {
		nodes = append(nodes, hierarchyNode{
			Name:          h.Node.Name,
			QualifiedName: h.Node.QualifiedName,
			Project:       h.Node.Project,
			Label:         h.Node.Label,
			FilePath:      h.Node.FilePath,
			Hop:           h.Hop,
		})
	}
	edges := make([]hierarchyEdge, 0, len(res.Edges))
	for _, e := range res.Edges {
		edges = append(edges, hierarchyEdge{From: e.From, To: e.To, Type: e.Type})
	}
	return jsonResult(map[string]any{
		"root":      qn,
		"direction": direction,
		"depth":     depth,
		"nodes":     nodes,
		"edges":     edges,
	}), nil
}
