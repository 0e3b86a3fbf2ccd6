package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codebase-inheritors/internal/store"
)

func (s *Server) handleListProjects(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	st, err := s.resolveStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	projects, err := st.ListProjects()
	if err != nil {
		return errResult(fmt.Sprintf("list projects: %v", err)), nil
	}

	type projectInfo struct {
		Name         string   `json:"name"`
		RootPath     string   `json:"root_path"`
		LoadedAt     string   `json:"loaded_at"`
		Dependencies []string `json:"dependencies"`
		Nodes        int      `json:"nodes"`
		Edges        int      `json:"edges"`
	}

	result := make([]projectInfo, 0, len(projects))
	for _, p := range projects {
		nc, _ := st.CountNodes(p.Name)
		ec, _ := st.CountEdges(p.Name)
		deps := p.Dependencies
		if deps == nil {
			deps = []string{}
		}
		result = append(result, projectInfo{
			Name:         p.Name,
			RootPath:     p.RootPath,
			LoadedAt:     p.IndexedAt,
			Dependencies: deps,
			Nodes:        nc,
			Edges:        ec,
		})
	}

	return jsonResult(result), nil
}

func (s *Server) handleDeleteProject(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	name := getStringArg(args, "project_name")
	if name == "" {
		return errResult("project_name is required"), nil
	}
	st, err := s.resolveStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	proj, _ := st.GetProject(name)
	if proj == nil {
		return errResult(fmt.Sprintf("project not found: %s", name)), nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	// nodes, edges and file hashes cascade from the project row
	if err := st.DeleteProject(name); err != nil {
		return errResult(fmt.Sprintf("delete failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"deleted": name,
		"status":  "ok",
	}), nil
}

func (s *Server) handleGetHierarchySchema(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project := getStringArg(args, "project")
	if project == "" {
		return errResult("project is required"), nil
	}
	st, err := s.resolveStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if proj, _ := st.GetProject(project); proj == nil {
		return errResult(fmt.Sprintf("project not found: %s", project)), nil
	}

	schema, err := st.GetSchema(project)
	if err != nil {
		return errResult(fmt.Sprintf("schema: %v", err)), nil
	}

	type projectSchema struct {
		Project string            `json:"project"`
		Schema  *store.SchemaInfo `json:"schema"`
	}
	return jsonResult(projectSchema{Project: project, Schema: schema}), nil
}

func (s *Server) handleListWorkspaces(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaces, err := s.router.ListWorkspaces()
	if err != nil {
		return errResult(fmt.Sprintf("list workspaces: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"dir":        s.router.Dir(),
		"workspaces": workspaces,
	}), nil
}
