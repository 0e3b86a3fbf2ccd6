package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codebase-inheritors/internal/config"
	"github.com/DeusData/codebase-inheritors/internal/hierarchy"
	"github.com/DeusData/codebase-inheritors/internal/store"
)

// DefaultWorkspace is used when a tool call names no workspace.
const DefaultWorkspace = "default"

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp    *mcp.Server
	router *store.StoreRouter
	cfg    *config.Config
	logger *slog.Logger

	// loadMu serializes manifest loads per process
	loadMu   sync.Mutex
	handlers map[string]toolHandler
}

type toolHandler = func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

// NewServer creates a new MCP server with all tools registered.
func NewServer(r *store.StoreRouter, cfg *config.Config, version string) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	srv := &Server{
		router:   r,
		cfg:      cfg,
		logger:   slog.Default(),
		handlers: make(map[string]toolHandler),
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "codebase-inheritors",
				Version: version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// addTool registers t on the MCP server and keeps h for direct calls.
func (s *Server) addTool(t *mcp.Tool, h toolHandler) {
	s.handlers[t.Name] = h
	s.mcp.AddTool(t, h)
}

// CallTool invokes a registered tool without an MCP session. The CLI uses it
// to share the tool implementations.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	h, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return h(ctx, &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: name, Arguments: raw}})
}

// ToolNames returns the registered tool names, sorted.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Server) registerTools() {
	// 1. load_hierarchy
	s.addTool(&mcp.Tool{
		Name:        "load_hierarchy",
		Description: "Load hierarchy manifests (YAML files listing projects, their dependencies and class declarations with supertypes) into a workspace. Unchanged manifests are skipped via content hashing.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {
					"type": "string",
					"description": "Workspace database name (default 'default')"
				},
				"paths": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Manifest files or directories to scan for *.yaml / *.yml"
				},
				"keep_stale_edges": {
					"type": "boolean",
					"description": "Keep the previous supertype edges of reloaded projects instead of rebuilding them (default false)"
				}
			},
			"required": ["paths"]
		}`),
	}, s.handleLoadHierarchy)

	// 2. find_inheritors
	s.addTool(&mcp.Tool{
		Name:        "find_inheritors",
		Description: "Find every class inheriting from a base class or interface, directly or transitively. Every declaration of the base name visible from the project is searched. Results are deduplicated by declaration; a cancelled or timed-out search reports status 'cancelled', never an empty result.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {"type": "string", "description": "Workspace database name (default 'default')"},
				"project": {"type": "string", "description": "Project whose view of the hierarchy is searched"},
				"qualified_name": {"type": "string", "description": "Qualified name of the base class (e.g. 'com.acme.Widget')"},
				"scope": {
					"type": "string",
					"description": "'global' (project and its dependencies, one declaration per qualified name) or 'local' (only the given files)",
					"enum": ["global", "local"]
				},
				"files": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Files of the project making up a local scope"
				},
				"deep": {"type": "boolean", "description": "Include transitive inheritors (default from config, true)"},
				"check_inheritance": {"type": "boolean", "description": "Re-verify every index candidate against its declared supertypes (default from config, false)"},
				"limit": {"type": "integer", "description": "Max results (default from config, 500)"},
				"timeout_ms": {"type": "integer", "description": "Cancel the search after this many milliseconds (optional)"}
			},
			"required": ["project", "qualified_name"]
		}`),
	}, s.handleFindInheritors)

	// 3. get_type_hierarchy
	s.addTool(&mcp.Tool{
		Name:        "get_type_hierarchy",
		Description: "Walk the stored supertype edges from a class breadth-first, up toward its supertypes or down toward its subtypes. Raw index view: no verification, scope filtering or deduplication of shadowed declarations.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {"type": "string", "description": "Workspace database name (default 'default')"},
				"project": {"type": "string", "description": "Project declaring the class"},
				"qualified_name": {"type": "string", "description": "Qualified name of the class"},
				"direction": {"type": "string", "enum": ["up", "down"], "description": "Traversal direction (default 'up')"},
				"depth": {"type": "integer", "description": "Maximum BFS depth (1-10, default 3)"}
			},
			"required": ["project", "qualified_name"]
		}`),
	}, s.handleGetTypeHierarchy)

	// 4. search_classes
	s.addTool(&mcp.Tool{
		Name:        "search_classes",
		Description: "Search the classes, interfaces, enums and types of a project with structured filters: name regex, file glob, kind and number of direct subtypes. Returns matching classes with their direct subtype/supertype counts.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {"type": "string", "description": "Workspace database name (default 'default')"},
				"project": {"type": "string", "description": "Project to search"},
				"label": {"type": "string", "enum": ["Class", "Interface", "Enum", "Type"], "description": "Kind filter"},
				"name_pattern": {"type": "string", "description": "Regex over name or qualified name (e.g. '.*Handler')"},
				"file_pattern": {"type": "string", "description": "Glob over file path (e.g. 'com/acme/**')"},
				"min_subtypes": {"type": "integer", "description": "Minimum number of direct subtypes"},
				"max_subtypes": {"type": "integer", "description": "Maximum number of direct subtypes (0 finds leaves)"},
				"limit": {"type": "integer", "description": "Max results (default 50, max 200)"},
				"offset": {"type": "integer", "description": "Skip this many results (pagination)"}
			},
			"required": ["project"]
		}`),
	}, s.handleSearchClasses)

	// 5. get_hierarchy_schema
	s.addTool(&mcp.Tool{
		Name:        "get_hierarchy_schema",
		Description: "Return statistics for a loaded project: class kind counts, edge type counts, final and anonymous class counts and sample class names.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {"type": "string", "description": "Workspace database name (default 'default')"},
				"project": {"type": "string", "description": "Project name"}
			},
			"required": ["project"]
		}`),
	}, s.handleGetHierarchySchema)

	// 6. list_projects
	s.addTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List the projects loaded in a workspace with their dependencies, loaded_at timestamp and node/edge counts.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {"type": "string", "description": "Workspace database name (default 'default')"}
			}
		}`),
	}, s.handleListProjects)

	// 7. delete_project
	s.addTool(&mcp.Tool{
		Name:        "delete_project",
		Description: "Delete a loaded project and all its classes, edges and manifest hashes. Edges from other projects into it are removed too. This action is irreversible.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {"type": "string", "description": "Workspace database name (default 'default')"},
				"project_name": {"type": "string", "description": "Name of the project to delete"}
			},
			"required": ["project_name"]
		}`),
	}, s.handleDeleteProject)

	// 8. list_workspaces
	s.addTool(&mcp.Tool{
		Name:        "list_workspaces",
		Description: "List workspace databases and the projects each one holds.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListWorkspaces)

	// 9. scan_java_sources
	s.addTool(&mcp.Tool{
		Name:        "scan_java_sources",
		Description: "Parse the .java files under a source directory with tree-sitter, write the project's hierarchy manifest and (by default) load it into the workspace. Nested, anonymous and enum-constant classes are included.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"workspace": {"type": "string", "description": "Workspace database name (default 'default')"},
				"source_dir": {"type": "string", "description": "Root of the Java sources (package directories below it)"},
				"project": {"type": "string", "description": "Project name recorded in the manifest"},
				"dependencies": {"type": "array", "items": {"type": "string"}, "description": "Projects this project depends on"},
				"manifest_path": {"type": "string", "description": "Where to write the manifest (default <store dir>/manifests/<workspace>/<project>.yaml)"},
				"load": {"type": "boolean", "description": "Load the written manifest (default true)"}
			},
			"required": ["source_dir", "project"]
		}`),
	}, s.handleScanJavaSources)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getStringSliceArg extracts a string array argument, skipping non-strings.
func getStringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
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

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

// getBoolArg extracts a boolean argument with a default value.
func getBoolArg(args map[string]any, key string, defaultVal bool) bool {
	b, ok := args[key].(bool)
	if !ok {
		return defaultVal
	}
	return b
}

// resolveStore opens the workspace named in args.
func (s *Server) resolveStore(args map[string]any) (*store.Store, error) {
	ws := getStringArg(args, "workspace")
	if ws == "" {
		ws = DefaultWorkspace
	}
	st, err := s.router.ForWorkspace(ws)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	return st, nil
}

// classInfo is the JSON form of a class handle.
type classInfo struct {
	ID            int64  `json:"id"`
	Project       string `json:"project"`
	Name          string `json:"name,omitempty"`
	QualifiedName string `json:"qualified_name"`
	Kind          string `json:"kind"`
	FilePath      string `json:"file_path,omitempty"`
	Final         bool   `json:"final,omitempty"`
	Anonymous     bool   `json:"anonymous,omitempty"`
}

func toClassInfo(c *hierarchy.Class) classInfo {
	return classInfo{
		ID:            c.ID,
		Project:       c.Root,
		Name:          c.Name,
		QualifiedName: c.QualifiedName,
		Kind:          c.Kind,
		FilePath:      c.FilePath,
		Final:         c.Final,
		Anonymous:     c.Anonymous,
	}
}
