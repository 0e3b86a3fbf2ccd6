package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/codebase-inheritors/internal/config"
	"github.com/DeusData/codebase-inheritors/internal/progress"
	"github.com/DeusData/codebase-inheritors/internal/store"
)

const libManifest = `
project: lib
files:
  - path: com/lib/Base.java
    classes:
      - name: Base
      - name: Shape
        kind: Interface
`

const appManifest = `
project: app
dependencies: [lib]
files:
  - path: com/app/Widget.java
    imports: [com.lib.Base]
    classes:
      - name: Widget
        supertypes: [Base, com.lib.Shape]
        nested:
          - name: Inner
            supertypes: [Widget]
        anonymous:
          - supertypes: [Widget]
  - path: com/app/Button.java
    classes:
      - name: Button
        final: true
        supertypes: [Widget]
`

type handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	r, err := store.NewRouterWithDir(t.TempDir(), store.DriverPure)
	require.NoError(t, err)
	t.Cleanup(r.CloseAll)
	return NewServer(r, config.Default(), "test")
}

func call(t *testing.T, ctx context.Context, h handler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	res, err := h(ctx, &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent")
	return tc.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var out T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	return out
}

// loadedServer returns a server whose default workspace holds lib and app.
func loadedServer(t *testing.T) *Server {
	t.Helper()
	s := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.yaml"), []byte(libManifest), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(appManifest), 0o600))

	res := call(t, context.Background(), s.handleLoadHierarchy, map[string]any{"paths": []string{dir}})
	loaded := decode[map[string]any](t, res)
	assert.ElementsMatch(t, []any{"lib", "app"}, loaded["loaded"])
	return s
}

func inheritorNames(r inheritorsResult) []string {
	out := make([]string, len(r.Inheritors))
	for i, c := range r.Inheritors {
		out[i] = c.QualifiedName
	}
	return out
}

func TestLoadHierarchySkipsUnchanged(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.yaml"), []byte(libManifest), 0o600))
	args := map[string]any{"paths": []string{dir}, "workspace": "ws1"}

	first := decode[map[string]any](t, call(t, context.Background(), s.handleLoadHierarchy, args))
	assert.Equal(t, []any{"lib"}, first["loaded"])

	second := decode[map[string]any](t, call(t, context.Background(), s.handleLoadHierarchy, args))
	assert.Empty(t, second["loaded"])
	assert.Equal(t, []any{"lib"}, second["skipped"])
}

func TestLoadHierarchyRequiresPaths(t *testing.T) {
	s := newTestServer(t)
	res := call(t, context.Background(), s.handleLoadHierarchy, map[string]any{})
	assert.True(t, res.IsError)
}

func TestFindInheritorsGlobal(t *testing.T) {
	s := loadedServer(t)
	res := call(t, context.Background(), s.handleFindInheritors, map[string]any{
		"project":        "app",
		"qualified_name": "com.lib.Base",
	})
	out := decode[inheritorsResult](t, res)
	assert.Equal(t, statusCompleted, out.Status)
	require.Len(t, out.Bases, 1)
	assert.Equal(t, "lib", out.Bases[0].Project)
	assert.ElementsMatch(t,
		[]string{"com.app.Widget", "com.app.Widget$Inner", "com.app.Widget$1", "com.app.Button"},
		inheritorNames(out))
	assert.Equal(t, 4, out.Count)

	for _, c := range out.Inheritors {
		switch c.QualifiedName {
		case "com.app.Widget$1":
			assert.True(t, c.Anonymous)
		case "com.app.Button":
			assert.True(t, c.Final)
		}
	}
}

func TestFindInheritorsOutsideDependentsIsEmpty(t *testing.T) {
	s := loadedServer(t)
	// lib does not see app: nothing in scope, but the search completed
	res := call(t, context.Background(), s.handleFindInheritors, map[string]any{
		"project":        "lib",
		"qualified_name": "com.lib.Base",
	})
	out := decode[inheritorsResult](t, res)
	assert.Equal(t, statusCompleted, out.Status)
	assert.Zero(t, out.Count)
	assert.NotNil(t, out.Inheritors)
}

func TestFindInheritorsShallow(t *testing.T) {
	s := loadedServer(t)
	res := call(t, context.Background(), s.handleFindInheritors, map[string]any{
		"project":        "app",
		"qualified_name": "com.lib.Base",
		"deep":           false,
	})
	out := decode[inheritorsResult](t, res)
	assert.Equal(t, []string{"com.app.Widget"}, inheritorNames(out))
}

func TestFindInheritorsLocalScope(t *testing.T) {
	s := loadedServer(t)
	res := call(t, context.Background(), s.handleFindInheritors, map[string]any{
		"project":        "app",
		"qualified_name": "com.lib.Base",
		"scope":          "local",
		"files":          []string{"com/app/Button.java"},
	})
	out := decode[inheritorsResult](t, res)
	assert.Equal(t, []string{"com.app.Button"}, inheritorNames(out))
	assert.Equal(t, "local(files=1, classes=0)", out.Scope)
}

func TestFindInheritorsLocalScopeRequiresFiles(t *testing.T) {
	s := loadedServer(t)
	res := call(t, context.Background(), s.handleFindInheritors, map[string]any{
		"project":        "app",
		"qualified_name": "com.lib.Base",
		"scope":          "local",
	})
	assert.True(t, res.IsError)
}

func TestFindInheritorsLimit(t *testing.T) {
	s := loadedServer(t)
	res := call(t, context.Background(), s.handleFindInheritors, map[string]any{
		"project":        "app",
		"qualified_name": "com.lib.Base",
		"limit":          2,
	})
	out := decode[inheritorsResult](t, res)
	assert.Equal(t, statusTruncated, out.Status)
	assert.Equal(t, 2, out.Count)
}

func TestFindInheritorsUnlimitedRunsConcurrently(t *testing.T) {
	s := loadedServer(t)
	res := call(t, context.Background(), s.handleFindInheritors, map[string]any{
		"project":        "app",
		"qualified_name": "com.lib.Shape",
		"limit":          0,
	})
	out := decode[inheritorsResult](t, res)
	assert.Equal(t, statusCompleted, out.Status)
	assert.Len(t, out.Inheritors, 4)
}

func TestFindInheritorsCancelledIsNotEmpty(t *testing.T) {
	s := loadedServer(t)
	rec := progress.NewRecorder()
	rec.Cancel()
	ctx := progress.WithIndicator(context.Background(), rec)

	res := call(t, ctx, s.handleFindInheritors, map[string]any{
		"project":        "app",
		"qualified_name": "com.lib.Base",
	})
	out := decode[inheritorsResult](t, res)
	assert.Equal(t, statusCancelled, out.Status)
	assert.Zero(t, out.Count)
	assert.Zero(t, rec.Depth())
}

// cancelAfter is an indicator cancelled from its n-th poll on.
type cancelAfter struct {
	n     int64
	polls atomic.Int64
}

func (c *cancelAfter) PushState(string) {}
func (c *cancelAfter) PopState()        {}
func (c *cancelAfter) IsCancelled() bool {
	return c.polls.Add(1) >= c.n
}

func TestFindInheritorsUnlimitedCancelKeepsPartial(t *testing.T) {
	s := loadedServer(t)
	// polls: before Base, candidate Widget, before expanding Widget
	ctx := progress.WithIndicator(context.Background(), &cancelAfter{n: 3})

	res := call(t, ctx, s.handleFindInheritors, map[string]any{
		"project":        "app",
		"qualified_name": "com.lib.Base",
		"limit":          0,
	})
	out := decode[inheritorsResult](t, res)
	assert.Equal(t, statusCancelled, out.Status)
	assert.Equal(t, []string{"com.app.Widget"}, inheritorNames(out))
	assert.Equal(t, 1, out.Count)
}

func TestFindInheritorsReportsSearchedBases(t *testing.T) {
	s := loadedServer(t)
	res := call(t, context.Background(), s.handleFindInheritors, map[string]any{
		"project":        "app",
		"qualified_name": "com.lib.Base",
	})
	out := decode[inheritorsResult](t, res)
	assert.Equal(t, []string{"Searching inheritors of Base"}, out.Searched)
}

func TestFindInheritorsErrors(t *testing.T) {
	s := loadedServer(t)
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing args", map[string]any{"project": "app"}},
		{"unknown project", map[string]any{"project": "nope", "qualified_name": "com.lib.Base"}},
		{"unknown class", map[string]any{"project": "app", "qualified_name": "com.lib.Missing"}},
		{"bad scope", map[string]any{"project": "app", "qualified_name": "com.lib.Base", "scope": "module"}},
		{"bad workspace", map[string]any{"project": "app", "qualified_name": "com.lib.Base", "workspace": "../x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, context.Background(), s.handleFindInheritors, tt.args)
			assert.True(t, res.IsError, text(t, res))
		})
	}
}

func TestGetTypeHierarchy(t *testing.T) {
	s := loadedServer(t)
	res := call(t, context.Background(), s.handleGetTypeHierarchy, map[string]any{
		"project":        "app",
		"qualified_name": "com.app.Button",
		"direction":      "up",
	})
	out := decode[struct {
		Nodes []hierarchyNode `json:"nodes"`
		Edges []hierarchyEdge `json:"edges"`
	}](t, res)
	var qns []string
	for _, n := range out.Nodes {
		qns = append(qns, n.QualifiedName)
	}
	assert.ElementsMatch(t, []string{"com.app.Widget", "com.lib.Base", "com.lib.Shape"}, qns)
	assert.Contains(t, out.Edges, hierarchyEdge{From: "com.app.Button", To: "com.app.Widget", Type: store.EdgeInherits})
	assert.Contains(t, out.Edges, hierarchyEdge{From: "com.app.Widget", To: "com.lib.Shape", Type: store.EdgeImplements})

	res = call(t, context.Background(), s.handleGetTypeHierarchy, map[string]any{
		"project":        "app",
		"qualified_name": "com.app.Button",
		"direction":      "sideways",
	})
	assert.True(t, res.IsError)
}

func TestSearchClasses(t *testing.T) {
	s := loadedServer(t)
	res := call(t, context.Background(), s.handleSearchClasses, map[string]any{
		"project":      "app",
		"min_subtypes": 1,
	})
	out := decode[struct {
		Total   int `json:"total"`
		Results []struct {
			QualifiedName string `json:"qualified_name"`
			Subtypes      int    `json:"subtypes"`
		} `json:"results"`
	}](t, res)
	require.Equal(t, 1, out.Total)
	assert.Equal(t, "com.app.Widget", out.Results[0].QualifiedName)
	assert.Equal(t, 3, out.Results[0].Subtypes)
}

func TestProjectsAndSchema(t *testing.T) {
	s := loadedServer(t)

	projects := decode[[]map[string]any](t, call(t, context.Background(), s.handleListProjects, map[string]any{}))
	require.Len(t, projects, 2)

	schema := decode[map[string]any](t, call(t, context.Background(), s.handleGetHierarchySchema, map[string]any{"project": "app"}))
	assert.Equal(t, "app", schema["project"])

	workspaces := decode[map[string]any](t, call(t, context.Background(), s.handleListWorkspaces, map[string]any{}))
	assert.Len(t, workspaces["workspaces"], 1)

	res := call(t, context.Background(), s.handleDeleteProject, map[string]any{"project_name": "app"})
	require.False(t, res.IsError, text(t, res))
	projects = decode[[]map[string]any](t, call(t, context.Background(), s.handleListProjects, map[string]any{}))
	require.Len(t, projects, 1)
	assert.Equal(t, "lib", projects[0]["name"])

	res = call(t, context.Background(), s.handleDeleteProject, map[string]any{"project_name": "app"})
	assert.True(t, res.IsError)
}

func TestNewServerRegistersTools(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.MCPServer())
	assert.Equal(t, []string{
		"delete_project", "find_inheritors", "get_hierarchy_schema", "get_type_hierarchy",
		"list_projects", "list_workspaces", "load_hierarchy", "scan_java_sources", "search_classes",
	}, s.ToolNames())

	_, err := s.CallTool(context.Background(), "no_such_tool", nil)
	assert.Error(t, err)
}

func writeJava(t *testing.T, root, rel, src string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
}

func TestScanJavaSourcesLoadsAndSearches(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	src := t.TempDir()
	writeJava(t, src, "com/zoo/Animal.java", "package com.zoo;\npublic abstract class Animal {}\n")
	writeJava(t, src, "com/zoo/Cat.java", `package com.zoo;
public class Cat extends Animal {
    Animal stray = new Animal() {};
}
`)
	writeJava(t, src, "com/zoo/Lion.java", "package com.zoo;\npublic final class Lion extends Cat {}\n")

	res, err := s.CallTool(ctx, "scan_java_sources", map[string]any{
		"workspace":  "zoo",
		"source_dir": src,
		"project":    "zoo",
	})
	require.NoError(t, err)
	scanned := decode[scanResult](t, res)
	assert.Equal(t, 3, scanned.Files)
	assert.Equal(t, 4, scanned.Classes)
	require.NotNil(t, scanned.Load)
	assert.Equal(t, []string{"zoo"}, scanned.Load.Loaded)
	assert.FileExists(t, scanned.ManifestPath)
	assert.Equal(t, filepath.Join(s.router.Dir(), "manifests", "zoo", "zoo.yaml"), scanned.ManifestPath)

	res, err = s.CallTool(ctx, "find_inheritors", map[string]any{
		"workspace":      "zoo",
		"project":        "zoo",
		"qualified_name": "com.zoo.Animal",
	})
	require.NoError(t, err)
	found := decode[inheritorsResult](t, res)
	assert.Equal(t, statusCompleted, found.Status)
	assert.ElementsMatch(t, []string{"com.zoo.Cat", "com.zoo.Cat$1", "com.zoo.Lion"}, inheritorNames(found))
}

func TestScanJavaSourcesWithoutLoad(t *testing.T) {
	s := newTestServer(t)
	src := t.TempDir()
	writeJava(t, src, "p/A.java", "package p;\nclass A {}\n")
	out := filepath.Join(t.TempDir(), "a.yaml")

	res, err := s.CallTool(context.Background(), "scan_java_sources", map[string]any{
		"source_dir":    src,
		"project":       "a",
		"manifest_path": out,
		"load":          false,
	})
	require.NoError(t, err)
	scanned := decode[scanResult](t, res)
	assert.Nil(t, scanned.Load)
	assert.Equal(t, out, scanned.ManifestPath)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "project: a")
}

func TestScanJavaSourcesErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing project", map[string]any{"source_dir": t.TempDir()}},
		{"missing dir", map[string]any{"source_dir": "/nonexistent/src", "project": "x"}},
		{"bad project name", map[string]any{"source_dir": t.TempDir(), "project": "../x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.CallTool(context.Background(), "scan_java_sources", tt.args)
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}
