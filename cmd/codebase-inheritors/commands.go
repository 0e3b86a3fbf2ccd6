package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// run invokes a tool in the selected workspace and prints its text output.
// Tool errors become command errors.
func (a *app) run(cmd *cobra.Command, tool string, args map[string]any) error {
	if _, ok := args["workspace"]; !ok {
		args["workspace"] = a.workspace
	}
	res, err := a.srv.CallTool(cmd.Context(), tool, args)
	if err != nil {
		return err
	}
	out := resultText(res)
	if res.IsError {
		return errors.New(out)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringSliceVar(&a.watch, "watch", nil, "manifest files or directories to load and reload on change")
	return cmd
}

func (a *app) loadCmd() *cobra.Command {
	var keepStale bool
	cmd := &cobra.Command{
		Use:   "load <manifest-or-dir>...",
		Short: "Load hierarchy manifests into the workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			return a.run(cmd, "load_hierarchy", map[string]any{
				"paths":            paths,
				"keep_stale_edges": keepStale,
			})
		},
	}
	cmd.Flags().BoolVar(&keepStale, "keep-stale-edges", false, "keep previous edges of reloaded projects")
	return cmd
}

func (a *app) scanCmd() *cobra.Command {
	var (
		project string
		deps    []string
		output  string
		noLoad  bool
	)
	cmd := &cobra.Command{
		Use:   "scan <source-dir>",
		Short: "Parse Java sources into a hierarchy manifest and load it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "scan_java_sources", map[string]any{
				"source_dir":    args[0],
				"project":       project,
				"dependencies":  deps,
				"manifest_path": output,
				"load":          !noLoad,
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&project, "project", "p", "", "project name recorded in the manifest")
	f.StringSliceVar(&deps, "dep", nil, "projects this project depends on")
	f.StringVarP(&output, "output", "o", "", "manifest path (default under the store directory)")
	f.BoolVar(&noLoad, "no-load", false, "only write the manifest")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func (a *app) inheritorsCmd() *cobra.Command {
	var (
		project string
		scope   string
		files   []string
		limit   int
		timeout int
		deep    bool
		verify  bool
	)
	cmd := &cobra.Command{
		Use:   "inheritors <qualified-name>",
		Short: "Find the inheritors of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]any{
				"project":        project,
				"qualified_name": args[0],
				"scope":          scope,
				"files":          files,
				"timeout_ms":     timeout,
			}
			// unset flags fall back to the config defaults
			if cmd.Flags().Changed("deep") {
				toolArgs["deep"] = deep
			}
			if cmd.Flags().Changed("check-inheritance") {
				toolArgs["check_inheritance"] = verify
			}
			if cmd.Flags().Changed("limit") {
				toolArgs["limit"] = limit
			}
			return a.run(cmd, "find_inheritors", toolArgs)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&project, "project", "p", "", "project whose view of the hierarchy is searched")
	f.StringVar(&scope, "scope", "global", "global or local")
	f.StringSliceVar(&files, "files", nil, "files making up a local scope")
	f.BoolVar(&deep, "deep", true, "include transitive inheritors")
	f.BoolVar(&verify, "check-inheritance", false, "re-verify index candidates")
	f.IntVar(&limit, "limit", 0, "max results, 0 for unlimited")
	f.IntVar(&timeout, "timeout-ms", 0, "cancel the search after this many milliseconds")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func (a *app) hierarchyCmd() *cobra.Command {
	var (
		project   string
		direction string
		depth     int
	)
	cmd := &cobra.Command{
		Use:   "hierarchy <qualified-name>",
		Short: "Walk stored supertype edges up or down from a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "get_type_hierarchy", map[string]any{
				"project":        project,
				"qualified_name": args[0],
				"direction":      direction,
				"depth":          depth,
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project declaring the class")
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&depth, "depth", 3, "maximum depth")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		project     string
		label       string
		filePattern string
		minSubtypes int
		maxSubtypes int
		limit       int
		offset      int
	)
	cmd := &cobra.Command{
		Use:   "search [name-regex]",
		Short: "Search the classes of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]any{
				"project":      project,
				"label":        label,
				"file_pattern": filePattern,
				"min_subtypes": minSubtypes,
				"max_subtypes": maxSubtypes,
				"limit":        limit,
				"offset":       offset,
			}
			if len(args) == 1 {
				toolArgs["name_pattern"] = args[0]
			}
			return a.run(cmd, "search_classes", toolArgs)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&project, "project", "p", "", "project to search")
	f.StringVar(&label, "label", "", "Class, Interface, Enum or Type")
	f.StringVar(&filePattern, "file", "", "glob over file paths")
	f.IntVar(&minSubtypes, "min-subtypes", -1, "minimum number of direct subtypes")
	f.IntVar(&maxSubtypes, "max-subtypes", -1, "maximum number of direct subtypes")
	f.IntVar(&limit, "limit", 50, "max results")
	f.IntVar(&offset, "offset", 0, "skip this many results")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func (a *app) projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects [project]",
		Short: "List loaded projects, or show the schema of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.run(cmd, "get_hierarchy_schema", map[string]any{"project": args[0]})
			}
			return a.run(cmd, "list_projects", map[string]any{})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project>",
		Short: "Delete a project from the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "delete_project", map[string]any{"project_name": args[0]})
		},
	}
}

func (a *app) workspacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workspaces",
		Short: "List workspace databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "list_workspaces", map[string]any{})
		},
	}
}

func (a *app) callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-args]",
		Short: "Invoke any MCP tool with JSON arguments",
		Args:  cobra.RangeArgs(1, 2),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 || a.srv == nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return a.srv.ToolNames(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
					return fmt.Errorf("invalid json args: %w", err)
				}
			}
			return a.run(cmd, args[0], toolArgs)
		},
	}
}
