package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codebase-inheritors/internal/parser"
	"github.com/DeusData/codebase-inheritors/internal/pipeline"
)

type scanResult struct {
	Project      string           `json:"project"`
	ManifestPath string           `json:"manifest_path"`
	Files        int              `json:"files"`
	Classes      int              `json:"classes"`
	Load         *pipeline.Result `json:"load,omitempty"`
}

func (s *Server) handleScanJavaSources(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	sourceDir := getStringArg(args, "source_dir")
	project := getStringArg(args, "project")
	if sourceDir == "" || project == "" {
		return errResult("source_dir and project are required"), nil
	}
	if strings.ContainsAny(project, `/\`) || strings.Contains(project, "..") {
		return errResult(fmt.Sprintf("invalid project name %q", project)), nil
	}
	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return errResult(fmt.Sprintf("source_dir %q is not a directory", sourceDir)), nil
	}

	st, err := s.resolveStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	m, err := parser.ScanJava(ctx, sourceDir, project, getStringSliceArg(args, "dependencies"))
	if err != nil {
		return errResult(fmt.Sprintf("scan failed: %v", err)), nil
	}

	out := getStringArg(args, "manifest_path")
	if out == "" {
		ws := getStringArg(args, "workspace")
		if ws == "" {
			ws = DefaultWorkspace
		}
		out = filepath.Join(s.router.Dir(), "manifests", ws, project+".yaml")
	}
	if out, err = filepath.Abs(out); err != nil {
		return errResult(fmt.Sprintf("invalid manifest_path: %v", err)), nil
	}
	if err := writeManifestFile(out, m); err != nil {
		return errResult(fmt.Sprintf("write manifest: %v", err)), nil
	}

	res := scanResult{
		Project:      project,
		ManifestPath: out,
		Files:        len(m.Files),
		Classes:      len(m.Nodes()),
	}
	if getBoolArg(args, "load", true) {
		loaded, err := s.loadManifests(ctx, st, []string{out}, false)
		if err != nil {
			return errResult(fmt.Sprintf("load failed: %v", err)), nil
		}
		res.Load = loaded
	}
	return jsonResult(res), nil
}

// writeManifestFile writes m to path through a temporary file in the same
// directory, so a concurrent load never reads a partial manifest.
func writeManifestFile(path string, m *pipeline.Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := pipeline.WriteManifest(tmp, m); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
