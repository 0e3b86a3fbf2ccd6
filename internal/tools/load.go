package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codebase-inheritors/internal/pipeline"
	"github.com/DeusData/codebase-inheritors/internal/store"
)

func (s *Server) handleLoadHierarchy(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	paths := getStringSliceArg(args, "paths")
	if len(paths) == 0 {
		return errResult("paths is required"), nil
	}
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return errResult(fmt.Sprintf("invalid path: %v", err)), nil
		}
		paths[i] = abs
	}

	st, err := s.resolveStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	res, err := s.loadManifests(ctx, st, paths, getBoolArg(args, "keep_stale_edges", false))
	if err != nil {
		return errResult(fmt.Sprintf("load failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

// loadManifests runs the load pipeline over paths. Nil slices in the result
// are replaced so they encode as [].
func (s *Server) loadManifests(ctx context.Context, st *store.Store, paths []string, keepStale bool) (*pipeline.Result, error) {
	// Lock to keep concurrent loads from interleaving project rebuilds
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	p := pipeline.New(ctx, st, paths...)
	p.KeepStaleEdges = keepStale
	res, err := p.Run()
	if err != nil {
		return nil, err
	}
	if res.Loaded == nil {
		res.Loaded = []string{}
	}
	if res.Skipped == nil {
		res.Skipped = []string{}
	}
	return res, nil
}
