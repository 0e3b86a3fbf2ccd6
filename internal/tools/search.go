package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/codebase-inheritors/internal/store"
)

func (s *Server) handleSearchClasses(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project := getStringArg(args, "project")
	if project == "" {
		return errResult("project is required"), nil
	}

	params := store.SearchParams{
		Project:     project,
		Label:       getStringArg(args, "label"),
		NamePattern: getStringArg(args, "name_pattern"),
		FilePattern: getStringArg(args, "file_pattern"),
		MinSubtypes: getIntArg(args, "min_subtypes", -1),
		MaxSubtypes: getIntArg(args, "max_subtypes", -1),
		Limit:       max(1, min(getIntArg(args, "limit", 50), 200)),
		Offset:      max(0, getIntArg(args, "offset", 0)),
	}

	st, err := s.resolveStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	output, err := st.Search(params)
	if err != nil {
		return errResult(fmt.Sprintf("search: %v", err)), nil
	}

	type resultEntry struct {
		Name          string `json:"name"`
		QualifiedName string `json:"qualified_name"`
		Label         string `json:"label"`
		FilePath      string `json:"file_path"`
		StartLine     int    `json:"start_line"`
		EndLine       int    `json:"end_line"`
		Subtypes      int    `json:"subtypes"`
		Supertypes    int    `json:"supertypes"`
	}

	results := make([]resultEntry, 0, len(output.Results))
	for _, r := range output.Results {
		results = append(results, resultEntry{
			Name:          r.Node.Name,
			QualifiedName: r.Node.QualifiedName,
			Label:         r.Node.Label,
			FilePath:      r.Node.FilePath,
			StartLine:     r.Node.StartLine,
			EndLine:       r.Node.EndLine,
			Subtypes:      r.Subtypes,
			Supertypes:    r.Supertypes,
		})
	}

	return jsonResult(map[string]any{
		"total":    output.Total,
		"results":  results,
		"has_more": params.Offset+len(results) < output.Total,
	}), nil
}
