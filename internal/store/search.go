package store

import (
	"fmt"
	"regexp"
	"strings"
)

// SearchParams defines structured class search parameters.
type SearchParams struct {
	Project     string
	Label       string // one of ClassLabels; empty matches all of them
	NamePattern string // regex over name or qualified name
	FilePattern string // glob over file_path
	MinSubtypes int    // -1 means not set
	MaxSubtypes int    // -1 means not set
	Limit       int
	Offset      int
}

// SearchResult is a class with its direct hierarchy degree.
type SearchResult struct {
	Node       *Node
	Subtypes   int // direct INHERITS/IMPLEMENTS sources
	Supertypes int // direct INHERITS/IMPLEMENTS targets
}

// SearchOutput wraps search results with total count for pagination.
type SearchOutput struct {
	Results []*SearchResult
	Total   int
}

// Search finds class-like nodes of a project with pagination support.
func (s *Store) Search(params SearchParams) (*SearchOutput, error) {
	if params.Limit <= 0 {
		params.Limit = 100000
	}

	conditions := []string{"n.project = ?"}
	args := []any{params.Project}

	if params.Label != "" {
		conditions = append(conditions, "n.label = ?")
		args = append(args, params.Label)
	} else {
		conditions = append(conditions, "n.label IN ("+placeholders(len(ClassLabels))+")")
		for _, l := range ClassLabels {
			args = append(args, l)
		}
	}

	if params.FilePattern != "" {
		conditions = append(conditions, "n.file_path LIKE ?")
		args = append(args, globToLike(params.FilePattern))
	}

	// Go-side filters (regex, degree) need more rows than the page
	hasDegreeFilter := params.MinSubtypes >= 0 || params.MaxSubtypes >= 0
	sqlLimit := min(params.Offset+params.Limit, 100000)
	if params.NamePattern != "" || hasDegreeFilter {
		sqlLimit = 10000
	}

	query := fmt.Sprintf(`
		SELECT n.id, n.project, n.label, n.name, n.qualified_name, n.file_path, n.start_line, n.end_line, n.properties,
			(SELECT COUNT(*) FROM edges e WHERE e.target_id = n.id AND e.type IN (?, ?)),
			(SELECT COUNT(*) FROM edges e WHERE e.source_id = n.id AND e.type IN (?, ?))
		FROM nodes n
		WHERE %s
		ORDER BY n.qualified_name, n.id
		LIMIT ?`, strings.Join(conditions, " AND "))
	args = append([]any{EdgeInherits, EdgeImplements, EdgeInherits, EdgeImplements}, args...)
	args = append(args, sqlLimit)

	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var re *regexp.Regexp
	if params.NamePattern != "" {
		if re, err = regexp.Compile(params.NamePattern); err != nil {
			return nil, fmt.Errorf("invalid name pattern: %w", err)
		}
	}

	var all []*SearchResult
	for rows.Next() {
		var n Node
		var props string
		sr := &SearchResult{Node: &n}
		if err := rows.Scan(&n.ID, &n.Project, &n.Label, &n.Name, &n.QualifiedName, &n.FilePath, &n.StartLine, &n.EndLine, &props,
			&sr.Subtypes, &sr.Supertypes); err != nil {
			return nil, err
		}
		n.Properties = unmarshalProps(props)

		if re != nil && !re.MatchString(n.Name) && !re.MatchString(n.QualifiedName) {
			continue
		}
		if params.MinSubtypes >= 0 && sr.Subtypes < params.MinSubtypes {
			continue
		}
		if params.MaxSubtypes >= 0 && sr.Subtypes > params.MaxSubtypes {
			continue
		}
		all = append(all, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	total := len(all)
	start := min(params.Offset, total)
	end := min(start+params.Limit, total)
	return &SearchOutput{
		Results: all[start:end],
		Total:   total,
	}, nil
}

// globToLike converts a glob pattern to SQL LIKE pattern.
func globToLike(pattern string) string {
	result := strings.ReplaceAll(pattern, "**", "%")
	result = strings.ReplaceAll(result, "*", "%")
	result = strings.ReplaceAll(result, "?", "_")
	return result
}
