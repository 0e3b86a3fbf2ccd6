package store

import "fmt"

// SchemaInfo summarises the class hierarchy loaded for a project.
type SchemaInfo struct {
	NodeLabels        []LabelCount `json:"node_labels"`
	RelationshipTypes []TypeCount  `json:"relationship_types"`
	SampleClassNames  []string     `json:"sample_class_names"`
	FinalClasses      int          `json:"final_classes"`
	AnonymousClasses  int          `json:"anonymous_classes"`
}

// LabelCount is a label with its count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TypeCount is a relationship type with its count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// GetSchema returns hierarchy statistics for a project.
func (s *Store) GetSchema(project string) (*SchemaInfo, error) {
	info := &SchemaInfo{}

	var err error
	if info.NodeLabels, err = s.schemaNodeLabels(project); err != nil {
		return nil, err
	}
	if info.RelationshipTypes, err = s.schemaEdgeTypes(project); err != nil {
		return nil, err
	}
	if info.SampleClassNames, err = s.schemaSampleNames(project, "Class", 20); err != nil {
		return nil, err
	}
	if info.FinalClasses, err = s.countFlag(project, "is_final"); err != nil {
		return nil, err
	}
	if info.AnonymousClasses, err = s.countFlag(project, "is_anonymous"); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Store) schemaNodeLabels(project string) ([]LabelCount, error) {
	rows, err := s.q.Query("SELECT label, COUNT(*) as cnt FROM nodes WHERE project=? GROUP BY label ORDER BY cnt DESC, label", project)
	if err != nil {
		return nil, fmt.Errorf("schema labels: %w", err)
	}
	defer rows.Close()
	var labels []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		labels = append(labels, lc)
	}
	return labels, rows.Err()
}

func (s *Store) schemaEdgeTypes(project string) ([]TypeCount, error) {
	rows, err := s.q.Query("SELECT type, COUNT(*) as cnt FROM edges WHERE project=? GROUP BY type ORDER BY cnt DESC, type", project)
	if err != nil {
		return nil, fmt.Errorf("schema edge types: %w", err)
	}
	defer rows.Close()
	var types []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, err
		}
		types = append(types, tc)
	}
	return types, rows.Err()
}

func (s *Store) schemaSampleNames(project, label string, limit int) ([]string, error) {
	rows, err := s.q.Query("SELECT name FROM nodes WHERE project=? AND label=? ORDER BY name LIMIT ?", project, label, limit)
	if err != nil {
		return nil, fmt.Errorf("schema sample %s: %w", label, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// countFlag counts nodes whose boolean property key is true.
func (s *Store) countFlag(project, key string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM nodes WHERE project=? AND json_extract(properties, '$.'||?) = 1", project, key).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("schema count %s: %w", key, err)
	}
	return count, nil
}
